// Package jvparquet converts decoded JV-Data horse racing records into typed
// Parquet segments, one segment stream per record spec.
//
// Every feed line arrives as a record spec (a two character code such as
// "SE" for per-horse race results) plus a map of field name to raw text. The
// converter batches records per spec and writes each batch as one columnar
// segment whose column types come from a shared registry.
//
// # Architecture
//
// The work is split across four packages:
//
// 1. pkg/schema holds the TypeRegistry: one static column table per known
// record spec, plus InferType, which types any other field from its name
// alone. Registered types always win over inference.
//
// 2. internal/pipeline holds the BufferManager, which keeps one batch per
// spec behind its own lock. A batch that reaches the batch size is flushed
// by the caller that filled it. A failed flush puts its records back at
// the front of the batch.
//
// 3. pkg/formats/columnar holds the ColumnarWriter. It transposes a batch
// into Arrow columns over the union of fields present and converts raw
// text to int64 or utf8. It then commits a Parquet segment through a
// staging file, so a failed write leaves nothing readable behind.
//
// 4. pkg/storage publishes committed segments to a local directory or an
// S3 bucket.
//
// # Quick Start
//
// Convert a feed file with the CLI:
//
//	jvparquet convert --output ./out feed-20240106.ndjson.zst
//	jvparquet read out/SE/year=2024/month=01/day=06/data-20240106T090000-000001.parquet
//	jvparquet schema SE --explain Umaban
//
// Or wire the packages directly:
//
//	sink, _ := storage.NewLocalSink("./out", logger)
//	writer, _ := columnar.NewParquetWriter(schema.Default(), sink, nil, logger)
//	buffer, _ := pipeline.NewBufferManager(writer, pipeline.DefaultBufferConfig(), logger)
//	_ = buffer.Add(ctx, "SE", fields)
//	_ = buffer.Close(ctx)
package jvparquet
