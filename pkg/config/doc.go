// Package config holds the settings of a conversion run. A Config is
// loaded from YAML, may be overlaid by the CLI, and is validated before
// any component is built from it.
//
// Example usage:
//
//	cfg := config.NewDefault()
//	if err := config.Load("jvparquet.yaml", cfg); err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// A complete configuration file looks like this:
//
//	batch_size: 5000
//	output_location: /data/jv/parquet
//	file_prefix: jv
//	compression_enabled: true
//	compression_codec: zstd
//	max_parallelism: 4
//	enable_statistics: true
//	coercion_policy: strict
//	partition_by_make_date: true
//	flush_interval: 30s
//	write_timeout: 2m
//	skip_record_specs: [O5, O6]
//	logging:
//	  level: info
//	  encoding: json
//	storage:
//	  kind: s3
//	  bucket: ${JV_BUCKET}
//	  prefix: jv/parquet
//	  region: ap-northeast-1
//
// With storage.kind s3, output_location is where segments are staged
// before upload.
package config
