package columnar

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"go.uber.org/zap"

	"github.com/ajitpratap0/jvparquet/pkg/errors"
	"github.com/ajitpratap0/jvparquet/pkg/metrics"
	"github.com/ajitpratap0/jvparquet/pkg/models"
	"github.com/ajitpratap0/jvparquet/pkg/observability"
	"github.com/ajitpratap0/jvparquet/pkg/schema"
	"github.com/ajitpratap0/jvparquet/pkg/storage"
)

// specState is the output of one record spec. Its mutex makes segment
// creation for a spec exclusive to one caller.
type specState struct {
	mu       sync.Mutex
	seq      int
	segments []SegmentInfo
}

// ParquetWriter writes each batch as a complete Parquet file, staged
// through the sink and committed only after the footer is written.
type ParquetWriter struct {
	registry *schema.Registry
	sink     storage.Sink
	config   *WriterConfig
	codec    compress.Compression
	codecTag string
	logger   *zap.Logger
	metrics  *metrics.Collector
	alloc    memory.Allocator
	now      func() time.Time

	mu     sync.Mutex
	states map[schema.RecordSpec]*specState
}

var _ Writer = (*ParquetWriter)(nil)

// Option configures a ParquetWriter
type Option func(*ParquetWriter)

// WithMetrics records rows written and coercion failures on c
func WithMetrics(c *metrics.Collector) Option {
	return func(w *ParquetWriter) { w.metrics = c }
}

// WithAllocator sets the Arrow allocator used to build batches
func WithAllocator(alloc memory.Allocator) Option {
	return func(w *ParquetWriter) { w.alloc = alloc }
}

// WithClock overrides the time source for manifest timestamps
func WithClock(now func() time.Time) Option {
	return func(w *ParquetWriter) { w.now = now }
}

// NewParquetWriter creates a writer committing segments to sink
func NewParquetWriter(registry *schema.Registry, sink storage.Sink, config *WriterConfig, logger *zap.Logger, opts ...Option) (*ParquetWriter, error) {
	if registry == nil {
		registry = schema.Default()
	}
	if sink == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "segment sink is required")
	}
	if config == nil {
		config = DefaultWriterConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	codec, _ := ParseCodec(config.Compression, config.CompressionEnabled)

	if logger == nil {
		logger = zap.NewNop()
	}

	w := &ParquetWriter{
		registry: registry,
		sink:     sink,
		config:   config,
		codec:    codec,
		codecTag: codecName(config.Compression, config.CompressionEnabled),
		logger:   logger.With(zap.String("component", "parquet_writer")),
		alloc:    memory.NewGoAllocator(),
		now:      time.Now,
		states:   make(map[schema.RecordSpec]*specState),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *ParquetWriter) state(spec schema.RecordSpec) *specState {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, ok := w.states[spec]
	if !ok {
		st = &specState{}
		w.states[spec] = st
	}
	return st
}

// WriteBatch converts records to columns and commits them as a new
// segment. Records of another spec are a caller bug and panic.
func (w *ParquetWriter) WriteBatch(ctx context.Context, spec schema.RecordSpec, records []models.ParsedRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		if records[i].Spec != spec {
			panic(fmt.Sprintf("columnar: record %d has spec %q in a batch of %q", i, records[i].Spec, spec))
		}
	}

	if w.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.WriteTimeout)
		defer cancel()
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanWriteBatch, spec.String(), len(records))
	defer func() { observability.EndSpan(span, err) }()

	st := w.state(spec)
	st.mu.Lock()
	defer st.mu.Unlock()

	start := time.Now()
	cols := planColumns(w.registry, spec, records)
	sc := arrowSchema(spec, cols, w.registry.IndexColumns(spec))

	rec, err := w.buildRecord(spec, sc, cols, records)
	if err != nil {
		return err
	}
	defer rec.Release()

	st.seq++
	key := w.config.segmentKey(spec, records[0].Fields, st.seq)
	span.SetAttributes(observability.AttrSegment.String(key))

	location, size, err := w.writeSegment(ctx, key, sc, rec)
	if err != nil {
		errType := errors.ErrorTypeFile
		if errors.IsType(err, errors.ErrorTypeTimeout) {
			errType = errors.ErrorTypeTimeout
		}
		return errors.Wrap(err, errType, "failed to write segment").
			WithDetail("record_spec", spec.String()).
			WithDetail("segment", key)
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	st.segments = append(st.segments, SegmentInfo{
		Key:       key,
		Location:  location,
		Rows:      len(records),
		Bytes:     size,
		Columns:   names,
		Codec:     w.codecTag,
		CreatedAt: w.now().UTC(),
	})

	w.metrics.RowsWritten(spec.String(), len(records))
	w.logger.Info("segment committed",
		zap.String("record_spec", spec.String()),
		zap.String("segment", location),
		zap.Int("rows", len(records)),
		zap.Int("columns", len(cols)),
		zap.Int64("bytes", size),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// buildRecord transposes records into one Arrow record batch
func (w *ParquetWriter) buildRecord(spec schema.RecordSpec, sc *arrow.Schema, cols []column, records []models.ParsedRecord) (arrow.Record, error) {
	b := array.NewRecordBuilder(w.alloc, sc)
	defer b.Release()

	for i, col := range cols {
		if !col.registered {
			w.logger.Debug("column type inferred",
				zap.String("record_spec", spec.String()),
				zap.String("field", col.name),
				zap.Stringer("type", col.typ))
		}

		failures := 0
		fb := b.Field(i)
		for row := range records {
			v, err := models.Convert(records[row].Fields.Get(col.name), col.typ)
			if err != nil {
				if w.config.CoercionPolicy == CoercionStrict {
					return nil, errors.Wrap(err, errors.ErrorTypeConversion, "batch rejected").
						WithDetail("record_spec", spec.String()).
						WithDetail("field", col.name).
						WithDetail("row", row)
				}
				failures++
				v = models.Absent()
			}
			appendValue(fb, v)
		}

		if failures > 0 {
			w.metrics.CoercionFailures(spec.String(), col.name, failures)
			w.logger.Warn("values nulled after failed conversion",
				zap.String("record_spec", spec.String()),
				zap.String("field", col.name),
				zap.Int("count", failures))
		}
	}

	return b.NewRecord(), nil
}

func appendValue(b array.Builder, v models.Value) {
	switch fb := b.(type) {
	case *array.Int64Builder:
		if n, ok := v.Int(); ok {
			fb.Append(n)
			return
		}
	case *array.StringBuilder:
		if s, ok := v.Text(); ok {
			fb.Append(s)
			return
		}
	}
	b.AppendNull()
}

func (w *ParquetWriter) writerProperties() *parquet.WriterProperties {
	opts := []parquet.WriterProperty{
		parquet.WithCompression(w.codec),
		parquet.WithStats(w.config.EnableStats),
		parquet.WithDictionaryDefault(true),
		parquet.WithCreatedBy("jvparquet"),
	}
	if w.config.RowGroupLength > 0 {
		opts = append(opts, parquet.WithMaxRowGroupLength(w.config.RowGroupLength))
	}
	if w.config.DataPageSize > 0 {
		opts = append(opts, parquet.WithDataPageSize(w.config.DataPageSize))
	}
	return parquet.NewWriterProperties(opts...)
}

// writeSegment encodes rec into a staged file and commits it under key.
// The staged file never survives a failure.
func (w *ParquetWriter) writeSegment(ctx context.Context, key string, sc *arrow.Schema, rec arrow.Record) (string, int64, error) {
	staging, err := w.sink.StagingPath(key)
	if err != nil {
		return "", 0, err
	}

	f, err := os.Create(staging)
	if err != nil {
		return "", 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to create staging file").
			WithDetail("path", staging)
	}
	abort := func(cause error) (string, int64, error) {
		_ = f.Close()
		_ = os.Remove(staging)
		return "", 0, cause
	}

	fw, err := pqarrow.NewFileWriter(sc, f, w.writerProperties(),
		pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(w.alloc), pqarrow.WithStoreSchema()))
	if err != nil {
		return abort(errors.Wrap(err, errors.ErrorTypeInternal, "failed to create Parquet writer"))
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return abort(errors.Wrap(err, errors.ErrorTypeFile, "failed to write record batch"))
	}
	if err := ctx.Err(); err != nil {
		_ = fw.Close()
		return abort(errors.Wrap(err, errors.ErrorTypeTimeout, "segment write cancelled"))
	}
	if err := fw.Close(); err != nil {
		return abort(errors.Wrap(err, errors.ErrorTypeFile, "failed to close Parquet writer"))
	}
	// the Parquet writer closes f along with its footer; a second close
	// only reports that
	if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return abort(errors.Wrap(err, errors.ErrorTypeFile, "failed to close staging file"))
	}

	var size int64
	if fi, err := os.Stat(staging); err == nil {
		size = fi.Size()
	}

	location, err := w.sink.Commit(ctx, staging, key)
	if err != nil {
		return "", 0, err
	}
	return location, size, nil
}

// Close writes spec's manifest. Specs with no committed segment are a
// no-op. Writing more batches after Close is allowed; the next Close
// rewrites the manifest.
func (w *ParquetWriter) Close(ctx context.Context, spec schema.RecordSpec) error {
	w.mu.Lock()
	st, ok := w.states[spec]
	w.mu.Unlock()
	if !ok {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.segments) == 0 {
		return nil
	}

	manifest := newManifest(w.registry, spec, st.segments, w.now().UTC())
	data, err := manifest.Encode()
	if err != nil {
		return err
	}
	location, err := w.sink.Put(ctx, manifestKey(spec), data)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write manifest").
			WithDetail("record_spec", spec.String())
	}

	w.logger.Info("writer closed",
		zap.String("record_spec", spec.String()),
		zap.String("manifest", location),
		zap.Int("segments", len(manifest.Segments)),
		zap.Int("rows", manifest.TotalRows))
	return nil
}

// CloseAll closes every spec and reports all failures together
func (w *ParquetWriter) CloseAll(ctx context.Context) error {
	var errs []error
	for _, spec := range w.Specs() {
		errs = append(errs, w.Close(ctx, spec))
	}
	return errors.Combine(errs...)
}

// Specs returns the specs that have been written, sorted
func (w *ParquetWriter) Specs() []schema.RecordSpec {
	w.mu.Lock()
	defer w.mu.Unlock()
	specs := make([]schema.RecordSpec, 0, len(w.states))
	for spec := range w.states {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i] < specs[j] })
	return specs
}

// Segments returns the segments committed for spec so far
func (w *ParquetWriter) Segments(spec schema.RecordSpec) []SegmentInfo {
	w.mu.Lock()
	st, ok := w.states[spec]
	w.mu.Unlock()
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]SegmentInfo(nil), st.segments...)
}
