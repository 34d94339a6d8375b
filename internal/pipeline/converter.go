package pipeline

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/jvparquet/pkg/errors"
	"github.com/ajitpratap0/jvparquet/pkg/metrics"
	"github.com/ajitpratap0/jvparquet/pkg/models"
	"github.com/ajitpratap0/jvparquet/pkg/schema"
)

// RecordSource yields decoded records until it returns io.EOF
type RecordSource interface {
	Next() (models.ParsedRecord, error)
}

// SpecStats counts what happened to the records of one spec
type SpecStats struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Summary reports a conversion run
type Summary struct {
	Specs    map[schema.RecordSpec]SpecStats `json:"specs"`
	Duration time.Duration                   `json:"duration"`
}

// Totals sums the per-spec counts
func (s Summary) Totals() SpecStats {
	var t SpecStats
	for _, st := range s.Specs {
		t.Processed += st.Processed
		t.Skipped += st.Skipped
		t.Failed += st.Failed
	}
	return t
}

// Converter feeds decoded records into a BufferManager, dropping the specs
// on its skip list, and keeps per-spec counts for the run summary.
type Converter struct {
	buffer  *BufferManager
	skip    map[schema.RecordSpec]struct{}
	logger  *zap.Logger
	metrics *metrics.Collector
	started time.Time
	rate    *metrics.ThroughputTracker

	mu    sync.Mutex
	stats map[schema.RecordSpec]*SpecStats
}

// NewConverter creates a converter writing through buffer
func NewConverter(buffer *BufferManager, skip []schema.RecordSpec, logger *zap.Logger, collector *metrics.Collector) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	skipSet := make(map[schema.RecordSpec]struct{}, len(skip))
	for _, spec := range skip {
		skipSet[spec] = struct{}{}
	}
	return &Converter{
		buffer:  buffer,
		skip:    skipSet,
		logger:  logger.With(zap.String("component", "converter")),
		metrics: collector,
		started: time.Now(),
		rate:    metrics.NewThroughputTracker(),
		stats:   make(map[schema.RecordSpec]*SpecStats),
	}
}

func (c *Converter) count(spec schema.RecordSpec, fn func(*SpecStats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.stats[spec]
	if !ok {
		st = &SpecStats{}
		c.stats[spec] = st
	}
	fn(st)
}

// Process buffers one record. Records of a skipped spec are counted and
// dropped. The error is the buffer's, from a flush the record triggered.
func (c *Converter) Process(ctx context.Context, rec models.ParsedRecord) error {
	if !rec.Spec.Valid() {
		return errors.Newf(errors.ErrorTypeValidation, "invalid record spec %q", rec.Spec)
	}
	if _, ok := c.skip[rec.Spec]; ok {
		c.count(rec.Spec, func(st *SpecStats) { st.Skipped++ })
		c.metrics.RecordSkipped(rec.Spec.String())
		return nil
	}

	if err := c.buffer.Add(ctx, rec.Spec, rec.Fields); err != nil {
		c.count(rec.Spec, func(st *SpecStats) { st.Processed++; st.Failed++ })
		return err
	}
	c.count(rec.Spec, func(st *SpecStats) { st.Processed++ })
	c.rate.Increment(1)
	return nil
}

// Run processes every record of src. It stops at the first decode or
// flush failure; records already buffered are written by Close.
func (c *Converter) Run(ctx context.Context, src RecordSource) error {
	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeTimeout, "conversion cancelled")
		}
		rec, err := src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := c.Process(ctx, rec); err != nil {
			return err
		}
	}
}

// Close flushes everything still buffered, closes the writer and logs the
// run summary
func (c *Converter) Close(ctx context.Context) error {
	err := c.buffer.Close(ctx)
	summary := c.Summary()
	totals := summary.Totals()

	fields := []zap.Field{
		zap.Int("processed", totals.Processed),
		zap.Int("skipped", totals.Skipped),
		zap.Int("failed", totals.Failed),
		zap.Duration("duration", summary.Duration),
		zap.Float64("records_per_second", c.rate.GetAndReset()),
	}
	if err != nil {
		c.logger.Error("conversion finished with errors", append(fields, zap.Error(err))...)
		return err
	}
	c.logger.Info("conversion finished", fields...)
	return nil
}

// Summary returns a snapshot of the per-spec counts
func (c *Converter) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := Summary{
		Specs:    make(map[schema.RecordSpec]SpecStats, len(c.stats)),
		Duration: time.Since(c.started),
	}
	for spec, st := range c.stats {
		out.Specs[spec] = *st
	}
	return out
}

// SortedSpecs returns the summary's specs in order
func (s Summary) SortedSpecs() []schema.RecordSpec {
	specs := make([]schema.RecordSpec, 0, len(s.Specs))
	for spec := range s.Specs {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i] < specs[j] })
	return specs
}
