// Package metrics exposes Prometheus metrics for a conversion run.
//
// # Overview
//
// A Collector registers its vectors on the Registerer it is given, so tests
// and embedding programs can use a private registry:
//
//	reg := prometheus.NewRegistry()
//	collector := metrics.NewCollector(reg)
//	buffers := pipeline.NewBufferManager(writer, cfg, logger, pipeline.WithMetrics(collector))
//
// Every method is safe on a nil *Collector, which records nothing. Components
// therefore take an optional collector without checking for nil.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jvparquet"

// Flush results used as the "result" label
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Collector holds the run's metric vectors
type Collector struct {
	recordsBuffered  *prometheus.CounterVec
	bufferedRecords  *prometheus.GaugeVec
	flushes          *prometheus.CounterVec
	flushDuration    *prometheus.HistogramVec
	rowsWritten      *prometheus.CounterVec
	coercionFailures *prometheus.CounterVec
	recordsSkipped   *prometheus.CounterVec
}

// NewCollector creates and registers the collector's vectors on reg. A nil
// reg uses prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		recordsBuffered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_buffered_total",
				Help:      "Records accepted into a buffer, by record spec",
			},
			[]string{"spec"},
		),
		bufferedRecords: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "buffered_records",
				Help:      "Records currently waiting in a buffer, by record spec",
			},
			[]string{"spec"},
		),
		flushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flushes_total",
				Help:      "Buffer flushes, by record spec and result",
			},
			[]string{"spec", "result"},
		),
		flushDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "flush_duration_seconds",
				Help:      "Time spent writing one flushed batch",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"spec"},
		),
		rowsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_written_total",
				Help:      "Rows committed to segments, by record spec",
			},
			[]string{"spec"},
		),
		coercionFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "coercion_failures_total",
				Help:      "Values written as null because they did not parse as their column type",
			},
			[]string{"spec", "field"},
		),
		recordsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_skipped_total",
				Help:      "Records dropped by the skip list, by record spec",
			},
			[]string{"spec"},
		),
	}
}

// RecordBuffered counts one record added to spec's buffer
func (c *Collector) RecordBuffered(spec string) {
	if c == nil {
		return
	}
	c.recordsBuffered.WithLabelValues(spec).Inc()
}

// SetBuffered sets the live buffer size of spec
func (c *Collector) SetBuffered(spec string, n int) {
	if c == nil {
		return
	}
	c.bufferedRecords.WithLabelValues(spec).Set(float64(n))
}

// FlushCompleted records the outcome and duration of one flush
func (c *Collector) FlushCompleted(spec string, err error, d time.Duration) {
	if c == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	c.flushes.WithLabelValues(spec, result).Inc()
	c.flushDuration.WithLabelValues(spec).Observe(d.Seconds())
}

// RowsWritten counts rows committed for spec
func (c *Collector) RowsWritten(spec string, n int) {
	if c == nil {
		return
	}
	c.rowsWritten.WithLabelValues(spec).Add(float64(n))
}

// CoercionFailures counts values of field nulled under the lenient policy
func (c *Collector) CoercionFailures(spec, field string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.coercionFailures.WithLabelValues(spec, field).Add(float64(n))
}

// RecordSkipped counts a record dropped by the skip list
func (c *Collector) RecordSkipped(spec string) {
	if c == nil {
		return
	}
	c.recordsSkipped.WithLabelValues(spec).Inc()
}

// Timer measures the duration of an operation
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the time elapsed since the timer started. It may be called
// more than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker computes records per second between resets. Safe for
// concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
}

// NewThroughputTracker creates a tracker starting now
func NewThroughputTracker() *ThroughputTracker {
	return &ThroughputTracker{lastReset: time.Now()}
}

// Increment adds n records
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset returns records per second since the last reset and starts a
// new window
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}
	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()
	return throughput
}
