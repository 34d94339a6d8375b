package pipeline

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/jvparquet/pkg/errors"
	"github.com/ajitpratap0/jvparquet/pkg/formats/columnar"
	"github.com/ajitpratap0/jvparquet/pkg/metrics"
	"github.com/ajitpratap0/jvparquet/pkg/models"
	"github.com/ajitpratap0/jvparquet/pkg/observability"
	"github.com/ajitpratap0/jvparquet/pkg/pool"
	"github.com/ajitpratap0/jvparquet/pkg/schema"
)

// BufferConfig controls when batches are flushed
type BufferConfig struct {
	// BatchSize is the record count at which a key is flushed
	BatchSize int
	// MaxParallelism bounds concurrent flushes in FlushAll
	MaxParallelism int
	// FlushInterval, when positive, also flushes any key whose oldest
	// buffered record is at least this old
	FlushInterval time.Duration
}

// DefaultBufferConfig returns the default buffer configuration
func DefaultBufferConfig() *BufferConfig {
	return &BufferConfig{
		BatchSize:      1000,
		MaxParallelism: runtime.NumCPU(),
	}
}

// keyBuffer is the state of one record spec. mu guards batch and is held
// only for short in-memory steps; flushMu is held across the whole
// swap-write-requeue sequence so one flush per key is in flight.
type keyBuffer struct {
	mu      sync.Mutex
	flushMu sync.Mutex
	batch   *RecordBatch
}

// BufferManager accumulates records per record spec and hands full batches
// to a columnar writer. Keys never block each other beyond the map lookup.
type BufferManager struct {
	writer  columnar.Writer
	config  *BufferConfig
	logger  *zap.Logger
	metrics *metrics.Collector
	now     func() time.Time

	mu      sync.RWMutex
	buffers map[schema.RecordSpec]*keyBuffer

	// closeMu is held shared by Add and exclusively while Close marks the
	// manager closed, so no Add can slip a record in after the final flush
	closeMu   sync.RWMutex
	closed    bool
	closeOnce sync.Once
	stop      chan struct{}
	loopDone  chan struct{}
}

// BufferOption configures a BufferManager
type BufferOption func(*BufferManager)

// WithBufferMetrics records buffer and flush metrics on c
func WithBufferMetrics(c *metrics.Collector) BufferOption {
	return func(m *BufferManager) { m.metrics = c }
}

// WithBufferClock overrides the time source used for flush ages
func WithBufferClock(now func() time.Time) BufferOption {
	return func(m *BufferManager) { m.now = now }
}

// NewBufferManager creates a manager flushing into writer. A positive
// FlushInterval starts a background loop that runs until Close.
func NewBufferManager(writer columnar.Writer, config *BufferConfig, logger *zap.Logger, opts ...BufferOption) (*BufferManager, error) {
	if writer == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "columnar writer is required")
	}
	if config == nil {
		config = DefaultBufferConfig()
	}
	if config.BatchSize <= 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "batch size must be positive, got %d", config.BatchSize)
	}
	if config.MaxParallelism <= 0 {
		config.MaxParallelism = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &BufferManager{
		writer:   writer,
		config:   config,
		logger:   logger.With(zap.String("component", "buffer_manager")),
		now:      time.Now,
		buffers:  make(map[schema.RecordSpec]*keyBuffer),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if config.FlushInterval > 0 {
		go m.intervalLoop()
	} else {
		close(m.loopDone)
	}
	return m, nil
}

// buffer returns spec's state, creating it on first use
func (m *BufferManager) buffer(spec schema.RecordSpec) *keyBuffer {
	m.mu.RLock()
	kb, ok := m.buffers[spec]
	m.mu.RUnlock()
	if ok {
		return kb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if kb, ok = m.buffers[spec]; !ok {
		kb = &keyBuffer{batch: NewRecordBatch(spec, m.config.BatchSize)}
		m.buffers[spec] = kb
	}
	return kb
}

func (m *BufferManager) lookup(spec schema.RecordSpec) (*keyBuffer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	kb, ok := m.buffers[spec]
	return kb, ok
}

// Add appends a record to spec's batch. When the batch reaches the batch
// size it is flushed before Add returns, and a failed flush is reported
// here; the records stay buffered for a later flush.
//
// A batch the writer rejects as unconvertible under strict coercion stays
// buffered too, so every later Add that reaches the threshold retries it and
// fails the same way, as does Close. Such keys are logged as "batch
// rejected" rather than "flush failed".
func (m *BufferManager) Add(ctx context.Context, spec schema.RecordSpec, fields models.FieldMap) error {
	m.closeMu.RLock()
	defer m.closeMu.RUnlock()
	if m.closed {
		return errors.New(errors.ErrorTypeValidation, "buffer manager is closed").
			WithDetail("record_spec", spec.String())
	}

	kb := m.buffer(spec)
	kb.mu.Lock()
	kb.batch.Append(models.NewParsedRecord(spec, fields), m.now())
	n := kb.batch.Len()
	kb.mu.Unlock()

	m.metrics.RecordBuffered(spec.String())
	m.metrics.SetBuffered(spec.String(), n)

	if n >= m.config.BatchSize {
		return m.flush(ctx, spec, kb, true)
	}
	return nil
}

// Flush writes spec's current batch regardless of its size. Flushing an
// empty or unknown key succeeds without writing.
func (m *BufferManager) Flush(ctx context.Context, spec schema.RecordSpec) error {
	kb, ok := m.lookup(spec)
	if !ok {
		return nil
	}
	return m.flush(ctx, spec, kb, false)
}

// flush writes kb's batch. An automatic flush writes only if the batch still
// holds BatchSize records once it has the key.
func (m *BufferManager) flush(ctx context.Context, spec schema.RecordSpec, kb *keyBuffer, auto bool) (err error) {
	kb.flushMu.Lock()
	defer kb.flushMu.Unlock()

	kb.mu.Lock()
	if auto && kb.batch.Len() < m.config.BatchSize {
		kb.mu.Unlock()
		return nil
	}
	since := kb.batch.Oldest()
	records := kb.batch.swap()
	kb.mu.Unlock()

	if len(records) == 0 {
		return nil
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanFlush, spec.String(), len(records))
	defer func() { observability.EndSpan(span, err) }()

	timer := metrics.NewTimer()
	err = m.writer.WriteBatch(ctx, spec, records)
	elapsed := timer.Stop()
	m.metrics.FlushCompleted(spec.String(), err, elapsed)

	if err != nil {
		rows := len(records)
		kb.mu.Lock()
		kb.batch.requeue(records, since)
		n := kb.batch.Len()
		kb.mu.Unlock()
		m.metrics.SetBuffered(spec.String(), n)

		msg := "flush failed"
		if errors.IsType(err, errors.ErrorTypeConversion) {
			msg = "batch rejected, records kept until close"
		}
		m.logger.Error(msg,
			zap.String("record_spec", spec.String()),
			zap.Int("requeued_rows", rows),
			zap.Bool("retryable", errors.IsRetryable(err)),
			zap.Error(err))
		return errors.Wrap(err, errors.TypeOf(err), "flush failed").
			WithDetail("record_spec", spec.String()).
			WithDetail("rows", rows)
	}

	kb.mu.Lock()
	n := kb.batch.Len()
	kb.mu.Unlock()
	m.metrics.SetBuffered(spec.String(), n)

	m.logger.Info("batch flushed",
		zap.String("record_spec", spec.String()),
		zap.Int("rows", len(records)),
		zap.Duration("duration", elapsed))
	pool.PutRecordSlice(records)
	return nil
}

// FlushAll flushes every key, at most MaxParallelism at a time. Every key
// is attempted; the failures are returned together.
func (m *BufferManager) FlushAll(ctx context.Context) error {
	specs := m.Keys()
	errs := make([]error, len(specs))

	var g errgroup.Group
	g.SetLimit(m.config.MaxParallelism)
	for i, spec := range specs {
		g.Go(func() error {
			errs[i] = m.Flush(ctx, spec)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Combine(errs...)
}

// BufferSize returns the number of records waiting in spec's batch
func (m *BufferManager) BufferSize(spec schema.RecordSpec) int {
	kb, ok := m.lookup(spec)
	if !ok {
		return 0
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()
	return kb.batch.Len()
}

// ShouldFlush reports whether spec's batch has reached the batch size
func (m *BufferManager) ShouldFlush(spec schema.RecordSpec) bool {
	return m.BufferSize(spec) >= m.config.BatchSize
}

// Keys returns every spec seen so far, sorted
func (m *BufferManager) Keys() []schema.RecordSpec {
	m.mu.RLock()
	defer m.mu.RUnlock()
	specs := make([]schema.RecordSpec, 0, len(m.buffers))
	for spec := range m.buffers {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i] < specs[j] })
	return specs
}

// Buffered returns the total number of records waiting across all keys
func (m *BufferManager) Buffered() int {
	total := 0
	for _, spec := range m.Keys() {
		total += m.BufferSize(spec)
	}
	return total
}

// Close stops the interval loop, flushes every key and closes the writer.
// Later calls to Add fail. Close may be called again to retry records a
// previous Close could not write.
func (m *BufferManager) Close(ctx context.Context) error {
	m.closeMu.Lock()
	m.closed = true
	m.closeMu.Unlock()
	m.closeOnce.Do(func() { close(m.stop) })
	<-m.loopDone

	flushErr := m.FlushAll(ctx)
	closeErr := m.writer.CloseAll(ctx)

	if left := m.Buffered(); left > 0 {
		m.logger.Warn("records left unwritten at close", zap.Int("records", left))
	}
	allocated, inUse, hits, misses := pool.RecordSlices.Stats()
	m.logger.Debug("record slice pool",
		zap.Int64("allocated", allocated),
		zap.Int64("in_use", inUse),
		zap.Int64("hits", hits),
		zap.Int64("misses", misses))
	return errors.Combine(flushErr, closeErr)
}

// intervalLoop flushes keys whose oldest record has waited FlushInterval
func (m *BufferManager) intervalLoop() {
	defer close(m.loopDone)

	tick := m.config.FlushInterval / 2
	if tick <= 0 {
		tick = m.config.FlushInterval
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.flushStale(context.Background())
		}
	}
}

func (m *BufferManager) flushStale(ctx context.Context) {
	now := m.now()
	for _, spec := range m.Keys() {
		kb, _ := m.lookup(spec)
		kb.mu.Lock()
		stale := kb.batch.Len() > 0 && now.Sub(kb.batch.Oldest()) >= m.config.FlushInterval
		kb.mu.Unlock()
		if !stale {
			continue
		}
		if err := m.flush(ctx, spec, kb, false); err != nil {
			m.logger.Warn("interval flush failed",
				zap.String("record_spec", spec.String()),
				zap.Error(err))
		}
	}
}
