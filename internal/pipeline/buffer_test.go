package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/jvparquet/pkg/errors"
	"github.com/ajitpratap0/jvparquet/pkg/metrics"
	"github.com/ajitpratap0/jvparquet/pkg/models"
	"github.com/ajitpratap0/jvparquet/pkg/schema"
)

// fakeWriter records every batch it is given and fails on demand
type fakeWriter struct {
	mu       sync.Mutex
	batches  map[schema.RecordSpec][][]models.ParsedRecord
	failNext map[schema.RecordSpec]int
	failErr  error
	closed   int
	delay    time.Duration

	inflight      map[schema.RecordSpec]int
	overlapped    atomic.Bool
	running       atomic.Int32
	maxConcurrent atomic.Int32
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{
		batches:  make(map[schema.RecordSpec][][]models.ParsedRecord),
		failNext: make(map[schema.RecordSpec]int),
		inflight: make(map[schema.RecordSpec]int),
	}
}

func (w *fakeWriter) WriteBatch(_ context.Context, spec schema.RecordSpec, records []models.ParsedRecord) error {
	n := w.running.Add(1)
	defer w.running.Add(-1)
	for {
		m := w.maxConcurrent.Load()
		if n <= m || w.maxConcurrent.CompareAndSwap(m, n) {
			break
		}
	}

	w.mu.Lock()
	w.inflight[spec]++
	if w.inflight[spec] > 1 {
		w.overlapped.Store(true)
	}
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.inflight[spec]--
		w.mu.Unlock()
	}()

	if w.delay > 0 {
		time.Sleep(w.delay)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failNext[spec] > 0 {
		w.failNext[spec]--
		if w.failErr != nil {
			return w.failErr
		}
		return errors.New(errors.ErrorTypeFile, "disk full")
	}
	w.batches[spec] = append(w.batches[spec], append([]models.ParsedRecord(nil), records...))
	return nil
}

func (w *fakeWriter) Close(context.Context, schema.RecordSpec) error { return nil }

func (w *fakeWriter) CloseAll(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
	return nil
}

func (w *fakeWriter) failTimes(spec schema.RecordSpec, n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failNext[spec] = n
}

func (w *fakeWriter) written(spec schema.RecordSpec) [][]models.ParsedRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.batches[spec]
}

// seqs returns the "seq" field of every record written for spec, in order
func (w *fakeWriter) seqs(spec schema.RecordSpec) []string {
	var out []string
	for _, batch := range w.written(spec) {
		for _, rec := range batch {
			text, _ := rec.Fields.Get("seq").Text()
			out = append(out, text)
		}
	}
	return out
}

func seqFields(i int) models.FieldMap {
	return models.FieldsFromStrings(map[string]string{"seq": strconv.Itoa(i)})
}

func newTestManager(t *testing.T, w *fakeWriter, cfg *BufferConfig, opts ...BufferOption) *BufferManager {
	t.Helper()
	m, err := NewBufferManager(w, cfg, zaptest.NewLogger(t), opts...)
	require.NoError(t, err)
	return m
}

func TestBufferManager_FlushAtThreshold(t *testing.T) {
	w := newFakeWriter()
	m := newTestManager(t, w, &BufferConfig{BatchSize: 3, MaxParallelism: 1})
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, "HN", seqFields(0)))
	require.NoError(t, m.Add(ctx, "HN", seqFields(1)))
	assert.False(t, m.ShouldFlush("HN"))
	assert.Equal(t, 2, m.BufferSize("HN"))
	assert.Empty(t, w.written("HN"))

	require.NoError(t, m.Add(ctx, "HN", seqFields(2)))
	require.Len(t, w.written("HN"), 1)
	assert.Equal(t, []string{"0", "1", "2"}, w.seqs("HN"))
	assert.Equal(t, 0, m.BufferSize("HN"))
	assert.False(t, m.ShouldFlush("HN"))
}

func TestBufferManager_FlushEmptyAndUnknown(t *testing.T) {
	w := newFakeWriter()
	m := newTestManager(t, w, nil)
	ctx := context.Background()

	require.NoError(t, m.Flush(ctx, "SE"))
	require.NoError(t, m.Add(ctx, "HN", seqFields(0)))
	require.NoError(t, m.Flush(ctx, "HN"))
	require.NoError(t, m.Flush(ctx, "HN"))

	assert.Len(t, w.written("HN"), 1)
	assert.Equal(t, 0, m.BufferSize("SE"))
	assert.Equal(t, []schema.RecordSpec{"HN"}, m.Keys())
}

func TestBufferManager_RequeueOnFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	w := newFakeWriter()
	m := newTestManager(t, w, &BufferConfig{BatchSize: 10, MaxParallelism: 1},
		WithBufferMetrics(metrics.NewCollector(reg)))
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, "SE", seqFields(0)))
	require.NoError(t, m.Add(ctx, "SE", seqFields(1)))

	w.failTimes("SE", 1)
	err := m.Flush(ctx, "SE")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
	assert.True(t, errors.IsRetryable(err))
	assert.Equal(t, 2, m.BufferSize("SE"))

	require.NoError(t, m.Add(ctx, "SE", seqFields(2)))
	require.NoError(t, m.Flush(ctx, "SE"))

	require.Len(t, w.written("SE"), 1)
	assert.Equal(t, []string{"0", "1", "2"}, w.seqs("SE"))
	assert.Equal(t, 0, m.BufferSize("SE"))

	count, err := testutil.GatherAndCount(reg, "jvparquet_flushes_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one success and one failure series")
}

func TestBufferManager_AddReportsFlushFailure(t *testing.T) {
	w := newFakeWriter()
	w.failTimes("HN", 1)
	m := newTestManager(t, w, &BufferConfig{BatchSize: 2, MaxParallelism: 1})
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, "HN", seqFields(0)))
	err := m.Add(ctx, "HN", seqFields(1))
	require.Error(t, err)
	assert.Equal(t, 2, m.BufferSize("HN"))

	// the next add retries the requeued records along with the new one
	require.NoError(t, m.Add(ctx, "HN", seqFields(2)))
	assert.Equal(t, []string{"0", "1", "2"}, w.seqs("HN"))
}

func TestBufferManager_FlushAllAggregates(t *testing.T) {
	w := newFakeWriter()
	w.failTimes("SE", 1)
	w.failTimes("UM", 1)
	m := newTestManager(t, w, &BufferConfig{BatchSize: 100, MaxParallelism: 2})
	ctx := context.Background()

	for _, spec := range []schema.RecordSpec{"HN", "SE", "UM", "RA"} {
		for i := 0; i < 3; i++ {
			require.NoError(t, m.Add(ctx, spec, seqFields(i)))
		}
	}

	err := m.FlushAll(ctx)
	require.Error(t, err)
	assert.Len(t, errors.Errors(err), 2)

	assert.Len(t, w.seqs("HN"), 3)
	assert.Len(t, w.seqs("RA"), 3)
	assert.Equal(t, 3, m.BufferSize("SE"))
	assert.Equal(t, 3, m.BufferSize("UM"))

	require.NoError(t, m.FlushAll(ctx))
	assert.Equal(t, 0, m.Buffered())
	assert.Equal(t, []string{"0", "1", "2"}, w.seqs("UM"))
}

func TestBufferManager_FlushAllBoundedParallelism(t *testing.T) {
	w := newFakeWriter()
	w.delay = 20 * time.Millisecond
	m := newTestManager(t, w, &BufferConfig{BatchSize: 100, MaxParallelism: 2})
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		spec := schema.RecordSpec(fmt.Sprintf("A%d", i))
		require.NoError(t, m.Add(ctx, spec, seqFields(i)))
	}
	require.NoError(t, m.FlushAll(ctx))

	assert.LessOrEqual(t, w.maxConcurrent.Load(), int32(2))
	assert.Equal(t, 0, m.Buffered())
}

func TestBufferManager_ConcurrentAdds(t *testing.T) {
	w := newFakeWriter()
	w.delay = time.Millisecond
	m := newTestManager(t, w, &BufferConfig{BatchSize: 7, MaxParallelism: 4})
	ctx := context.Background()

	specs := []schema.RecordSpec{"HN", "SE", "UM", "RA"}
	const producers, perProducer = 8, 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				spec := specs[(p+i)%len(specs)]
				fields := models.FieldsFromStrings(map[string]string{
					"producer": strconv.Itoa(p),
					"seq":      strconv.Itoa(i),
				})
				assert.NoError(t, m.Add(ctx, spec, fields))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, m.FlushAll(ctx))

	assert.False(t, w.overlapped.Load(), "two flushes of one key ran at once")

	total := 0
	for _, spec := range specs {
		last := map[string]int{}
		for _, batch := range w.written(spec) {
			total += len(batch)
			for _, rec := range batch {
				producer, _ := rec.Fields.Get("producer").Text()
				seqText, _ := rec.Fields.Get("seq").Text()
				seq, _ := strconv.Atoi(seqText)
				prev, seen := last[producer]
				if seen {
					assert.Greater(t, seq, prev, "producer %s out of order for %s", producer, spec)
				}
				last[producer] = seq
			}
		}
	}
	assert.Equal(t, producers*perProducer, total)
}

func TestBufferManager_AutoFlushKeepsBatchSize(t *testing.T) {
	w := newFakeWriter()
	w.delay = 2 * time.Millisecond
	m := newTestManager(t, w, &BufferConfig{BatchSize: 10, MaxParallelism: 1})
	ctx := context.Background()

	const producers, perProducer = 8, 200
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, m.Add(ctx, "SE", seqFields(i)))
			}
		}()
	}
	wg.Wait()

	auto := w.written("SE")
	require.NotEmpty(t, auto)
	for i, batch := range auto {
		assert.GreaterOrEqual(t, len(batch), 10, "segment %d written below the batch size", i)
	}

	require.NoError(t, m.FlushAll(ctx))
	assert.Len(t, w.seqs("SE"), producers*perProducer)
}

func TestBufferManager_Close(t *testing.T) {
	w := newFakeWriter()
	m := newTestManager(t, w, nil)
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, "HN", seqFields(0)))
	require.NoError(t, m.Add(ctx, "SE", seqFields(0)))
	require.NoError(t, m.Close(ctx))

	assert.Len(t, w.written("HN"), 1)
	assert.Len(t, w.written("SE"), 1)
	assert.Equal(t, 1, w.closed)

	err := m.Add(ctx, "HN", seqFields(1))
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	require.NoError(t, m.Close(ctx))
}

func TestBufferManager_CloseLogsPoolUsage(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	m, err := NewBufferManager(newFakeWriter(), nil, zap.New(core))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, "HN", seqFields(0)))
	require.NoError(t, m.Close(ctx))

	entries := logs.FilterMessage("record slice pool").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	for _, key := range []string{"allocated", "in_use", "hits", "misses"} {
		assert.Contains(t, fields, key)
	}
}

func TestBufferManager_CloseReportsFailures(t *testing.T) {
	w := newFakeWriter()
	w.failTimes("SE", 1)
	m := newTestManager(t, w, nil)
	ctx := context.Background()

	require.NoError(t, m.Add(ctx, "SE", seqFields(0)))
	require.Error(t, m.Close(ctx))
	assert.Equal(t, 1, m.BufferSize("SE"))

	// a second close retries what the first could not write
	require.NoError(t, m.Close(ctx))
	assert.Len(t, w.written("SE"), 1)
}

func TestBufferManager_CloseRacingAdds(t *testing.T) {
	w := newFakeWriter()
	m := newTestManager(t, w, &BufferConfig{BatchSize: 25, MaxParallelism: 2})
	ctx := context.Background()

	var accepted atomic.Int64
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				err := m.Add(ctx, "RA", seqFields(i))
				if err != nil {
					assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
					return
				}
				accepted.Add(1)
			}
		}()
	}

	require.Eventually(t, func() bool { return accepted.Load() > 100 }, 2*time.Second, time.Millisecond)
	require.NoError(t, m.Close(ctx))
	wg.Wait()

	// every accepted record made it into a segment
	assert.Equal(t, 0, m.Buffered())
	assert.Len(t, w.seqs("RA"), int(accepted.Load()))
}

func TestBufferManager_RejectedBatchLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	w := newFakeWriter()
	w.failErr = errors.New(errors.ErrorTypeConversion, "field Odds is not an integer")
	w.failTimes("O1", 1)

	m, err := NewBufferManager(w, &BufferConfig{BatchSize: 1, MaxParallelism: 1}, zap.New(core))
	require.NoError(t, err)
	ctx := context.Background()

	err = m.Add(ctx, "O1", seqFields(0))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConversion))
	assert.False(t, errors.IsRetryable(err))
	assert.Equal(t, 1, m.BufferSize("O1"))

	rejected := logs.FilterMessage("batch rejected, records kept until close")
	require.Equal(t, 1, rejected.Len())
	assert.Equal(t, int64(1), rejected.All()[0].ContextMap()["requeued_rows"])
	assert.Zero(t, logs.FilterMessage("flush failed").Len())

	require.NoError(t, m.Close(ctx))
	assert.Equal(t, []string{"0"}, w.seqs("O1"))
}

func TestBufferManager_IntervalFlush(t *testing.T) {
	w := newFakeWriter()
	m := newTestManager(t, w, &BufferConfig{BatchSize: 100, MaxParallelism: 1, FlushInterval: 20 * time.Millisecond})
	ctx := context.Background()
	defer func() { _ = m.Close(ctx) }()

	require.NoError(t, m.Add(ctx, "HN", seqFields(0)))
	require.Eventually(t, func() bool {
		return len(w.written("HN")) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, m.BufferSize("HN"))
}

func TestNewBufferManager_Validation(t *testing.T) {
	_, err := NewBufferManager(nil, nil, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = NewBufferManager(newFakeWriter(), &BufferConfig{BatchSize: 0}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRecordBatch_Requeue(t *testing.T) {
	b := NewRecordBatch("HN", 4)
	t0 := time.Unix(100, 0)
	b.Append(models.NewParsedRecord("HN", seqFields(0)), t0)
	b.Append(models.NewParsedRecord("HN", seqFields(1)), t0.Add(time.Second))
	assert.Equal(t, t0, b.Oldest())

	out := b.swap()
	assert.Equal(t, 0, b.Len())
	assert.True(t, b.Oldest().IsZero())

	b.Append(models.NewParsedRecord("HN", seqFields(2)), t0.Add(2*time.Second))
	b.requeue(out, t0)

	var got []string
	for _, rec := range b.Records() {
		s, _ := rec.Fields.Get("seq").Text()
		got = append(got, s)
	}
	assert.Equal(t, []string{"0", "1", "2"}, got)
	assert.Equal(t, t0, b.Oldest())
	assert.Equal(t, schema.RecordSpec("HN"), b.Spec())
}
