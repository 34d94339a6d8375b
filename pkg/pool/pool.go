package pool

import (
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/jvparquet/pkg/models"
)

// Pool is a typed sync.Pool with usage statistics. It is safe for
// concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		hits      int64
		misses    int64
	}
}

// New creates a pool. newFn builds a fresh object when the pool is empty;
// reset, when non-nil, clears an object before it is pooled again.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		atomic.AddInt64(&p.stats.misses, 1)
		return newFn()
	}
	return p
}

// Get returns a pooled object or a new one
func (p *Pool[T]) Get() T {
	before := atomic.LoadInt64(&p.stats.misses)
	obj := p.pool.Get().(T)
	if atomic.LoadInt64(&p.stats.misses) == before {
		atomic.AddInt64(&p.stats.hits, 1)
	}
	atomic.AddInt64(&p.stats.inUse, 1)
	return obj
}

// Put resets obj and returns it to the pool
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns the number of objects created, currently checked out,
// served from the pool, and built on demand. Hits and misses are
// approximate under concurrent use.
func (p *Pool[T]) Stats() (allocated, inUse, hits, misses int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.hits),
		atomic.LoadInt64(&p.stats.misses)
}

// DefaultRecordSliceCapacity is the capacity of a freshly built record slice
const DefaultRecordSliceCapacity = 1000

// RecordSlices pools the backing arrays of buffered batches. Slices are
// stored by pointer so Put does not allocate.
var RecordSlices = New(
	func() *[]models.ParsedRecord {
		s := make([]models.ParsedRecord, 0, DefaultRecordSliceCapacity)
		return &s
	},
	func(s *[]models.ParsedRecord) {
		clear(*s)
		*s = (*s)[:0]
	},
)

// GetRecordSlice returns an empty record slice with at least capacity room
func GetRecordSlice(capacity int) []models.ParsedRecord {
	sp := RecordSlices.Get()
	if cap(*sp) < capacity {
		RecordSlices.Put(sp)
		return make([]models.ParsedRecord, 0, capacity)
	}
	return (*sp)[:0]
}

// PutRecordSlice returns s to RecordSlices. The caller must not use s
// afterwards.
func PutRecordSlice(s []models.ParsedRecord) {
	if cap(s) == 0 {
		return
	}
	RecordSlices.Put(&s)
}

// BufferPool hands out byte slices from power-of-four size buckets.
// Requests above the largest bucket are allocated directly.
type BufferPool struct {
	pools []*Pool[[]byte]
	sizes []int
}

// NewBufferPool creates a pool with buckets from 4KB to 16MB
func NewBufferPool() *BufferPool {
	sizes := []int{
		4 << 10,
		16 << 10,
		64 << 10,
		256 << 10,
		1 << 20,
		4 << 20,
		16 << 20,
	}

	pools := make([]*Pool[[]byte], len(sizes))
	for i, size := range sizes {
		pools[i] = New(func() []byte { return make([]byte, size) }, nil)
	}
	return &BufferPool{pools: pools, sizes: sizes}
}

// Get returns a buffer of length size from the smallest bucket that fits
func (p *BufferPool) Get(size int) []byte {
	for i, s := range p.sizes {
		if s >= size {
			return p.pools[i].Get()[:size]
		}
	}
	return make([]byte, size)
}

// Put returns buf to the bucket matching its capacity; other buffers are
// left to the garbage collector.
func (p *BufferPool) Put(buf []byte) {
	for i, s := range p.sizes {
		if s == cap(buf) {
			p.pools[i].Put(buf[:cap(buf)])
			return
		}
	}
}

// Buffers is the process-wide buffer pool
var Buffers = NewBufferPool()
