package pipeline

import (
	"time"

	"github.com/ajitpratap0/jvparquet/pkg/models"
	"github.com/ajitpratap0/jvparquet/pkg/pool"
	"github.com/ajitpratap0/jvparquet/pkg/schema"
)

// RecordBatch is an ordered, append-only run of records sharing one spec.
// It is not safe for concurrent use; the buffer manager guards each batch
// with its key's lock.
type RecordBatch struct {
	spec     schema.RecordSpec
	records  []models.ParsedRecord
	capacity int
	oldest   time.Time
}

// NewRecordBatch creates an empty batch for spec
func NewRecordBatch(spec schema.RecordSpec, capacity int) *RecordBatch {
	return &RecordBatch{spec: spec, capacity: capacity}
}

// Spec returns the batch's record spec
func (b *RecordBatch) Spec() schema.RecordSpec {
	return b.spec
}

// Append adds rec at the end of the batch
func (b *RecordBatch) Append(rec models.ParsedRecord, now time.Time) {
	if b.records == nil {
		b.records = pool.GetRecordSlice(b.capacity)
	}
	if len(b.records) == 0 {
		b.oldest = now
	}
	b.records = append(b.records, rec)
}

// Len returns the number of records held
func (b *RecordBatch) Len() int {
	return len(b.records)
}

// Records returns the records in insertion order. The slice is owned by
// the batch.
func (b *RecordBatch) Records() []models.ParsedRecord {
	return b.records
}

// Oldest returns when the first record of the current run was appended
func (b *RecordBatch) Oldest() time.Time {
	return b.oldest
}

// swap hands the current records to the caller and leaves the batch empty
func (b *RecordBatch) swap() []models.ParsedRecord {
	out := b.records
	b.records = nil
	b.oldest = time.Time{}
	return out
}

// requeue puts records back in front of anything appended since they were
// swapped out
func (b *RecordBatch) requeue(records []models.ParsedRecord, since time.Time) {
	if len(records) == 0 {
		return
	}
	if len(b.records) == 0 {
		b.records = records
		b.oldest = since
		return
	}
	merged := make([]models.ParsedRecord, 0, len(records)+len(b.records))
	merged = append(merged, records...)
	merged = append(merged, b.records...)
	pool.PutRecordSlice(b.records)
	pool.PutRecordSlice(records)
	b.records = merged
	b.oldest = since
}
