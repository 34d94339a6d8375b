// Package pool recycles the short-lived allocations of a conversion run:
// the record slices that back each buffered batch and the line buffers
// used by the feed reader.
//
// Batches are swapped out of the buffer manager on every flush. Once the
// writer has committed a batch its slice goes back to RecordSlices and the
// next batch for any record spec reuses it:
//
//	records := pool.GetRecordSlice(1000)
//	records = append(records, rec)
//	...
//	pool.PutRecordSlice(records)
//
// Pool[T] is the generic building block; it adds hit and miss counters on
// top of sync.Pool.
package pool
