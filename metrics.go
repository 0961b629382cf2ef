package pagestash

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems.
type MetricsCollector interface {
	// RecordBulkPut is called after each bulk write. table is "chunks" or
	// "images", count the number of rows attempted, retried whether the
	// quota-recovery path ran.
	RecordBulkPut(table string, count int, retried bool, duration time.Duration, err error)

	// RecordEviction is called after each eviction pass.
	RecordEviction(pagesEvicted, chunksEvicted int, duration time.Duration)

	// RecordSnapshotSave is called after each search-index snapshot write.
	RecordSnapshotSave(approxBytes int64, duration time.Duration, err error)

	// RecordQueueOp is called after queue operations ("enqueue", "dequeue",
	// "claim", "done", "failed").
	RecordQueueOp(op string, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBulkPut(string, int, bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordEviction(int, int, time.Duration)                {}
func (NoopMetricsCollector) RecordSnapshotSave(int64, time.Duration, error)        {}
func (NoopMetricsCollector) RecordQueueOp(string, error)                           {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BulkPutCount    atomic.Int64
	BulkPutRows     atomic.Int64
	BulkPutRetries  atomic.Int64
	BulkPutErrors   atomic.Int64
	EvictionCount   atomic.Int64
	PagesEvicted    atomic.Int64
	ChunksEvicted   atomic.Int64
	SnapshotCount   atomic.Int64
	SnapshotErrors  atomic.Int64
	SnapshotBytes   atomic.Int64
	QueueOpCount    atomic.Int64
	QueueOpErrors   atomic.Int64
}

// RecordBulkPut implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBulkPut(table string, count int, retried bool, duration time.Duration, err error) {
	b.BulkPutCount.Add(1)
	b.BulkPutRows.Add(int64(count))
	if retried {
		b.BulkPutRetries.Add(1)
	}
	if err != nil {
		b.BulkPutErrors.Add(1)
	}
}

// RecordEviction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEviction(pagesEvicted, chunksEvicted int, duration time.Duration) {
	b.EvictionCount.Add(1)
	b.PagesEvicted.Add(int64(pagesEvicted))
	b.ChunksEvicted.Add(int64(chunksEvicted))
}

// RecordSnapshotSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshotSave(approxBytes int64, duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	b.SnapshotBytes.Add(approxBytes)
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// RecordQueueOp implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQueueOp(op string, err error) {
	b.QueueOpCount.Add(1)
	if err != nil {
		b.QueueOpErrors.Add(1)
	}
}
