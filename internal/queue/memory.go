package queue

import (
	"context"
	"sync"
	"time"

	"chat_billing/internal/models"
)

// MemoryQueue implements Queue on a buffered channel.
type MemoryQueue struct {
	records chan *models.UsageRecord
	mu      sync.RWMutex
	closed  bool
}

// NewMemoryQueue creates a new in-memory queue sized for ten batches.
func NewMemoryQueue(config *Config) *MemoryQueue {
	if config == nil {
		config = DefaultConfig("memory")
	}

	return &MemoryQueue{
		records: make(chan *models.UsageRecord, config.BatchSize*10),
	}
}

// Enqueue adds a record to the queue.
func (q *MemoryQueue) Enqueue(ctx context.Context, record *models.UsageRecord) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.records <- record:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DequeueBatch waits up to timeout for the first record, then drains
// whatever else is immediately available, up to maxItems.
func (q *MemoryQueue) DequeueBatch(ctx context.Context, maxItems int, timeout time.Duration) ([]*models.UsageRecord, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	var records []*models.UsageRecord

	select {
	case record := <-q.records:
		records = append(records, record)
	case <-time.After(timeout):
		return records, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for len(records) < maxItems {
		select {
		case record := <-q.records:
			records = append(records, record)
		default:
			return records, nil
		}
	}

	return records, nil
}

// Length returns the current queue length.
func (q *MemoryQueue) Length(ctx context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return 0, ErrQueueClosed
	}

	return len(q.records), nil
}

// Close shuts down the queue.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.records)
	return nil
}
