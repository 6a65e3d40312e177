// Package queue buffers usage records between the debit path and the
// worker that persists them. Two backends exist: an in-memory channel
// queue for standalone deployments (records are lost on restart, an
// accepted trade-off) and a Redis list for deployments that want the
// buffer to survive the process.
package queue

import (
	"context"
	"errors"
	"time"

	"chat_billing/internal/models"
)

var (
	// ErrQueueClosed is returned when operating on a closed queue
	ErrQueueClosed = errors.New("queue is closed")
)

// Queue is the transport for usage records awaiting persistence.
type Queue interface {
	// Enqueue adds a record to the queue.
	Enqueue(ctx context.Context, record *models.UsageRecord) error

	// DequeueBatch retrieves up to maxItems records, waiting at most
	// timeout for the first one. Returns an empty slice on timeout.
	DequeueBatch(ctx context.Context, maxItems int, timeout time.Duration) ([]*models.UsageRecord, error)

	// Length returns the current queue length.
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue.
	Close() error
}

// Config holds queue configuration
type Config struct {
	// BatchSize is the maximum number of records drained per batch
	BatchSize int

	// BatchTimeout is how long the worker waits before persisting a
	// partial batch
	BatchTimeout time.Duration

	// QueueName is the name/key for the queue
	QueueName string
}

// DefaultConfig returns default queue configuration
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		QueueName:    queueName,
	}
}
