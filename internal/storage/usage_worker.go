package storage

import (
	"context"
	"time"

	"chat_billing/internal/models"
	"chat_billing/internal/queue"
	"chat_billing/internal/utils"
)

// UsageWorker drains the usage queue and persists records in batches.
// A failed batch falls back to individual inserts; a record that still
// fails is logged and dropped rather than stalling the queue.
type UsageWorker struct {
	queue       queue.Queue
	store       Store
	config      *queue.Config
	logger      *utils.Logger
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewUsageWorker creates a new usage worker.
func NewUsageWorker(q queue.Queue, store Store, config *queue.Config) *UsageWorker {
	if config == nil {
		config = queue.DefaultConfig("usage")
	}

	return &UsageWorker{
		queue:       q,
		store:       store,
		config:      config,
		logger:      utils.NewLogger("usage-worker"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Enqueue hands a usage record to the queue.
func (w *UsageWorker) Enqueue(ctx context.Context, record *models.UsageRecord) error {
	return w.queue.Enqueue(ctx, record)
}

// Start starts the worker goroutine.
func (w *UsageWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the worker after the current batch.
func (w *UsageWorker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

func (w *UsageWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Usage worker stopping")
			return
		case <-ctx.Done():
			w.logger.Info("Usage worker context cancelled")
			return
		default:
			w.processBatch(ctx)
		}
	}
}

func (w *UsageWorker) processBatch(ctx context.Context) {
	records, err := w.queue.DequeueBatch(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		if err == queue.ErrQueueClosed || ctx.Err() != nil {
			return
		}
		w.logger.Error("Failed to dequeue usage records", "error", err)
		time.Sleep(1 * time.Second) // Back off on error
		return
	}

	if len(records) == 0 {
		return
	}

	w.logger.Debug("Persisting usage batch", "count", len(records))

	if err := w.store.InsertUsageRecords(ctx, records); err == nil {
		return
	}

	w.logger.Error("Batch insert failed, falling back to individual inserts", "count", len(records))
	for _, record := range records {
		if err := w.store.InsertUsageRecords(ctx, []*models.UsageRecord{record}); err != nil {
			w.logger.Error("Dropping usage record",
				"id", record.ID, "user", record.Username, "error", err)
		}
	}
}
