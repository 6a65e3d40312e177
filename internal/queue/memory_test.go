package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"chat_billing/internal/models"
)

func testRecord(username string) *models.UsageRecord {
	return &models.UsageRecord{
		ID:         uuid.New(),
		Username:   username,
		InputChars: 100,
		TotalChars: 100,
		Cost:       decimal.RequireFromString("0.01"),
		CreatedAt:  time.Now(),
	}
}

func TestMemoryQueue_EnqueueDequeue(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()

	record := testRecord("alice")
	if err := q.Enqueue(ctx, record); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	records, err := q.DequeueBatch(ctx, 1, time.Second)
	if err != nil {
		t.Fatalf("DequeueBatch failed: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].ID != record.ID {
		t.Errorf("Expected %s, got %s", record.ID, records[0].ID)
	}
}

func TestMemoryQueue_Batching(t *testing.T) {
	config := DefaultConfig("test")
	config.BatchSize = 5
	q := NewMemoryQueue(config)
	defer q.Close()

	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := q.Enqueue(ctx, testRecord("bob")); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	records, err := q.DequeueBatch(ctx, 5, time.Second)
	if err != nil {
		t.Fatalf("DequeueBatch failed: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("Expected 5 records, got %d", len(records))
	}

	length, err := q.Length(ctx)
	if err != nil {
		t.Fatalf("Length failed: %v", err)
	}
	if length != 5 {
		t.Errorf("Expected 5 remaining, got %d", length)
	}
}

func TestMemoryQueue_DequeueTimeout(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	defer q.Close()

	start := time.Now()
	records, err := q.DequeueBatch(context.Background(), 10, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("DequeueBatch failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected empty batch on timeout, got %d records", len(records))
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Returned before timeout: %v", elapsed)
	}
}

func TestMemoryQueue_Closed(t *testing.T) {
	q := NewMemoryQueue(DefaultConfig("test"))
	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := q.Enqueue(context.Background(), testRecord("carol")); err != ErrQueueClosed {
		t.Errorf("Enqueue on closed queue = %v, want ErrQueueClosed", err)
	}

	// Closing twice is fine
	if err := q.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}

func TestMemoryQueue_ConcurrentProducers(t *testing.T) {
	config := DefaultConfig("test")
	config.BatchSize = 100
	q := NewMemoryQueue(config)
	defer q.Close()

	ctx := context.Background()
	const producers = 10
	const perProducer = 20

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				if err := q.Enqueue(ctx, testRecord("dave")); err != nil {
					t.Errorf("Enqueue failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	total := 0
	for {
		records, err := q.DequeueBatch(ctx, 100, 50*time.Millisecond)
		if err != nil {
			t.Fatalf("DequeueBatch failed: %v", err)
		}
		if len(records) == 0 {
			break
		}
		total += len(records)
	}

	if total != producers*perProducer {
		t.Errorf("Expected %d records, got %d", producers*perProducer, total)
	}
}
