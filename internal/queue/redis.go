package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chat_billing/internal/models"
)

// RedisQueue implements Queue on a Redis list, so buffered usage
// records survive a process restart.
type RedisQueue struct {
	client *redis.Client
	qKey   string
}

// NewRedisQueue creates a Redis-backed queue on an existing client.
func NewRedisQueue(client *redis.Client, config *Config) (*RedisQueue, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisQueue{
		client: client,
		qKey:   fmt.Sprintf("queue:%s", config.QueueName),
	}, nil
}

// Enqueue pushes a JSON-encoded record onto the list.
func (q *RedisQueue) Enqueue(ctx context.Context, record *models.UsageRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal usage record: %w", err)
	}

	if err := q.client.RPush(ctx, q.qKey, data).Err(); err != nil {
		return fmt.Errorf("failed to push to Redis: %w", err)
	}

	return nil
}

// DequeueBatch blocks up to timeout for the first record, then drains
// whatever else is immediately available, up to maxItems.
func (q *RedisQueue) DequeueBatch(ctx context.Context, maxItems int, timeout time.Duration) ([]*models.UsageRecord, error) {
	result, err := q.client.BLPop(ctx, timeout, q.qKey).Result()
	if err == redis.Nil {
		return []*models.UsageRecord{}, nil // Timeout, no records
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop from Redis: %w", err)
	}

	// result[0] is the key, result[1] is the value
	first, err := decode(result[1])
	if err != nil {
		return nil, err
	}
	records := []*models.UsageRecord{first}

	for len(records) < maxItems {
		raw, err := q.client.LPop(ctx, q.qKey).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return records, nil // Return what we have so far
		}
		record, err := decode(raw)
		if err != nil {
			continue // Skip malformed entries
		}
		records = append(records, record)
	}

	return records, nil
}

func decode(raw string) (*models.UsageRecord, error) {
	var record models.UsageRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal usage record: %w", err)
	}
	return &record, nil
}

// Length returns the current queue length.
func (q *RedisQueue) Length(ctx context.Context) (int, error) {
	length, err := q.client.LLen(ctx, q.qKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return int(length), nil
}

// Close shuts down the queue. The client is shared and stays open.
func (q *RedisQueue) Close() error {
	return nil
}
