package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// SpendTracker keeps running daily spend totals for reporting. It is
// advisory: the ledger, not the tracker, is the source of truth.
type SpendTracker interface {
	AddSpend(ctx context.Context, username string, cost decimal.Decimal) error
	DailySpend(ctx context.Context, username string, day time.Time) (decimal.Decimal, error)
}

// NoopTracker discards spend data, for deployments without Redis.
type NoopTracker struct{}

func NewNoopTracker() *NoopTracker {
	return &NoopTracker{}
}

func (t *NoopTracker) AddSpend(ctx context.Context, username string, cost decimal.Decimal) error {
	return nil
}

func (t *NoopTracker) DailySpend(ctx context.Context, username string, day time.Time) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

// RedisTracker accumulates per-account daily spend in Redis.
type RedisTracker struct {
	redis *redis.Client
}

// NewRedisTracker creates a Redis-backed spend tracker.
func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{redis: client}
}

// addSpendScript increments the counter and refreshes its TTL in one
// atomic round trip.
var addSpendScript = redis.NewScript(`
	local key = KEYS[1]
	local cost = ARGV[1]
	local ttl = tonumber(ARGV[2])

	local total = redis.call('INCRBYFLOAT', key, cost)
	redis.call('EXPIRE', key, ttl)
	return total
`)

// Keep daily counters for 30 days.
const spendTTLSeconds = 30 * 24 * 60 * 60

// AddSpend adds cost to the account's counter for today.
func (t *RedisTracker) AddSpend(ctx context.Context, username string, cost decimal.Decimal) error {
	key := t.dailyKey(username, time.Now())

	_, err := addSpendScript.Run(ctx, t.redis, []string{key}, cost.String(), spendTTLSeconds).Result()
	if err != nil {
		return fmt.Errorf("failed to add spend: %w", err)
	}
	return nil
}

// DailySpend returns the account's accumulated spend for the given day.
func (t *RedisTracker) DailySpend(ctx context.Context, username string, day time.Time) (decimal.Decimal, error) {
	val, err := t.redis.Get(ctx, t.dailyKey(username, day)).Result()
	if err == redis.Nil {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get daily spend: %w", err)
	}

	spend, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed spend counter: %w", err)
	}
	return spend, nil
}

func (t *RedisTracker) dailyKey(username string, day time.Time) string {
	return fmt.Sprintf("spend:%s:%s", username, day.Format("20060102"))
}
