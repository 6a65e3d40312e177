package billing

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) *RedisTracker {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisTracker(client)
}

func TestRedisTracker_AddSpend(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	// Binary-exact fractions so INCRBYFLOAT accumulates without drift.
	require.NoError(t, tracker.AddSpend(ctx, "alice", decimal.RequireFromString("0.25")))
	require.NoError(t, tracker.AddSpend(ctx, "alice", decimal.RequireFromString("0.25")))
	require.NoError(t, tracker.AddSpend(ctx, "bob", decimal.RequireFromString("0.50")))

	spend, err := tracker.DailySpend(ctx, "alice", time.Now())
	require.NoError(t, err)
	assert.True(t, spend.Equal(decimal.RequireFromString("0.5")), "spend = %s", spend)

	spend, err = tracker.DailySpend(ctx, "bob", time.Now())
	require.NoError(t, err)
	assert.True(t, spend.Equal(decimal.RequireFromString("0.5")))
}

func TestRedisTracker_DailySpend_Empty(t *testing.T) {
	tracker := newTestTracker(t)

	spend, err := tracker.DailySpend(context.Background(), "nobody", time.Now())
	require.NoError(t, err)
	assert.True(t, spend.IsZero())
}

func TestNoopTracker(t *testing.T) {
	tracker := NewNoopTracker()
	ctx := context.Background()

	require.NoError(t, tracker.AddSpend(ctx, "alice", decimal.RequireFromString("1.00")))

	spend, err := tracker.DailySpend(ctx, "alice", time.Now())
	require.NoError(t, err)
	assert.True(t, spend.IsZero())
}
