package billing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat_billing/internal/models"
	"chat_billing/internal/queue"
	"chat_billing/internal/storage"
)

func newTestBilling(t *testing.T, balance string) (Service, *storage.MemoryStore, *queue.MemoryQueue) {
	t.Helper()

	store := storage.NewMemoryStore()
	err := store.CreateAccount(context.Background(), &models.Account{
		Username:  "alice",
		Balance:   decimal.RequireFromString(balance),
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	q := queue.NewMemoryQueue(nil)
	worker := storage.NewUsageWorker(q, store, nil)

	return NewService(store, worker, nil, decimal.Zero), store, q
}

func TestService_DebitForUsage(t *testing.T) {
	svc, store, q := newTestBilling(t, "10.00")
	ctx := context.Background()

	charge, err := svc.DebitForUsage(ctx, "alice", "session-1", 5000, 7345)
	require.NoError(t, err)

	assert.Equal(t, 12345, charge.TotalChars)
	assert.True(t, charge.Cost.Equal(decimal.RequireFromString("1.23")), "cost = %s", charge.Cost)
	assert.True(t, charge.NewBalance.Equal(decimal.RequireFromString("8.77")), "newBalance = %s", charge.NewBalance)

	balance, err := store.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, balance.Equal(charge.NewBalance))

	// The cost record went through the queue.
	records, err := q.DequeueBatch(ctx, 10, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "alice", records[0].Username)
	assert.Equal(t, "session-1", records[0].SessionID)
	assert.Equal(t, 5000, records[0].InputChars)
	assert.Equal(t, 7345, records[0].OutputChars)
	assert.True(t, records[0].Cost.Equal(charge.Cost))
	assert.True(t, records[0].BalanceAfter.Equal(charge.NewBalance))
}

func TestService_DebitForUsage_InsufficientFunds(t *testing.T) {
	svc, store, q := newTestBilling(t, "0.50")
	ctx := context.Background()

	_, err := svc.DebitForUsage(ctx, "alice", "session-1", 5000, 7345)
	assert.Equal(t, storage.ErrInsufficientFunds, err)

	// A refused debit leaves no trace: balance intact, nothing queued.
	balance, err := store.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("0.50")), "balance = %s", balance)

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestService_DebitForUsage_UnknownAccount(t *testing.T) {
	svc, _, _ := newTestBilling(t, "10.00")

	_, err := svc.DebitForUsage(context.Background(), "nobody", "session-1", 100, 100)
	assert.Equal(t, storage.ErrAccountNotFound, err)
}

func TestService_DebitForUsage_ClampsNegativeCounts(t *testing.T) {
	svc, _, _ := newTestBilling(t, "10.00")

	charge, err := svc.DebitForUsage(context.Background(), "alice", "session-1", -500, 50)
	require.NoError(t, err)

	assert.Equal(t, 0, charge.InputChars)
	assert.Equal(t, 50, charge.TotalChars)
	assert.True(t, charge.Cost.Equal(decimal.RequireFromString("0.01")), "cost = %s", charge.Cost)
}

func TestService_EstimateCost(t *testing.T) {
	svc, _, _ := newTestBilling(t, "0.00")

	// 6000 runes in, doubled for the expected reply: 12000 chars -> 1.20.
	message := make([]rune, 6000)
	for i := range message {
		message[i] = '字'
	}
	estimate := svc.EstimateCost(string(message))
	assert.True(t, estimate.Equal(decimal.RequireFromString("1.20")), "estimate = %s", estimate)
}

func TestService_UsageHistory(t *testing.T) {
	svc, store, _ := newTestBilling(t, "0.00")
	ctx := context.Background()

	require.NoError(t, store.InsertUsageRecords(ctx, []*models.UsageRecord{
		{Username: "alice", TotalChars: 100, Cost: decimal.RequireFromString("0.01"), CreatedAt: time.Now()},
	}))

	records, err := svc.UsageHistory(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
