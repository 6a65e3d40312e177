package recharge

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat_billing/internal/models"
	"chat_billing/internal/storage"
)

// An unpaid order crosses its deadline: one sweep moves it to Expired,
// drops a notification in the mailbox and leaves the balance alone.
func TestSweeper_ExpiresOverdueOrder(t *testing.T) {
	svc, store := newTestService(t, "0.00")
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	order, err := svc.CreateOrder(ctx, "alice", decimal.RequireFromString("10.00"))
	require.NoError(t, err)

	mailbox := NewMailbox()
	sweeper := NewSweeper(store, mailbox, 0)
	sweeper.now = func() time.Time { return base.Add(5*time.Minute + 30*time.Second) }

	expired, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	svc.now = sweeper.now
	pending, err := svc.GetPendingOrder(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, pending)

	notifications := mailbox.PollAndClear("alice")
	require.Len(t, notifications, 1)
	assert.Equal(t, order.OrderNo, notifications[0].OrderNo)
	assert.Equal(t, models.OrderExpired, notifications[0].Status)

	balance, err := store.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "expiration must not touch the balance")

	// Polling drains the mailbox.
	assert.Empty(t, mailbox.PollAndClear("alice"))
}

func TestSweeper_SweepIsIdempotent(t *testing.T) {
	svc, store := newTestService(t, "0.00")
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	_, err := svc.CreateOrder(ctx, "alice", decimal.RequireFromString("10.00"))
	require.NoError(t, err)

	mailbox := NewMailbox()
	sweeper := NewSweeper(store, mailbox, 0)
	sweeper.now = func() time.Time { return base.Add(time.Hour) }

	expired, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	expired, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired, "second sweep must find nothing to expire")

	assert.Equal(t, 1, mailbox.Len(), "only one notification per expiration")
}

func TestSweeper_SkipsLiveOrders(t *testing.T) {
	svc, store := newTestService(t, "0.00")
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	order, err := svc.CreateOrder(ctx, "alice", decimal.RequireFromString("10.00"))
	require.NoError(t, err)

	mailbox := NewMailbox()
	sweeper := NewSweeper(store, mailbox, 0)
	sweeper.now = func() time.Time { return base.Add(4 * time.Minute) }

	expired, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)

	got, err := store.GetOrder(ctx, "alice", order.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, got.Status)
	assert.Zero(t, mailbox.Len())
}

func TestSweeper_StartStop(t *testing.T) {
	store := storage.NewMemoryStore()
	sweeper := NewSweeper(store, NewMailbox(), 10*time.Millisecond)

	sweeper.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, sweeper.Stop())
}

func TestMailbox_PerAccountIsolation(t *testing.T) {
	mailbox := NewMailbox()

	mailbox.Deposit(&models.RechargeOrder{Username: "alice", OrderNo: "a1"})
	mailbox.Deposit(&models.RechargeOrder{Username: "alice", OrderNo: "a2"})
	mailbox.Deposit(&models.RechargeOrder{Username: "bob", OrderNo: "b1"})

	assert.Equal(t, 3, mailbox.Len())

	got := mailbox.PollAndClear("alice")
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].OrderNo)
	assert.Equal(t, "a2", got[1].OrderNo)

	// Draining alice must not disturb bob's entries.
	assert.Equal(t, 1, mailbox.Len())
	require.Len(t, mailbox.PollAndClear("bob"), 1)
	assert.Zero(t, mailbox.Len())
}
