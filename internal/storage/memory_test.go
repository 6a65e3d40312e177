package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat_billing/internal/models"
)

func newTestAccount(t *testing.T, s *MemoryStore, username, balance string) {
	t.Helper()
	err := s.CreateAccount(context.Background(), &models.Account{
		Username:  username,
		Balance:   decimal.RequireFromString(balance),
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}

func newTestOrder(username, amount string) *models.RechargeOrder {
	now := time.Now()
	return &models.RechargeOrder{
		ID:        uuid.New(),
		OrderNo:   models.NewOrderNo(),
		Username:  username,
		Amount:    decimal.RequireFromString(amount),
		Status:    models.OrderPending,
		CreatedAt: now,
		ExpireAt:  now.Add(5 * time.Minute),
	}
}

func TestMemoryStore_Accounts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	newTestAccount(t, s, "alice", "10.00")

	if err := s.CreateAccount(ctx, &models.Account{Username: "alice"}); err != ErrAccountExists {
		t.Errorf("duplicate CreateAccount = %v, want ErrAccountExists", err)
	}

	balance, err := s.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("10.00")))

	if _, err := s.GetBalance(ctx, "nobody"); err != ErrAccountNotFound {
		t.Errorf("GetBalance for missing account = %v, want ErrAccountNotFound", err)
	}
}

func TestMemoryStore_DebitCredit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	newTestAccount(t, s, "alice", "0.50")

	// Debit larger than balance fails and leaves it untouched.
	_, err := s.Debit(ctx, "alice", decimal.RequireFromString("1.23"))
	assert.Equal(t, ErrInsufficientFunds, err)

	balance, err := s.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("0.50")), "balance changed on failed debit: %s", balance)

	// Exact debit down to zero is allowed.
	newBalance, err := s.Debit(ctx, "alice", decimal.RequireFromString("0.50"))
	require.NoError(t, err)
	assert.True(t, newBalance.IsZero())

	newBalance, err = s.Credit(ctx, "alice", decimal.RequireFromString("7.25"))
	require.NoError(t, err)
	assert.True(t, newBalance.Equal(decimal.RequireFromString("7.25")))
}

// The ledger property: under any interleaving of concurrent debits the
// balance never goes negative and exactly the affordable number of
// debits succeed.
func TestMemoryStore_ConcurrentDebits(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	newTestAccount(t, s, "alice", "10.00")
	amount := decimal.RequireFromString("0.30")

	const attempts = 100
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Debit(ctx, "alice", amount); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// 33 * 0.30 = 9.90 fits in 10.00; a 34th debit would overdraw.
	assert.Equal(t, 33, successes)

	balance, err := s.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, balance.IsNegative(), "balance went negative: %s", balance)

	spent := amount.Mul(decimal.NewFromInt(int64(successes)))
	assert.True(t, balance.Equal(decimal.RequireFromString("10.00").Sub(spent)),
		"balance %s does not account for %d debits", balance, successes)
}

func TestMemoryStore_PendingOrderUniqueness(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	newTestAccount(t, s, "alice", "0.00")

	require.NoError(t, s.CreateOrder(ctx, newTestOrder("alice", "10.00")))

	err := s.CreateOrder(ctx, newTestOrder("alice", "20.00"))
	assert.Equal(t, ErrDuplicatePendingOrder, err)

	// Other accounts are unaffected.
	newTestAccount(t, s, "bob", "0.00")
	require.NoError(t, s.CreateOrder(ctx, newTestOrder("bob", "10.00")))
}

func TestMemoryStore_ConcurrentConfirms(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	newTestAccount(t, s, "alice", "0.00")
	order := newTestOrder("alice", "10.00")
	require.NoError(t, s.CreateOrder(ctx, order))

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, invalidState := 0, 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.ConfirmOrder(ctx, "alice", order.OrderNo, time.Now())
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				successes++
			case ErrInvalidState:
				invalidState++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes, "exactly one confirm must win")
	assert.Equal(t, attempts-1, invalidState)

	// Credited exactly once.
	balance, err := s.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("10.00")), "balance = %s", balance)
}

func TestMemoryStore_ExpireOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	newTestAccount(t, s, "alice", "0.00")
	order := newTestOrder("alice", "10.00")
	require.NoError(t, s.CreateOrder(ctx, order))

	expired, err := s.ExpireOrder(ctx, "alice", order.OrderNo, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.OrderExpired, expired.Status)
	require.NotNil(t, expired.ExpiredAt)

	// Expiring again is a lost race, not an error class of its own.
	_, err = s.ExpireOrder(ctx, "alice", order.OrderNo, time.Now())
	assert.Equal(t, ErrInvalidState, err)

	// A terminal order never re-enters Pending.
	pending, err := s.PendingOrder(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestMemoryStore_ListOrders(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	newTestAccount(t, s, "alice", "0.00")

	first := newTestOrder("alice", "10.00")
	first.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, s.CreateOrder(ctx, first))
	_, err := s.CancelOrder(ctx, "alice", first.OrderNo)
	require.NoError(t, err)

	second := newTestOrder("alice", "20.00")
	require.NoError(t, s.CreateOrder(ctx, second))

	orders, err := s.ListOrders(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.OrderNo, orders[0].OrderNo, "most recent order must come first")
	assert.Equal(t, first.OrderNo, orders[1].OrderNo)
}

func TestMemoryStore_UsageRecords(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	records := []*models.UsageRecord{
		{ID: uuid.New(), Username: "alice", TotalChars: 100, Cost: decimal.RequireFromString("0.01"), CreatedAt: time.Now()},
		{ID: uuid.New(), Username: "bob", TotalChars: 200, Cost: decimal.RequireFromString("0.02"), CreatedAt: time.Now()},
		{ID: uuid.New(), Username: "alice", TotalChars: 300, Cost: decimal.RequireFromString("0.03"), CreatedAt: time.Now()},
	}
	require.NoError(t, s.InsertUsageRecords(ctx, records))

	got, err := s.ListUsageRecords(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 300, got[0].TotalChars, "most recent record must come first")

	got, err = s.ListUsageRecords(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
