package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"chat_billing/internal/models"
)

// MemoryStore implements Store entirely in memory. It backs standalone
// deployments and tests, mirroring the transactional guarantees of the
// Postgres backend: one mutex per account serializes that account's
// balance and order transitions, and nothing is shared across accounts
// beyond the account map itself.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*memoryAccount
	usageMu  sync.Mutex
	usage    []*models.UsageRecord
}

// memoryAccount bundles one account's balance with its orders so a
// single lock covers both, the same unit the Postgres backend
// serializes per row.
type memoryAccount struct {
	mu      sync.Mutex
	account models.Account
	orders  []*models.RechargeOrder // oldest first
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*memoryAccount),
	}
}

func (s *MemoryStore) entry(username string) (*memoryAccount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.accounts[username]
	return e, ok
}

// CreateAccount inserts a new account.
func (s *MemoryStore) CreateAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.Username]; ok {
		return ErrAccountExists
	}
	s.accounts[account.Username] = &memoryAccount{account: *account}
	return nil
}

// GetAccount returns a copy of the account.
func (s *MemoryStore) GetAccount(ctx context.Context, username string) (*models.Account, error) {
	e, ok := s.entry(username)
	if !ok {
		return nil, ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	account := e.account
	return &account, nil
}

// GetBalance returns the current balance.
func (s *MemoryStore) GetBalance(ctx context.Context, username string) (decimal.Decimal, error) {
	e, ok := s.entry(username)
	if !ok {
		return decimal.Zero, ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.account.Balance, nil
}

// Debit subtracts amount from the balance if it covers the amount.
func (s *MemoryStore) Debit(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	e, ok := s.entry(username)
	if !ok {
		return decimal.Zero, ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.account.Balance.LessThan(amount) {
		return decimal.Zero, ErrInsufficientFunds
	}
	e.account.Balance = e.account.Balance.Sub(amount)
	return e.account.Balance, nil
}

// Credit adds amount to the balance.
func (s *MemoryStore) Credit(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	e, ok := s.entry(username)
	if !ok {
		return decimal.Zero, ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.account.Balance = e.account.Balance.Add(amount)
	return e.account.Balance, nil
}

// CreateOrder inserts a Pending order, enforcing the one-live-Pending
// invariant under the account lock.
func (s *MemoryStore) CreateOrder(ctx context.Context, order *models.RechargeOrder) error {
	e, ok := s.entry(order.Username)
	if !ok {
		return ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, o := range e.orders {
		if o.Status == models.OrderPending {
			return ErrDuplicatePendingOrder
		}
	}

	stored := *order
	e.orders = append(e.orders, &stored)
	return nil
}

func (e *memoryAccount) findOrder(orderNo string) *models.RechargeOrder {
	for _, o := range e.orders {
		if o.OrderNo == orderNo {
			return o
		}
	}
	return nil
}

// GetOrder returns a copy of the order scoped to the account.
func (s *MemoryStore) GetOrder(ctx context.Context, username, orderNo string) (*models.RechargeOrder, error) {
	e, ok := s.entry(username)
	if !ok {
		return nil, ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	o := e.findOrder(orderNo)
	if o == nil {
		return nil, ErrOrderNotFound
	}
	order := *o
	return &order, nil
}

// PendingOrder returns the account's Pending order, if any.
func (s *MemoryStore) PendingOrder(ctx context.Context, username string) (*models.RechargeOrder, error) {
	e, ok := s.entry(username)
	if !ok {
		return nil, ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, o := range e.orders {
		if o.Status == models.OrderPending {
			order := *o
			return &order, nil
		}
	}
	return nil, nil
}

// ListOrders returns the account's orders, most recent first.
func (s *MemoryStore) ListOrders(ctx context.Context, username string) ([]*models.RechargeOrder, error) {
	e, ok := s.entry(username)
	if !ok {
		return nil, ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	orders := make([]*models.RechargeOrder, 0, len(e.orders))
	for _, o := range e.orders {
		order := *o
		orders = append(orders, &order)
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

// ConfirmOrder flips the order to Paid and credits the balance under
// one account lock, so "paid but uncredited" is never observable.
func (s *MemoryStore) ConfirmOrder(ctx context.Context, username, orderNo string, paidAt time.Time) (*models.RechargeOrder, decimal.Decimal, error) {
	e, ok := s.entry(username)
	if !ok {
		return nil, decimal.Zero, ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	o := e.findOrder(orderNo)
	if o == nil {
		return nil, decimal.Zero, ErrOrderNotFound
	}
	if o.Status != models.OrderPending {
		return nil, decimal.Zero, ErrInvalidState
	}

	o.Status = models.OrderPaid
	at := paidAt
	o.PaidAt = &at
	e.account.Balance = e.account.Balance.Add(o.Amount)

	order := *o
	return &order, e.account.Balance, nil
}

// CancelOrder flips the order to Cancelled.
func (s *MemoryStore) CancelOrder(ctx context.Context, username, orderNo string) (*models.RechargeOrder, error) {
	e, ok := s.entry(username)
	if !ok {
		return nil, ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	o := e.findOrder(orderNo)
	if o == nil {
		return nil, ErrOrderNotFound
	}
	if o.Status != models.OrderPending {
		return nil, ErrInvalidState
	}

	o.Status = models.OrderCancelled
	order := *o
	return &order, nil
}

// ExpireOrder flips the order to Expired if it is still Pending.
func (s *MemoryStore) ExpireOrder(ctx context.Context, username, orderNo string, expiredAt time.Time) (*models.RechargeOrder, error) {
	e, ok := s.entry(username)
	if !ok {
		return nil, ErrAccountNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	o := e.findOrder(orderNo)
	if o == nil {
		return nil, ErrOrderNotFound
	}
	if o.Status != models.OrderPending {
		return nil, ErrInvalidState
	}

	o.Status = models.OrderExpired
	at := expiredAt
	o.ExpiredAt = &at
	order := *o
	return &order, nil
}

// ExpiredPendingOrders scans all accounts for Pending orders past their
// deadline.
func (s *MemoryStore) ExpiredPendingOrders(ctx context.Context, now time.Time) ([]*models.RechargeOrder, error) {
	s.mu.RLock()
	entries := make([]*memoryAccount, 0, len(s.accounts))
	for _, e := range s.accounts {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var expired []*models.RechargeOrder
	for _, e := range entries {
		e.mu.Lock()
		for _, o := range e.orders {
			if o.ExpiredBy(now) {
				order := *o
				expired = append(expired, &order)
			}
		}
		e.mu.Unlock()
	}
	return expired, nil
}

// InsertUsageRecords appends a batch of usage records.
func (s *MemoryStore) InsertUsageRecords(ctx context.Context, records []*models.UsageRecord) error {
	s.usageMu.Lock()
	defer s.usageMu.Unlock()

	for _, r := range records {
		record := *r
		s.usage = append(s.usage, &record)
	}
	return nil
}

// ListUsageRecords returns the account's usage records, most recent first.
func (s *MemoryStore) ListUsageRecords(ctx context.Context, username string, limit int) ([]*models.UsageRecord, error) {
	s.usageMu.Lock()
	defer s.usageMu.Unlock()

	var records []*models.UsageRecord
	for i := len(s.usage) - 1; i >= 0; i-- {
		if s.usage[i].Username != username {
			continue
		}
		record := *s.usage[i]
		records = append(records, &record)
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	return records, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
