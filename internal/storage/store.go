package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"chat_billing/internal/models"
)

// Store is the transactional state behind the billing core: accounts
// with their balances, recharge orders, and usage records.
//
// The unit of serialization is one account: its balance and its
// Pending-order slot. Every mutating method below is atomic with
// respect to all other calls touching the same account, and unrelated
// accounts never contend. Two backends exist: PostgresStore for
// deployments and MemoryStore for standalone mode and tests.
type Store interface {
	// CreateAccount inserts a new account. Returns ErrAccountExists if
	// the username is taken.
	CreateAccount(ctx context.Context, account *models.Account) error

	// GetAccount returns the account or ErrAccountNotFound.
	GetAccount(ctx context.Context, username string) (*models.Account, error)

	// GetBalance returns the current balance or ErrAccountNotFound.
	GetBalance(ctx context.Context, username string) (decimal.Decimal, error)

	// Debit atomically subtracts amount from the balance and returns the
	// new balance. Returns ErrInsufficientFunds (balance unchanged) when
	// the balance is smaller than amount. The balance can never be
	// observed below zero under any interleaving of concurrent calls.
	Debit(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error)

	// Credit atomically adds amount to the balance and returns the new
	// balance.
	Credit(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error)

	// CreateOrder inserts a new Pending order. Returns
	// ErrDuplicatePendingOrder if the account already has one; the
	// check is atomic with the insert.
	CreateOrder(ctx context.Context, order *models.RechargeOrder) error

	// GetOrder returns the order scoped to the account, or ErrOrderNotFound.
	GetOrder(ctx context.Context, username, orderNo string) (*models.RechargeOrder, error)

	// PendingOrder returns the account's Pending order, or (nil, nil)
	// when there is none.
	PendingOrder(ctx context.Context, username string) (*models.RechargeOrder, error)

	// ListOrders returns all orders for the account, most recent first.
	ListOrders(ctx context.Context, username string) ([]*models.RechargeOrder, error)

	// ConfirmOrder transitions the order Pending -> Paid and credits the
	// account in one atomic unit. Returns the updated order and the new
	// balance. Returns ErrInvalidState if the order is no longer Pending
	// (the precondition is evaluated atomically with the write).
	ConfirmOrder(ctx context.Context, username, orderNo string, paidAt time.Time) (*models.RechargeOrder, decimal.Decimal, error)

	// CancelOrder transitions the order Pending -> Cancelled. No ledger
	// effect. Returns ErrInvalidState if the order is no longer Pending.
	CancelOrder(ctx context.Context, username, orderNo string) (*models.RechargeOrder, error)

	// ExpireOrder transitions the order Pending -> Expired. Returns
	// ErrInvalidState if the order is no longer Pending, so a lost race
	// against a concurrent confirm or cancel is a no-op.
	ExpireOrder(ctx context.Context, username, orderNo string, expiredAt time.Time) (*models.RechargeOrder, error)

	// ExpiredPendingOrders returns all Pending orders whose deadline has
	// passed at the given instant, across all accounts.
	ExpiredPendingOrders(ctx context.Context, now time.Time) ([]*models.RechargeOrder, error)

	// InsertUsageRecords persists a batch of usage records.
	InsertUsageRecords(ctx context.Context, records []*models.UsageRecord) error

	// ListUsageRecords returns the account's usage records, most recent first.
	ListUsageRecords(ctx context.Context, username string, limit int) ([]*models.UsageRecord, error)

	// Close releases the store's resources.
	Close() error
}
