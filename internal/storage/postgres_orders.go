package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"chat_billing/internal/models"
)

const orderColumns = `id, order_no, username, amount, status, created_at, expire_at, paid_at, expired_at`

// CreateOrder inserts a Pending order. The partial unique index on
// (username) WHERE status = 'PENDING' makes the one-live-Pending
// invariant atomic with the insert.
func (s *PostgresStore) CreateOrder(ctx context.Context, order *models.RechargeOrder) error {
	query := `
		INSERT INTO recharge_orders
			(id, order_no, username, amount, status, created_at, expire_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.conn.ExecContext(ctx, query,
		order.ID, order.OrderNo, order.Username, order.Amount,
		order.Status, order.CreatedAt, order.ExpireAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch {
			case pqErr.Code == "23505": // unique_violation on the pending index
				return ErrDuplicatePendingOrder
			case pqErr.Code == "23503": // foreign_key_violation on username
				return ErrAccountNotFound
			}
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetOrder retrieves an order scoped to the account.
func (s *PostgresStore) GetOrder(ctx context.Context, username, orderNo string) (*models.RechargeOrder, error) {
	var order models.RechargeOrder
	query := `
		SELECT ` + orderColumns + `
		FROM recharge_orders
		WHERE username = $1 AND order_no = $2
	`

	err := s.conn.GetContext(ctx, &order, query, username, orderNo)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return &order, nil
}

// PendingOrder returns the account's Pending order, or nil when there
// is none.
func (s *PostgresStore) PendingOrder(ctx context.Context, username string) (*models.RechargeOrder, error) {
	var order models.RechargeOrder
	query := `
		SELECT ` + orderColumns + `
		FROM recharge_orders
		WHERE username = $1 AND status = 'PENDING'
	`

	err := s.conn.GetContext(ctx, &order, query, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending order: %w", err)
	}

	return &order, nil
}

// ListOrders returns all of the account's orders, most recent first.
func (s *PostgresStore) ListOrders(ctx context.Context, username string) ([]*models.RechargeOrder, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM recharge_orders
		WHERE username = $1
		ORDER BY created_at DESC
	`

	var orders []*models.RechargeOrder
	if err := s.conn.SelectContext(ctx, &orders, query, username); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return orders, nil
}

// ConfirmOrder moves the order to Paid and credits the account inside
// one transaction. The status precondition rides on the UPDATE, so a
// concurrent confirm, cancel or sweep on the same order loses the race
// cleanly with ErrInvalidState.
func (s *PostgresStore) ConfirmOrder(ctx context.Context, username, orderNo string, paidAt time.Time) (*models.RechargeOrder, decimal.Decimal, error) {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var order models.RechargeOrder
	query := `
		UPDATE recharge_orders
		SET status = $4, paid_at = $3
		WHERE username = $1 AND order_no = $2 AND status = 'PENDING'
		RETURNING ` + orderColumns

	err = tx.GetContext(ctx, &order, query, username, orderNo, paidAt, models.OrderPaid)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, decimal.Zero, ErrInvalidState
		}
		return nil, decimal.Zero, fmt.Errorf("failed to confirm order: %w", err)
	}

	var balance decimal.Decimal
	err = tx.GetContext(ctx, &balance,
		`UPDATE accounts SET balance = balance + $2 WHERE username = $1 RETURNING balance`,
		username, order.Amount)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to credit account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to commit confirmation: %w", err)
	}

	return &order, balance, nil
}

// CancelOrder moves the order to Cancelled under the same conditional
// UPDATE primitive. No ledger effect.
func (s *PostgresStore) CancelOrder(ctx context.Context, username, orderNo string) (*models.RechargeOrder, error) {
	var order models.RechargeOrder
	query := `
		UPDATE recharge_orders
		SET status = $3
		WHERE username = $1 AND order_no = $2 AND status = 'PENDING'
		RETURNING ` + orderColumns

	err := s.conn.GetContext(ctx, &order, query, username, orderNo, models.OrderCancelled)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}

	return &order, nil
}

// ExpireOrder moves the order to Expired under the same conditional
// UPDATE primitive shared with the request path.
func (s *PostgresStore) ExpireOrder(ctx context.Context, username, orderNo string, expiredAt time.Time) (*models.RechargeOrder, error) {
	var order models.RechargeOrder
	query := `
		UPDATE recharge_orders
		SET status = $4, expired_at = $3
		WHERE username = $1 AND order_no = $2 AND status = 'PENDING'
		RETURNING ` + orderColumns

	err := s.conn.GetContext(ctx, &order, query, username, orderNo, expiredAt, models.OrderExpired)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("failed to expire order: %w", err)
	}

	return &order, nil
}

// ExpiredPendingOrders returns all Pending orders past their deadline.
func (s *PostgresStore) ExpiredPendingOrders(ctx context.Context, now time.Time) ([]*models.RechargeOrder, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM recharge_orders
		WHERE status = 'PENDING' AND expire_at < $1
		ORDER BY expire_at
	`

	var orders []*models.RechargeOrder
	if err := s.conn.SelectContext(ctx, &orders, query, now); err != nil {
		return nil, fmt.Errorf("failed to find expired orders: %w", err)
	}

	return orders, nil
}
