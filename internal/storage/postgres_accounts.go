package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"chat_billing/internal/models"
)

// CreateAccount inserts a new account row.
func (s *PostgresStore) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (username, password_hash, balance, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO NOTHING
	`

	res, err := s.conn.ExecContext(ctx, query,
		account.Username, account.PasswordHash, account.Balance, account.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAccountExists
	}
	return nil
}

// GetAccount retrieves an account by username.
func (s *PostgresStore) GetAccount(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	query := `
		SELECT username, password_hash, balance, created_at
		FROM accounts
		WHERE username = $1
	`

	err := s.conn.GetContext(ctx, &account, query, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

// GetBalance returns the account's current balance.
func (s *PostgresStore) GetBalance(ctx context.Context, username string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.conn.GetContext(ctx, &balance,
		`SELECT balance FROM accounts WHERE username = $1`, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}

	return balance, nil
}

// Debit subtracts amount from the balance in a single conditional
// UPDATE: the balance check and the write are one atomic statement, so
// concurrent debits on the same row serialize on the row lock and the
// balance can never go negative.
func (s *PostgresStore) Debit(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	query := `
		UPDATE accounts
		SET balance = balance - $2
		WHERE username = $1 AND balance >= $2
		RETURNING balance
	`

	err := s.conn.GetContext(ctx, &balance, query, username, amount)
	if err == nil {
		return balance, nil
	}
	if err != sql.ErrNoRows {
		return decimal.Zero, fmt.Errorf("failed to debit account: %w", err)
	}

	// No row updated: either the account is missing or the balance was
	// too small. Look again to tell the two apart.
	if _, err := s.GetBalance(ctx, username); err != nil {
		return decimal.Zero, err
	}
	return decimal.Zero, ErrInsufficientFunds
}

// Credit adds amount to the balance atomically.
func (s *PostgresStore) Credit(ctx context.Context, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	query := `
		UPDATE accounts
		SET balance = balance + $2
		WHERE username = $1
		RETURNING balance
	`

	err := s.conn.GetContext(ctx, &balance, query, username, amount)
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to credit account: %w", err)
	}

	return balance, nil
}
