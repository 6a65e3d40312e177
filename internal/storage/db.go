package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// DBConfig holds database configuration
type DBConfig struct {
	DSN string

	// Pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultDBConfig returns default database configuration
func DefaultDBConfig() DBConfig {
	return DBConfig{
		DSN:             "host=localhost port=5432 dbname=chatbilling sslmode=disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// PostgresStore implements Store on PostgreSQL. Atomic per-account
// transitions are conditional UPDATEs: the status or balance
// precondition is evaluated by the database in the same statement as
// the write, so the request path and the sweeper share one primitive.
type PostgresStore struct {
	conn *sqlx.DB
}

// NewPostgresStore connects to the database and configures the pool.
func NewPostgresStore(cfg DBConfig) (*PostgresStore, error) {
	conn, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return &PostgresStore{conn: conn}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.conn.Close()
}

// Ping checks if the database is reachable
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// schema creates the tables the billing core owns. The partial unique
// index backs the at-most-one-Pending-order-per-account invariant at
// the storage level, independent of the create-time check.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		username      TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		balance       NUMERIC(10,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS recharge_orders (
		id         UUID PRIMARY KEY,
		order_no   TEXT NOT NULL UNIQUE,
		username   TEXT NOT NULL REFERENCES accounts(username),
		amount     NUMERIC(10,2) NOT NULL CHECK (amount >= 1.00),
		status     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		expire_at  TIMESTAMPTZ NOT NULL,
		paid_at    TIMESTAMPTZ,
		expired_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS recharge_orders_one_pending
		ON recharge_orders (username) WHERE status = 'PENDING'`,
	`CREATE INDEX IF NOT EXISTS recharge_orders_expiry
		ON recharge_orders (expire_at) WHERE status = 'PENDING'`,
	`CREATE TABLE IF NOT EXISTS usage_records (
		id            UUID PRIMARY KEY,
		username      TEXT NOT NULL REFERENCES accounts(username),
		session_id    TEXT NOT NULL DEFAULT '',
		input_chars   INTEGER NOT NULL,
		output_chars  INTEGER NOT NULL,
		total_chars   INTEGER NOT NULL,
		cost          NUMERIC(10,2) NOT NULL,
		balance_after NUMERIC(10,2) NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS usage_records_by_user
		ON usage_records (username, created_at DESC)`,
}

// Migrate applies the schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
