package storage

import (
	"context"
	"fmt"

	"chat_billing/internal/models"
)

// InsertUsageRecords persists a batch of usage records in one
// transaction.
func (s *PostgresStore) InsertUsageRecords(ctx context.Context, records []*models.UsageRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO usage_records
			(id, username, session_id, input_chars, output_chars, total_chars,
			 cost, balance_after, created_at)
		VALUES (:id, :username, :session_id, :input_chars, :output_chars,
			:total_chars, :cost, :balance_after, :created_at)
	`

	for _, record := range records {
		if _, err := tx.NamedExecContext(ctx, query, record); err != nil {
			return fmt.Errorf("failed to insert usage record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit usage records: %w", err)
	}
	return nil
}

// ListUsageRecords returns the account's usage records, most recent
// first, up to limit (0 means no limit).
func (s *PostgresStore) ListUsageRecords(ctx context.Context, username string, limit int) ([]*models.UsageRecord, error) {
	query := `
		SELECT id, username, session_id, input_chars, output_chars,
		       total_chars, cost, balance_after, created_at
		FROM usage_records
		WHERE username = $1
		ORDER BY created_at DESC
	`
	args := []interface{}{username}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	var records []*models.UsageRecord
	if err := s.conn.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}

	return records, nil
}
