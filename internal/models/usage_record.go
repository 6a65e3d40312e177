package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UsageRecord is the per-request cost record written after a successful
// debit. Records are immutable once computed and are persisted
// asynchronously by the usage worker.
type UsageRecord struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	Username     string          `db:"username" json:"username"`
	SessionID    string          `db:"session_id" json:"sessionId"`
	InputChars   int             `db:"input_chars" json:"inputChars"`
	OutputChars  int             `db:"output_chars" json:"outputChars"`
	TotalChars   int             `db:"total_chars" json:"totalChars"`
	Cost         decimal.Decimal `db:"cost" json:"cost"`
	BalanceAfter decimal.Decimal `db:"balance_after" json:"balanceAfter"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
}
