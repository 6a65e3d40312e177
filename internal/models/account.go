package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a prepaid user account. The balance is only ever
// mutated through the storage layer's Debit/Credit operations and is
// never negative at any observable point.
type Account struct {
	Username     string          `db:"username" json:"username"`
	PasswordHash string          `db:"password_hash" json:"-"`
	Balance      decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
}
