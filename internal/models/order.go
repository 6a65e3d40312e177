package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the state of a recharge order. PENDING is the only
// transient state; the other three are terminal.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderExpired   OrderStatus = "EXPIRED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Text returns the display text for a status. The switch is exhaustive
// over the closed status set so a new status cannot be added without
// updating the mapping.
func (s OrderStatus) Text() string {
	switch s {
	case OrderPending:
		return "awaiting payment"
	case OrderPaid:
		return "paid"
	case OrderExpired:
		return "expired"
	case OrderCancelled:
		return "cancelled"
	}
	return string(s)
}

// MinOrderAmount is the smallest amount a recharge order may carry.
var MinOrderAmount = decimal.NewFromInt(1)

// RechargeOrder is a time-boxed top-up order. Orders are retained as
// history and never deleted; only the status field moves, and only
// forward (PENDING -> PAID | EXPIRED | CANCELLED).
type RechargeOrder struct {
	ID        uuid.UUID       `db:"id" json:"-"`
	OrderNo   string          `db:"order_no" json:"orderNo"`
	Username  string          `db:"username" json:"username"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Status    OrderStatus     `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	ExpireAt  time.Time       `db:"expire_at" json:"expireAt"`
	PaidAt    *time.Time      `db:"paid_at" json:"paidAt,omitempty"`
	ExpiredAt *time.Time      `db:"expired_at" json:"expiredAt,omitempty"`
}

// ExpiredBy reports whether the order is a Pending order whose payment
// deadline has already passed at the given instant.
func (o *RechargeOrder) ExpiredBy(now time.Time) bool {
	return o.Status == OrderPending && o.ExpireAt.Before(now)
}

// RemainingSeconds returns how many seconds remain to pay the order.
// Zero for non-Pending orders, never negative.
func (o *RechargeOrder) RemainingSeconds(now time.Time) int64 {
	if o.Status != OrderPending {
		return 0
	}
	remaining := int64(o.ExpireAt.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// NewOrderNo generates a globally unique order number: "RC" followed by
// a millisecond timestamp and six random uppercase characters.
func NewOrderNo() string {
	suffix := strings.ToUpper(uuid.NewString()[:6])
	return fmt.Sprintf("RC%d%s", time.Now().UnixMilli(), suffix)
}
