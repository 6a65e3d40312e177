package models

import (
	"strings"
	"testing"
	"time"
)

func TestOrderStatusText(t *testing.T) {
	cases := map[OrderStatus]string{
		OrderPending:   "awaiting payment",
		OrderPaid:      "paid",
		OrderExpired:   "expired",
		OrderCancelled: "cancelled",
	}
	for status, want := range cases {
		if got := status.Text(); got != want {
			t.Errorf("Text(%s) = %q, want %q", status, got, want)
		}
	}
}

func TestOrderExpiredBy(t *testing.T) {
	now := time.Now()
	order := &RechargeOrder{Status: OrderPending, ExpireAt: now.Add(5 * time.Minute)}

	if order.ExpiredBy(now) {
		t.Error("order should not be expired before its deadline")
	}
	if !order.ExpiredBy(now.Add(5*time.Minute + time.Second)) {
		t.Error("order should be expired after its deadline")
	}

	// Only Pending orders can be overdue.
	order.Status = OrderPaid
	if order.ExpiredBy(now.Add(time.Hour)) {
		t.Error("a paid order is never expired")
	}
}

func TestOrderRemainingSeconds(t *testing.T) {
	now := time.Now()
	order := &RechargeOrder{Status: OrderPending, ExpireAt: now.Add(90 * time.Second)}

	if got := order.RemainingSeconds(now); got != 90 {
		t.Errorf("RemainingSeconds = %d, want 90", got)
	}
	if got := order.RemainingSeconds(now.Add(2 * time.Minute)); got != 0 {
		t.Errorf("RemainingSeconds past deadline = %d, want 0", got)
	}

	order.Status = OrderCancelled
	if got := order.RemainingSeconds(now); got != 0 {
		t.Errorf("RemainingSeconds for terminal order = %d, want 0", got)
	}
}

func TestNewOrderNo(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		no := NewOrderNo()
		if !strings.HasPrefix(no, "RC") {
			t.Fatalf("order number %q lacks RC prefix", no)
		}
		if no != strings.ToUpper(no) {
			t.Fatalf("order number %q is not uppercase", no)
		}
		if seen[no] {
			t.Fatalf("duplicate order number %q", no)
		}
		seen[no] = true
	}
}
