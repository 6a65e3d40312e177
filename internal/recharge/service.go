// Package recharge owns the recharge-order lifecycle: creation,
// confirmation, cancellation and time-based expiration.
package recharge

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"chat_billing/internal/models"
	"chat_billing/internal/storage"
	"chat_billing/internal/utils"
)

// ErrAmountTooSmall is returned when a recharge amount is below the
// 1.00 minimum.
var ErrAmountTooSmall = errors.New("recharge amount must be at least 1.00")

// DefaultOrderTTL is how long an order stays payable after creation.
const DefaultOrderTTL = 5 * time.Minute

// Service drives the order state machine. All transitions go through
// the store's conditional-update primitive, the same one the sweeper
// uses, so a request and a sweep racing on one order resolve through a
// single atomic precondition.
type Service struct {
	store    storage.Store
	orderTTL time.Duration
	logger   *utils.Logger
	now      func() time.Time
}

// NewService creates the order lifecycle service. A non-positive
// orderTTL falls back to the 5-minute default.
func NewService(store storage.Store, orderTTL time.Duration) *Service {
	if orderTTL <= 0 {
		orderTTL = DefaultOrderTTL
	}
	return &Service{
		store:    store,
		orderTTL: orderTTL,
		logger:   utils.NewLogger("recharge"),
		now:      time.Now,
	}
}

// CreateOrder opens a new Pending order for the account. An existing
// Pending order whose deadline has passed is lazily expired first; a
// still-live one fails the call with ErrDuplicatePendingOrder.
func (s *Service) CreateOrder(ctx context.Context, username string, amount decimal.Decimal) (*models.RechargeOrder, error) {
	if amount.LessThan(models.MinOrderAmount) {
		return nil, ErrAmountTooSmall
	}

	if _, err := s.store.GetAccount(ctx, username); err != nil {
		return nil, err
	}

	pending, err := s.store.PendingOrder(ctx, username)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		if !pending.ExpiredBy(s.now()) {
			return nil, storage.ErrDuplicatePendingOrder
		}
		s.lazyExpire(ctx, pending)
	}

	order := &models.RechargeOrder{
		ID:        uuid.New(),
		OrderNo:   models.NewOrderNo(),
		Username:  username,
		Amount:    amount.Round(2),
		Status:    models.OrderPending,
		CreatedAt: s.now(),
	}
	order.ExpireAt = order.CreatedAt.Add(s.orderTTL)

	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("Recharge order created",
		"user", username, "orderNo", order.OrderNo, "amount", order.Amount)

	return order, nil
}

// ConfirmPayment settles a Pending order: the status flip and the
// balance credit commit as one atomic unit. Expiration takes precedence
// over a late confirmation.
func (s *Service) ConfirmPayment(ctx context.Context, username, orderNo string) (*models.RechargeOrder, error) {
	order, err := s.store.GetOrder(ctx, username, orderNo)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderPending {
		return nil, storage.ErrInvalidState
	}
	if order.ExpiredBy(s.now()) {
		s.lazyExpire(ctx, order)
		return nil, storage.ErrOrderExpired
	}

	confirmed, newBalance, err := s.store.ConfirmOrder(ctx, username, orderNo, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("Recharge confirmed",
		"user", username, "orderNo", orderNo,
		"amount", confirmed.Amount, "newBalance", newBalance)

	return confirmed, nil
}

// CancelOrder moves a Pending order to Cancelled. No ledger effect.
func (s *Service) CancelOrder(ctx context.Context, username, orderNo string) (*models.RechargeOrder, error) {
	order, err := s.store.GetOrder(ctx, username, orderNo)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderPending {
		return nil, storage.ErrInvalidState
	}

	cancelled, err := s.store.CancelOrder(ctx, username, orderNo)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Recharge order cancelled", "user", username, "orderNo", orderNo)

	return cancelled, nil
}

// GetPendingOrder returns the account's live Pending order, lazily
// expiring one whose deadline has passed.
func (s *Service) GetPendingOrder(ctx context.Context, username string) (*models.RechargeOrder, error) {
	order, err := s.store.PendingOrder(ctx, username)
	if err != nil || order == nil {
		return nil, err
	}
	if order.ExpiredBy(s.now()) {
		s.lazyExpire(ctx, order)
		return nil, nil
	}
	return order, nil
}

// ListOrders returns all of the account's orders, most recent first.
func (s *Service) ListOrders(ctx context.Context, username string) ([]*models.RechargeOrder, error) {
	return s.store.ListOrders(ctx, username)
}

// lazyExpire applies the sweeper's transition rule inline. Losing the
// race to a concurrent confirm, cancel or sweep is a no-op.
func (s *Service) lazyExpire(ctx context.Context, order *models.RechargeOrder) {
	_, err := s.store.ExpireOrder(ctx, order.Username, order.OrderNo, s.now())
	if err != nil && !errors.Is(err, storage.ErrInvalidState) {
		s.logger.Error("Failed to expire order",
			"user", order.Username, "orderNo", order.OrderNo, "error", err)
	}
}
