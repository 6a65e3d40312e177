// Package billing debits prepaid balances for metered chat usage.
package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"chat_billing/internal/meter"
	"chat_billing/internal/models"
	"chat_billing/internal/storage"
	"chat_billing/internal/utils"
)

// Charge is the outcome of a successful usage debit.
type Charge struct {
	InputChars  int             `json:"inputChars"`
	OutputChars int             `json:"outputChars"`
	TotalChars  int             `json:"totalChars"`
	Cost        decimal.Decimal `json:"cost"`
	NewBalance  decimal.Decimal `json:"newBalance"`
}

// Service meters usage and settles it against account balances.
type Service interface {
	// DebitForUsage computes the cost of an exchange and debits it
	// atomically. Returns storage.ErrInsufficientFunds (balance
	// unchanged) or storage.ErrAccountNotFound on failure.
	DebitForUsage(ctx context.Context, username, sessionID string, inputChars, outputChars int) (*Charge, error)

	// GetBalance returns the account's current balance.
	GetBalance(ctx context.Context, username string) (decimal.Decimal, error)

	// EstimateCost predicts the cost of a message before sending it.
	EstimateCost(message string) decimal.Decimal

	// UsageHistory returns the account's recent usage records.
	UsageHistory(ctx context.Context, username string, limit int) ([]*models.UsageRecord, error)
}

type service struct {
	store   storage.Store
	usage   *storage.UsageWorker
	tracker SpendTracker
	rate    decimal.Decimal
	logger  *utils.Logger
	now     func() time.Time
}

// NewService creates the billing service. The usage worker and spend
// tracker are optional; pass nil / NewNoopTracker() to disable them.
func NewService(store storage.Store, usage *storage.UsageWorker, tracker SpendTracker, ratePerUnit decimal.Decimal) Service {
	if tracker == nil {
		tracker = NewNoopTracker()
	}
	if ratePerUnit.LessThanOrEqual(decimal.Zero) {
		ratePerUnit = meter.DefaultRate
	}
	return &service{
		store:   store,
		usage:   usage,
		tracker: tracker,
		rate:    ratePerUnit,
		logger:  utils.NewLogger("billing"),
		now:     time.Now,
	}
}

func (s *service) DebitForUsage(ctx context.Context, username, sessionID string, inputChars, outputChars int) (*Charge, error) {
	// Malformed counts are normalized here; the meter assumes clean input.
	if inputChars < 0 {
		inputChars = 0
	}
	if outputChars < 0 {
		outputChars = 0
	}

	cost := meter.ComputeCostAtRate(inputChars, outputChars, s.rate)

	newBalance, err := s.store.Debit(ctx, username, cost)
	if err != nil {
		return nil, err
	}

	charge := &Charge{
		InputChars:  inputChars,
		OutputChars: outputChars,
		TotalChars:  inputChars + outputChars,
		Cost:        cost,
		NewBalance:  newBalance,
	}

	s.recordUsage(ctx, username, sessionID, charge)

	s.logger.Info("Usage debited",
		"user", username, "chars", charge.TotalChars,
		"cost", cost, "balance", newBalance)

	return charge, nil
}

// recordUsage persists the cost record and spend counter best-effort:
// the debit has already committed, so failures here are logged, not
// returned.
func (s *service) recordUsage(ctx context.Context, username, sessionID string, charge *Charge) {
	if s.usage != nil {
		record := &models.UsageRecord{
			ID:           uuid.New(),
			Username:     username,
			SessionID:    sessionID,
			InputChars:   charge.InputChars,
			OutputChars:  charge.OutputChars,
			TotalChars:   charge.TotalChars,
			Cost:         charge.Cost,
			BalanceAfter: charge.NewBalance,
			CreatedAt:    s.now(),
		}
		if err := s.usage.Enqueue(ctx, record); err != nil {
			s.logger.Error("Failed to enqueue usage record", "user", username, "error", err)
		}
	}

	if err := s.tracker.AddSpend(ctx, username, charge.Cost); err != nil {
		s.logger.Error("Failed to track spend", "user", username, "error", err)
	}
}

func (s *service) GetBalance(ctx context.Context, username string) (decimal.Decimal, error) {
	return s.store.GetBalance(ctx, username)
}

func (s *service) EstimateCost(message string) decimal.Decimal {
	return meter.EstimateCost(message, s.rate)
}

func (s *service) UsageHistory(ctx context.Context, username string, limit int) ([]*models.UsageRecord, error) {
	return s.store.ListUsageRecords(ctx, username, limit)
}
