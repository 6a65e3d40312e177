package recharge

import (
	"context"
	"errors"
	"time"

	"chat_billing/internal/storage"
	"chat_billing/internal/utils"
)

// DefaultSweepInterval is how often the sweeper scans for overdue
// Pending orders.
const DefaultSweepInterval = 30 * time.Second

// Sweeper is the background process that expires overdue Pending
// orders and deposits notifications for their accounts. It shares the
// store's conditional-transition primitive with the request path, so
// it can never race a confirm or cancel into a double transition.
type Sweeper struct {
	store       storage.Store
	mailbox     *Mailbox
	interval    time.Duration
	logger      *utils.Logger
	now         func() time.Time
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewSweeper creates a sweeper. A non-positive interval falls back to
// the 30-second default.
func NewSweeper(store storage.Store, mailbox *Mailbox, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:       store,
		mailbox:     mailbox,
		interval:    interval,
		logger:      utils.NewLogger("sweeper"),
		now:         time.Now,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the sweep loop goroutine.
func (w *Sweeper) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop gracefully stops the sweeper after the current cycle.
func (w *Sweeper) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

func (w *Sweeper) run(ctx context.Context) {
	defer close(w.stoppedChan)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Expiration sweeper started", "interval", w.interval)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Expiration sweeper stopping")
			return
		case <-ctx.Done():
			w.logger.Info("Expiration sweeper context cancelled")
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				w.logger.Error("Sweep cycle failed", "error", err)
			}
		}
	}
}

// Sweep runs one cycle: every Pending order past its deadline is
// transitioned to Expired and a notification deposited. A failure on
// one order is logged and skipped; it never aborts the remainder, and
// re-running the sweep only touches orders still Pending, so the cycle
// is idempotent per order.
func (w *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := w.now()

	overdue, err := w.store.ExpiredPendingOrders(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, order := range overdue {
		transitioned, err := w.store.ExpireOrder(ctx, order.Username, order.OrderNo, now)
		if err != nil {
			if errors.Is(err, storage.ErrInvalidState) {
				// A confirm or cancel won the race; nothing to do.
				w.logger.Debug("Order left Pending before sweep",
					"user", order.Username, "orderNo", order.OrderNo)
			} else {
				w.logger.Error("Failed to expire order",
					"user", order.Username, "orderNo", order.OrderNo, "error", err)
			}
			continue
		}

		w.mailbox.Deposit(transitioned)
		expired++
		w.logger.Info("Order expired",
			"user", order.Username, "orderNo", order.OrderNo, "amount", order.Amount)
	}

	return expired, nil
}
