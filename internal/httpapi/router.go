// Package httpapi is the REST boundary over the billing core. Routing
// and authentication live here; every business rule stays in the
// services underneath.
package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"chat_billing/internal/billing"
	"chat_billing/internal/config"
	"chat_billing/internal/middleware"
	"chat_billing/internal/queue"
	"chat_billing/internal/recharge"
	"chat_billing/internal/storage"
)

// Dependencies aggregates the services the HTTP layer and the process
// lifecycle need.
type Dependencies struct {
	Store       storage.Store
	Billing     billing.Service
	Recharge    *recharge.Service
	Mailbox     *recharge.Mailbox
	Sweeper     *recharge.Sweeper
	UsageWorker *storage.UsageWorker
	Redis       *redis.Client
}

// Shutdown stops the background workers and closes the store.
func (d *Dependencies) Shutdown(ctx context.Context) error {
	if d.Sweeper != nil {
		_ = d.Sweeper.Stop()
	}
	if d.UsageWorker != nil {
		_ = d.UsageWorker.Stop()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	return d.Store.Close()
}

// NewRouter builds the full dependency graph from configuration and
// returns the router with it. Background workers are created but not
// started; the caller starts them.
func NewRouter(cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	deps := &Dependencies{}

	// Storage backend: Postgres when a DSN is configured, in-memory
	// standalone mode otherwise.
	if cfg.Database.DSN != "" {
		pg, err := storage.NewPostgresStore(storage.DBConfig{
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := pg.Migrate(context.Background()); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		deps.Store = pg
	} else {
		deps.Store = storage.NewMemoryStore()
	}

	// Usage queue: Redis-backed when Redis is enabled.
	queueCfg := queue.DefaultConfig("usage")
	queueCfg.BatchSize = cfg.Queue.BatchSize
	queueCfg.BatchTimeout = cfg.Queue.BatchTimeout

	var usageQueue queue.Queue
	var tracker billing.SpendTracker = billing.NewNoopTracker()

	if cfg.Redis.Enabled {
		deps.Redis = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})

		rq, err := queue.NewRedisQueue(deps.Redis, queueCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Redis queue: %w", err)
		}
		usageQueue = rq
		tracker = billing.NewRedisTracker(deps.Redis)
	} else {
		usageQueue = queue.NewMemoryQueue(queueCfg)
	}

	deps.UsageWorker = storage.NewUsageWorker(usageQueue, deps.Store, queueCfg)
	deps.Billing = billing.NewService(deps.Store, deps.UsageWorker, tracker, cfg.Billing.RatePer10kChars)
	deps.Recharge = recharge.NewService(deps.Store, cfg.Recharge.OrderTTL)
	deps.Mailbox = recharge.NewMailbox()
	deps.Sweeper = recharge.NewSweeper(deps.Store, deps.Mailbox, cfg.Recharge.SweepInterval)

	mux := http.NewServeMux()
	requireAuth := middleware.RequireAuth(cfg.JWTSecret)

	authHandler := &AuthHandler{store: deps.Store, cfg: cfg}
	billingHandler := &BillingHandler{billing: deps.Billing}
	rechargeHandler := &RechargeHandler{recharge: deps.Recharge, mailbox: deps.Mailbox}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	mux.Handle("GET /api/billing/balance", requireAuth(http.HandlerFunc(billingHandler.Balance)))
	mux.Handle("POST /api/billing/debit", requireAuth(http.HandlerFunc(billingHandler.Debit)))
	mux.Handle("POST /api/billing/estimate", requireAuth(http.HandlerFunc(billingHandler.Estimate)))
	mux.Handle("GET /api/billing/usage", requireAuth(http.HandlerFunc(billingHandler.Usage)))

	mux.Handle("POST /api/recharge/orders", requireAuth(http.HandlerFunc(rechargeHandler.CreateOrder)))
	mux.Handle("GET /api/recharge/orders", requireAuth(http.HandlerFunc(rechargeHandler.ListOrders)))
	mux.Handle("GET /api/recharge/orders/pending", requireAuth(http.HandlerFunc(rechargeHandler.PendingOrder)))
	mux.Handle("POST /api/recharge/orders/confirm", requireAuth(http.HandlerFunc(rechargeHandler.ConfirmPayment)))
	mux.Handle("POST /api/recharge/orders/cancel", requireAuth(http.HandlerFunc(rechargeHandler.CancelOrder)))
	mux.Handle("GET /api/recharge/notifications", requireAuth(http.HandlerFunc(rechargeHandler.Notifications)))

	return mux, deps, nil
}
