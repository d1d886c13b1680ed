package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/splitledger/internal/adapter/http/handler"
	"github.com/iho/splitledger/internal/adapter/http/middleware"
	"github.com/iho/splitledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Logger            zerolog.Logger
	LedgerHandler     *handler.LedgerHandler
	SettlementHandler *handler.SettlementHandler
	ExpenseHandler    *handler.ExpenseHandler
	ChainHandler      *handler.ChainHandler
	HealthHandler     *handler.HealthHandler
	IdempotencyStore  usecase.IdempotencyStore
	// IdempotencyTTL defaults to usecase.IdempotencyKeyTTL.
	IdempotencyTTL time.Duration
	// SettleLimiter throttles settlement submissions per client. Optional.
	SettleLimiter *middleware.RateLimiter
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics)

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.Logger).WithTTL(cfg.IdempotencyTTL).Wrap)
		}

		r.Route("/groups/{groupID}", func(r chi.Router) {
			r.Get("/ledger", cfg.LedgerHandler.Get)
			r.Get("/balances", cfg.LedgerHandler.Balances)
			r.Get("/debts", cfg.LedgerHandler.Debts)
			r.Post("/expenses", cfg.ExpenseHandler.Create)

			r.Route("/settlements", func(r chi.Router) {
				r.Get("/", cfg.LedgerHandler.Settlements)
				r.Get("/attempts", cfg.SettlementHandler.LatestAttempt)
				r.Delete("/attempts", cfg.SettlementHandler.ResolveAttempt)

				r.Group(func(r chi.Router) {
					if cfg.SettleLimiter != nil {
						r.Use(cfg.SettleLimiter.Limit)
					}
					r.Post("/", cfg.SettlementHandler.Settle)
				})
			})
		})

		r.Get("/chains/{chainRef}/tx/{txHash}", cfg.ChainHandler.Explorer)
	})

	return r
}
