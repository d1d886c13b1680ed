package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/iho/splitledger/internal/adapter/chain"
	httpAdapter "github.com/iho/splitledger/internal/adapter/http"
	"github.com/iho/splitledger/internal/adapter/http/handler"
	"github.com/iho/splitledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/splitledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/splitledger/internal/adapter/repository/redis"
	"github.com/iho/splitledger/internal/infrastructure/config"
	"github.com/iho/splitledger/internal/infrastructure/eventpublisher"
	"github.com/iho/splitledger/internal/infrastructure/logger"
	"github.com/iho/splitledger/internal/infrastructure/metrics"
	"github.com/iho/splitledger/internal/infrastructure/postgres"
	"github.com/iho/splitledger/internal/infrastructure/redis"
	"github.com/iho/splitledger/internal/usecase"
)

const (
	limiterSweepInterval = time.Minute
	limiterMaxIdle       = 10 * time.Minute
	streamMaxLen         = 100_000
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if cfg.AutoMigrate {
		if err := postgres.NewMigrator(cfg.DatabaseURL, cfg.MigrationsPath, logger.Component(log, "migrator")).Up(); err != nil {
			return err
		}
	}

	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, redis.Config{URL: cfg.RedisURL, PoolSize: cfg.RedisPoolSize})
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	m := metrics.New()

	// Initialize repositories
	idGen := postgresRepo.NewULIDGenerator()
	txManager := postgresRepo.NewTxManager(pool)
	store := postgresRepo.NewLedgerStore(pool, postgresRepo.NewRetrier(logger.Component(log, "ledger_store")), idGen)
	expenseRepo := postgresRepo.NewExpenseRepository()
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	locker := redisRepo.NewPairLocker(redisClient, cfg.SettlementLockTTL, log)
	journal := redisRepo.NewAttemptJournal(redisClient, cfg.SettlementAttemptTTL, log)
	gateway := chain.NewGatewayClient(gatewayConfig(cfg, m), logger.Component(log, "chain_gateway"))

	// Initialize use cases
	ledgerUC := usecase.NewGroupLedgerUseCase(store)
	settlementUC := usecase.NewSettlementUseCase(store, gateway, gateway, locker, idGen, m, logger.Component(log, "settlement")).
		WithDefaultAsset(cfg.SettlementAsset)
	expenseUC := usecase.NewExpenseUseCase(txManager, store, expenseRepo, outboxRepo, idGen)

	settleLimiter := middleware.NewRateLimiter(cfg.SettleRateLimit, cfg.SettleRateBurst)

	// Create router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		Logger:            log,
		LedgerHandler:     handler.NewLedgerHandler(ledgerUC),
		SettlementHandler: handler.NewSettlementHandler(ledgerUC, settlementUC, journal),
		ExpenseHandler:    handler.NewExpenseHandler(expenseUC),
		ChainHandler:      handler.NewChainHandler(),
		HealthHandler:     handler.NewHealthHandler(pool, redisClient).WithGateway(gateway),
		IdempotencyStore:  idempotencyStore,
		IdempotencyTTL:    cfg.IdempotencyTTL,
		SettleLimiter:     settleLimiter,
	})

	// Background workers
	relay := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outboxRepo,
		Publisher:  eventpublisher.NewStreamPublisher(redisClient, cfg.OutboxStream, streamMaxLen),
		Logger:     logger.Component(log, "outbox"),
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxInterval,
		Retention:  cfg.OutboxRetention,
		Metrics:    m,
	})
	go func() {
		if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("outbox relay stopped")
		}
	}()
	go sweepLimiter(ctx, settleLimiter, limiterSweepInterval, limiterMaxIdle, m)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

func gatewayConfig(cfg *config.Config, m *metrics.Metrics) chain.Config {
	return chain.Config{
		BaseURL:          cfg.ChainGatewayURL,
		APIKey:           cfg.ChainGatewayAPIKey,
		Timeout:          cfg.ChainGatewayTimeout,
		MaxRetries:       cfg.ChainGatewayMaxRetries,
		BreakerTimeout:   cfg.ChainBreakerTimeout,
		BreakerThreshold: cfg.ChainBreakerThreshold,
		OnStateChange: func(name string, state gobreaker.State) {
			m.SetBreakerState(name, int(state))
		},
	}
}

// sweepLimiter drops idle per-client limiters until ctx is done.
func sweepLimiter(ctx context.Context, rl *middleware.RateLimiter, interval, maxIdle time.Duration, m *metrics.Metrics) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep(maxIdle)
			m.RateLimitedClients.Set(float64(rl.Len()))
		}
	}
}
