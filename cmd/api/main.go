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

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/gateway"
	"storefront/internal/handler"
	"storefront/internal/intent"
	"storefront/internal/lock"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/outbox"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting storefront API server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(cfg.Database.ConnectionString(), logger); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	m := metrics.New()

	// Repositories
	transactor := repository.NewTransactor(pool, logger)
	productRepo := repository.NewProductRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	inventoryRepo := repository.NewInventoryRepository(pool, logger)
	outboxStore := outbox.NewStore(pool, logger)

	// Payment gateway
	var (
		gw             gateway.Gateway
		sandboxHandler *handler.SandboxHandler
	)
	switch cfg.Gateway.Mode {
	case "http":
		gw = gateway.NewHTTPGateway(gateway.HTTPConfig{
			BaseURL:   cfg.Gateway.BaseURL,
			SecretKey: cfg.Gateway.SecretKey,
			Timeout:   cfg.Gateway.Timeout(),
		})
	case "sandbox":
		sandbox := gateway.NewSandbox()
		gw = sandbox
		sandboxHandler = handler.NewSandboxHandler(sandbox, logger)
		logger.Warn().Msg("using in-process sandbox payment gateway, pay route is unauthenticated")
	default:
		return fmt.Errorf("unsupported gateway mode: %q", cfg.Gateway.Mode)
	}

	signer := intent.NewSigner([]byte(cfg.Intent.SigningKey))

	locker, closeLocker := newLocker(ctx, cfg.Redis, logger)
	defer closeLocker()

	// Services
	productService := service.NewProductService(productRepo, logger)
	checkoutService := service.NewCheckoutService(productRepo, gw, signer, m, service.CheckoutConfig{
		Currency:       cfg.Gateway.Currency,
		GatewayTimeout: cfg.Gateway.Timeout(),
	}, logger)
	fulfillmentService := service.NewFulfillmentService(service.FulfillmentDeps{
		Transactor: transactor,
		Orders:     orderRepo,
		Inventory:  inventoryRepo,
		Outbox:     outboxStore,
		Gateway:    gw,
		Signer:     signer,
		Locker:     locker,
		Metrics:    m,
	}, service.FulfillmentConfig{
		GatewayTimeout: cfg.Gateway.Timeout(),
		LockTTL:        time.Duration(cfg.Redis.LockTTL) * time.Second,
	}, logger)
	adminService := service.NewAdminService(service.AdminDeps{
		Transactor: transactor,
		Products:   productRepo,
		Orders:     orderRepo,
		Inventory:  inventoryRepo,
		Outbox:     outboxStore,
		Metrics:    m,
	}, cfg.Inventory.LowStockThreshold, logger)

	// HTTP
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger)
	mux := router.New(router.Handlers{
		Product:  handler.NewProductHandler(productService, logger),
		Checkout: handler.NewCheckoutHandler(checkoutService, fulfillmentService, logger),
		Admin:    handler.NewAdminHandler(adminService, logger),
		Sandbox:  sandboxHandler,
	}, router.Options{
		APIKey:      cfg.Auth.APIKey,
		RateLimiter: rateLimiter,
		Metrics:     m,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("address", cfg.Server.Address()).Msg("HTTP server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		rateLimiter.Run(gctx)
		return nil
	})

	if len(cfg.Kafka.Brokers) > 0 {
		publisher := outbox.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()

		relay := outbox.NewRelay(outboxStore, publisher,
			time.Duration(cfg.Kafka.PollInterval)*time.Millisecond,
			cfg.Kafka.BatchSize, logger, outbox.WithSentHook(m.OutboxSent))
		g.Go(func() error {
			return relay.Run(gctx)
		})
	} else {
		logger.Info().Msg("outbox relay disabled (no kafka brokers configured)")
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info().Msg("server shutdown completed")
	return nil
}

// newLocker returns the Redis completion lock when enabled and a no-op lock
// otherwise. An unreachable Redis only degrades to the database constraints.
func newLocker(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (lock.Locker, func()) {
	if !cfg.Enabled {
		logger.Info().Msg("redis disabled, completion lock is a no-op")
		return lock.NewNopLocker(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unreachable at startup")
	} else {
		logger.Info().Str("addr", cfg.Addr).Msg("redis completion lock enabled")
	}

	return lock.NewRedisLocker(client, "storefront:"), func() {
		if err := client.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close redis client")
		}
	}
}
