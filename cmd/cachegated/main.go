package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/cachegate/cachegate/internal/admin"
	"github.com/cachegate/cachegate/internal/backend"
	"github.com/cachegate/cachegate/internal/config"
	"github.com/cachegate/cachegate/internal/distribution"
	"github.com/cachegate/cachegate/internal/eviction"
	"github.com/cachegate/cachegate/internal/metrics"
)

func main() {
	cfg := config.GetConfig()
	logger := config.GetLogger()

	logger.Info().
		Str("node_id", cfg.NodeID).
		Int("max_pending", cfg.Eviction.MaxPending).
		Bool("distribution", cfg.Distribution.Enabled).
		Msg("Starting cachegate")

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN}); err != nil {
			logger.Warn().Err(err).Msg("Sentry initialization failed, error reporting disabled")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Cache backends, highest priority first once the selector sorts them.
	var backends []backend.Backend
	if cfg.Backends.Redis.Enabled {
		b, err := backend.New("redis", backend.Config{
			Priority:      cfg.Backends.Redis.Priority,
			RedisAddress:  cfg.Backends.Redis.Address,
			RedisPassword: cfg.Backends.Redis.Password,
			RedisDB:       cfg.Backends.Redis.DB,
			KeyPrefix:     cfg.Backends.Redis.KeyPrefix,
			Logger:        logger,
			Instrument:    true,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create redis backend")
		}
		backends = append(backends, b)
	}
	if cfg.Backends.Memory.Enabled {
		b, err := backend.New("memory", backend.Config{
			Priority:   cfg.Backends.Memory.Priority,
			Size:       cfg.Backends.Memory.Size,
			TTL:        config.Duration(cfg.Backends.Memory.TTL, time.Hour),
			Logger:     logger,
			Instrument: true,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create memory backend")
		}
		backends = append(backends, b)
	}
	if len(backends) == 0 {
		logger.Fatal().Msg("No cache backend enabled")
	}

	selector := backend.NewSelector(backends...)
	defer func() {
		if err := selector.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close cache backends")
		}
	}()

	ledger := eviction.NewRetryLedger(
		selector,
		config.Duration(cfg.Ledger.BaseBackoff, 30*time.Second),
		config.Duration(cfg.Ledger.MaxBackoff, time.Hour),
		logger,
	)
	metrics.RegisterSizeCollector(
		"eviction_retry_ledger_entries",
		"Current number of evictions parked in the retry ledger.",
		ledger.Len,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Consume the cluster eviction channel: batches broadcast by embedding
	// application nodes are applied against this node's backends.
	if cfg.Distribution.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Backends.Redis.Address,
			Password: cfg.Backends.Redis.Password,
			DB:       cfg.Backends.Redis.DB,
		})
		defer client.Close()

		applier := distribution.NewApplier(client, cfg.Distribution.Channel, selector, ledger, logger)
		if err := applier.Subscribe(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to subscribe to eviction channel")
		}
		defer applier.Close()
	}

	adminServer := admin.NewHTTPServer(
		cfg.Admin.Address,
		cfg.Admin.Port,
		admin.NewHandler(selector, ledger, cfg.NodeID, logger),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("address", adminServer.Addr).Msg("Starting admin HTTP server")
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewHTTPServer(cfg.Admin.Address, cfg.Metrics.Port)
		g.Go(func() error {
			logger.Info().Str("address", metricsServer.Addr).Msg("Starting Prometheus metrics HTTP server")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return adminServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("Server error")
	}

	logger.Info().Msg("Server stopped gracefully")
}
