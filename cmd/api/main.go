package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davidleathers/gstbooks/internal/api/rest"
	"github.com/davidleathers/gstbooks/internal/api/websocket"
	"github.com/davidleathers/gstbooks/internal/domain/gst"
	"github.com/davidleathers/gstbooks/internal/domain/tax"
	"github.com/davidleathers/gstbooks/internal/infrastructure/cache"
	"github.com/davidleathers/gstbooks/internal/infrastructure/config"
	"github.com/davidleathers/gstbooks/internal/infrastructure/database"
	"github.com/davidleathers/gstbooks/internal/infrastructure/gstapi"
	"github.com/davidleathers/gstbooks/internal/infrastructure/repository"
	"github.com/davidleathers/gstbooks/internal/infrastructure/telemetry"
	"github.com/davidleathers/gstbooks/internal/metrics"
	"github.com/davidleathers/gstbooks/internal/service/credential"
	"github.com/davidleathers/gstbooks/internal/service/documents"
	"github.com/davidleathers/gstbooks/internal/service/expiry"
	"github.com/davidleathers/gstbooks/internal/service/reconciliation"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to set up logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("application failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting gstbooks api",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Environment),
		zap.Int("port", cfg.Server.Port))

	provider, err := telemetry.InitTracing(ctx, cfg.Telemetry, cfg.Version, cfg.Environment)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	registry := metrics.NewRegistry()

	kv, err := cache.NewCache(&cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer kv.Close()
	store := cache.NewCredentialStore(kv, cfg.Credential.SessionTTL, logger)

	retry := gstapi.DefaultRetryConfig()
	if cfg.GSTAPI.RetryInitialInterval > 0 {
		retry.InitialInterval = cfg.GSTAPI.RetryInitialInterval
	}
	if cfg.GSTAPI.RetryMaxElapsed > 0 {
		retry.MaxElapsedTime = cfg.GSTAPI.RetryMaxElapsed
	}
	client, err := gstapi.NewClient(cfg.GSTAPI.BaseURL, logger,
		gstapi.WithTimeout(cfg.GSTAPI.Timeout),
		gstapi.WithRetryConfig(retry),
		gstapi.WithMetrics(registry))
	if err != nil {
		return fmt.Errorf("initializing gst client: %w", err)
	}

	health := map[string]rest.HealthCheck{
		"cache": func(ctx context.Context) error { return cache.HealthCheck(ctx, kv) },
	}

	// Results are only persisted when a database is configured.
	var results reconciliation.ResultStore
	if cfg.Database.URL != "" {
		pool, err := database.NewPool(ctx, &cfg.Database, logger)
		if err != nil {
			return err
		}
		defer pool.Close()
		results = repository.NewReconciliationRepository(pool)
		health["database"] = pingDatabase(pool)
	} else {
		logger.Warn("database url not configured, reconciliation results are not stored")
	}

	clock := gst.RealClock{}
	credentials := credential.NewService(client, store, registry, clock, credential.Config{
		RefreshWindow: cfg.Credential.RefreshWindow,
		LockTTL:       cfg.Credential.LockTTL,
	}, logger)
	reconciler := reconciliation.NewService(client, credentials, results, registry, clock, logger)
	docs := documents.NewService(client, registry, logger, documents.WithCurrency(cfg.Books.Currency))

	events := websocket.NewHandler(logger)
	watcher := expiry.NewWatcher(store, credentials, events.Hub(), registry, expiry.Config{
		Interval:    cfg.Credential.StatusPollInterval,
		RemoteCheck: cfg.Credential.RemoteStatusCheck,
		Clock:       clock,
	}, logger)

	discountBase, err := tax.ParseDiscountBase(cfg.Books.DiscountBase)
	if err != nil {
		return err
	}
	router := rest.NewRouter(rest.Dependencies{
		Credentials:    credentials,
		Reconciliation: reconciler,
		Documents:      docs,
		Events:         events.HandleCredentialEvents,
		Metrics:        registry,
		MetricsHandler: registry.Handler(),
		Health:         health,
	}, rest.Config{
		Version:              cfg.Version,
		DiscountBase:         discountBase,
		OTPRequestsPerMinute: cfg.RateLimit.OTPRequestsPerMinute,
		OTPBurst:             cfg.RateLimit.OTPBurst,
	}, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	events.Start(gctx)
	g.Go(func() error {
		return watcher.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		events.Stop()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func pingDatabase(pool *pgxpool.Pool) rest.HealthCheck {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}
