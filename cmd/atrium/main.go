package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/atriumhq/atrium/pkg/accounts"
	"github.com/atriumhq/atrium/pkg/api"
	"github.com/atriumhq/atrium/pkg/config"
	"github.com/atriumhq/atrium/pkg/httputil"
	"github.com/atriumhq/atrium/pkg/identity"
	"github.com/atriumhq/atrium/pkg/middleware"
	"github.com/atriumhq/atrium/pkg/observability"
	"github.com/atriumhq/atrium/pkg/storage/postgres"
	"github.com/atriumhq/atrium/pkg/workspaces"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	db, err := postgres.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, db); err != nil {
		return err
	}
	logger.Info("Database migrations applied")

	// Feature flag source: file-backed with live reload when configured,
	// otherwise the static value from the environment.
	var flags config.FlagSource = config.StaticFlag(cfg.Features.MultiTenantAdmin)
	if cfg.Features.FlagFile != "" {
		fileFlag, err := config.NewFileFlag(cfg.Features.FlagFile)
		if err != nil {
			return err
		}
		defer fileFlag.Close()
		flags = fileFlag
		logger.WithField("path", cfg.Features.FlagFile).Info("Watching feature flag file")
	}

	var redisClient *redis.Client
	if cfg.Redis.RateLimitEnabled {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return err
		}
		if cfg.Redis.PoolSize > 0 {
			opts.PoolSize = cfg.Redis.PoolSize
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// Domain services
	registrar := identity.NewPostgresRegistrar(db)
	accountSvc := accounts.NewPostgresService(db, registrar)
	tenantSvc := workspaces.NewPostgresService(db, nil)

	server := api.NewServer(accountSvc, tenantSvc, flags, metrics)

	// Entry middleware, outermost first
	chain := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware(logger),
		httputil.RecoveryMiddleware,
		httputil.LoggingMiddleware,
	}
	if metrics != nil {
		chain = append(chain, observability.HTTPMetricsMiddleware(metrics))
	}
	chain = append(chain, middleware.CallerMiddleware(accountSvc, flags))
	if redisClient != nil {
		limiter := middleware.NewRateLimiter(redisClient, cfg.Redis.RateLimitPerMin, time.Minute)
		chain = append(chain, limiter.Handler)
	}
	chain = append(chain, httputil.MaxBytesMiddleware(1<<20))

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      httputil.Chain(chain...)(server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	// Business gauges refresh off-request on a cron schedule
	scheduler := cron.New()
	if metrics != nil {
		collector := observability.NewUsageCollector(db, metrics, logger)
		collector.Refresh()
		if _, err := scheduler.AddFunc(cfg.Observability.StatsRefreshSchedule, collector.Refresh); err != nil {
			return err
		}
		scheduler.Start()
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		stopCtx := scheduler.Stop()
		select {
		case <-stopCtx.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	var g errgroup.Group
	g.Go(func() error {
		logger.WithField("addr", httpServer.Addr).Info("Starting API server")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Starting health server")
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(shutdown.WaitForShutdown)

	return g.Wait()
}
