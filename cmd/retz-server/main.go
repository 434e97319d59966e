package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/retzproject/retz/internal/bootstrap"
	"github.com/retzproject/retz/internal/devseed"
)

// version is stamped at build time.
var version = "dev"

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	if err = bootstrap.ValidateServiceConfig(&cfg); err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting retz server",
		"version", version,
		"db_host", cfg.Postgres.Host,
		"db_name", cfg.Postgres.Name,
		"services", cfg.Services,
		"planner", cfg.Scheduler.Planner,
	)

	db, err := bootstrap.ConnectDB(cfg.Postgres, logger)
	if err != nil {
		return err
	}

	store, err := bootstrap.OpenStore(ctx, db, logger)
	if err != nil {
		_ = db.Close()
		return err
	}

	if cfg.IsDev {
		if seedErr := devseed.Run(ctx, store, logger); seedErr != nil {
			logger.WarnContext(ctx, "dev seeding failed", "error", seedErr)
		}
	}

	redisClient, err := bootstrap.ConnectRedis(cfg.Redis, logger)
	if err != nil {
		_ = db.Close()
		return err
	}
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	metricsSink, err := bootstrap.NewMetricsSink(cfg.Observability.Metrics, logger)
	if err != nil {
		logger.WarnContext(ctx, "metrics sink unavailable", "error", err)
	}
	defer func() {
		if metricsSink != nil {
			_ = metricsSink.Close()
		}
	}()

	services, err := bootstrap.NewServices(bootstrap.ServicesOptions{
		Config:  cfg,
		Store:   store,
		Logger:  logger,
		Metrics: metricsSink,
		Version: version,
		Redis:   redisClient,
	})
	if err != nil {
		_ = db.Close()
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	if services.Retention != nil {
		g.Go(func() error { return services.Retention.Run(gctx) })
	}
	if services.HTTP != nil {
		g.Go(func() error { return services.HTTP.Run(gctx) })
	}

	err = g.Wait()

	// Drain in-flight transactions before closing the pool.
	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if stopErr := store.Stop(drainCtx); stopErr != nil {
		logger.ErrorContext(ctx, "store drain failed", "error", stopErr)
	}
	return err
}
