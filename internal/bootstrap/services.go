package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/retzproject/retz/config"
	redisadapter "github.com/retzproject/retz/internal/adapters/redis"
	"github.com/retzproject/retz/internal/adapters/retention"
	"github.com/retzproject/retz/internal/broker"
	"github.com/retzproject/retz/internal/core"
	"github.com/retzproject/retz/internal/data"
	httpx "github.com/retzproject/retz/internal/http"
	"github.com/retzproject/retz/internal/observability/statsd"
	"github.com/retzproject/retz/internal/planner"
	"github.com/retzproject/retz/internal/service"
)

// ServicesOptions holds everything needed to wire the enabled services.
type ServicesOptions struct {
	Config  config.AppConfig
	Store   *data.Store
	Logger  *slog.Logger
	Metrics statsd.Sink
	Version string

	// Redis is optional; when nil the offer snapshot cache is in-process.
	Redis redis.UniversalClient

	// Broker is the cluster driver. Required only when the dispatcher
	// service is enabled; the driver itself ships separately.
	Broker broker.ResourceBroker
}

// Services bundles the wired service instances for the server entrypoint.
type Services struct {
	Dispatcher *service.DispatcherService
	Retention  *retention.Runner
	HTTP       *httpx.Server
	Status     *service.StatusService
}

// NewMetricsSink builds the StatsD client, disabled when unconfigured.
func NewMetricsSink(cfg config.ObservabilityMetricsConfig, logger *slog.Logger) (*statsd.Client, error) {
	return statsd.NewClient(statsd.Config{
		Enabled: cfg.IsEnabled(),
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
}

// NewServices wires the enabled services against the store.
func NewServices(opts ServicesOptions) (*Services, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	enabled, err := opts.Config.GetEnabledServices()
	if err != nil {
		return nil, err
	}

	offerCache := newOfferCache(opts)
	out := &Services{}

	status, err := service.NewStatusService(service.StatusServiceOptions{
		Store:      opts.Store,
		OfferCache: offerCache,
		Version:    opts.Version,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("wire status service: %w", err)
	}
	out.Status = status

	if enabled[config.ServiceModeDispatcher] {
		if opts.Broker == nil {
			return nil, errors.New("dispatcher service requires a ResourceBroker driver")
		}
		p, ok := planner.New(opts.Config.Scheduler.Planner)
		if !ok {
			return nil, fmt.Errorf("unknown planner: %q", opts.Config.Scheduler.Planner)
		}
		dispatcher, dErr := service.NewDispatcherService(service.DispatcherServiceOptions{
			Store:      opts.Store,
			Broker:     opts.Broker,
			Planner:    p,
			OfferCache: offerCache,
			MaxStock:   opts.Config.Scheduler.MaxStock,
			Logger:     opts.Logger,
			Metrics:    opts.Metrics,
		})
		if dErr != nil {
			return nil, fmt.Errorf("wire dispatcher: %w", dErr)
		}
		out.Dispatcher = dispatcher
	}

	if enabled[config.ServiceModeRetention] {
		runner, rErr := retention.NewRunner(retention.RunnerOptions{
			Store:   opts.Store,
			Config:  opts.Config.Retention,
			Logger:  opts.Logger,
			Metrics: opts.Metrics,
		})
		if rErr != nil {
			return nil, fmt.Errorf("wire retention: %w", rErr)
		}
		out.Retention = runner
	}

	if enabled[config.ServiceModeHTTP] {
		srv, hErr := httpx.NewServer(httpx.ServerOptions{
			Status: status,
			Config: opts.Config.HTTP,
			Logger: opts.Logger,
		})
		if hErr != nil {
			return nil, fmt.Errorf("wire http server: %w", hErr)
		}
		out.HTTP = srv
	}

	return out, nil
}

func newOfferCache(opts ServicesOptions) core.OfferSnapshotCache {
	if opts.Redis != nil {
		cache, err := redisadapter.NewOfferCache(redisadapter.OfferCacheOptions{Client: opts.Redis})
		if err == nil {
			return cache
		}
		if opts.Logger != nil {
			opts.Logger.Warn("redis offer cache unavailable, using in-process cache", "error", err)
		}
	}
	return core.NewMemoryOfferCache()
}
