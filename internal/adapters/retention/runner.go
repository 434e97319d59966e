// Package retention wires the retention sweep to a live store.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/retzproject/retz/config"
	"github.com/retzproject/retz/internal/core"
	"github.com/retzproject/retz/internal/data"
	"github.com/retzproject/retz/internal/observability/statsd"
	"github.com/retzproject/retz/internal/service"
)

// Runner constructs the retention service against a store and runs its loop.
type Runner struct {
	svc    *service.RetentionService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Store  *data.Store
	Config config.RetentionConfig
	Logger *slog.Logger

	// StoreOverride swaps the store surface, for tests.
	StoreOverride core.RetentionStore
	Metrics       statsd.Sink
}

// NewRunner creates a new retention runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	var retentionStore core.RetentionStore
	switch {
	case opts.StoreOverride != nil:
		retentionStore = opts.StoreOverride
	case opts.Store != nil:
		retentionStore = opts.Store
	default:
		return nil, errors.New("store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	svc, err := service.NewRetentionService(service.RetentionServiceOptions{
		Store:   retentionStore,
		Config:  opts.Config,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire retention service: %w", err)
	}

	return &Runner{svc: svc, logger: opts.Logger}, nil
}

// Run starts the sweep loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting retention runner")
	return r.svc.Run(ctx)
}
