package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"github.com/retzproject/retz/config"
	"github.com/retzproject/retz/internal/core"
	"github.com/retzproject/retz/internal/observability/metrics"
	"github.com/retzproject/retz/internal/observability/statsd"
)

// RetentionServiceOptions groups dependencies for RetentionService.
type RetentionServiceOptions struct {
	Store   core.RetentionStore    // Required: retention store surface
	Config  config.RetentionConfig // Required: interval, leeway, batch size
	Logger  *slog.Logger           // Optional: structured logger
	Metrics statsd.Sink            // Optional: metrics sink
}

// RetentionService periodically deletes terminal jobs older than the
// configured leeway so the jobs table stays bounded.
type RetentionService struct {
	store   core.RetentionStore
	config  config.RetentionConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewRetentionService constructs a new RetentionService.
func NewRetentionService(opts RetentionServiceOptions) (*RetentionService, error) {
	if opts.Store == nil {
		return nil, errors.New("RetentionStore is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "retention")
		logger.Debug("RetentionService initialized",
			"interval", opts.Config.Interval,
			"leeway", opts.Config.Leeway,
			"batch_size", opts.Config.BatchSize,
		)
	}

	return &RetentionService{
		store:   opts.Store,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Run starts the sweep loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *RetentionService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting retention service", "interval", s.config.Interval)
	}

	// Jitter avoids a thundering herd when several instances start together.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.sweepAndLog(ctx, "initial sweep")

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "retention service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			s.sweepAndLog(ctx, "sweep")
		}
	}
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *RetentionService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)))

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

func (s *RetentionService) sweepAndLog(ctx context.Context, label string) {
	deleted, err := s.Sweep(ctx)
	if err == nil || s.logger == nil {
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}
	s.logger.Error(label+" failed", "error", err, "deleted_before_failure", deleted)
}

// Sweep deletes eligible jobs in batches until a pass comes back empty.
// Each batch is its own advisory-locked transaction; losing the lock to
// another instance ends the sweep quietly.
func (s *RetentionService) Sweep(ctx context.Context) (int64, error) {
	var total int64
	for {
		deleted, err := s.store.DeleteOldJobs(ctx, s.config.Leeway, s.config.BatchSize)
		if err != nil {
			metrics.EmitRetention(s.metrics, total, err)
			return total, err
		}
		total += deleted
		if deleted == 0 {
			break
		}
		if ctx.Err() != nil {
			metrics.EmitRetention(s.metrics, total, ctx.Err())
			return total, ctx.Err()
		}
	}

	metrics.EmitRetention(s.metrics, total, nil)
	if total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "deleted old jobs",
			"count", total, "leeway", s.config.Leeway)
	}
	return total, nil
}
