package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/retzproject/retz/internal/core"
	"github.com/retzproject/retz/internal/domain/model"
)

// StatusServiceOptions groups dependencies for StatusService.
type StatusServiceOptions struct {
	Store      core.StatusStore        // Required: count and running queries
	OfferCache core.OfferSnapshotCache // Optional: last offer snapshot
	Version    string                  // Reported verbatim
	Logger     *slog.Logger            // Optional: structured logger
}

// StatusService assembles the cluster status report served by GET /status.
type StatusService struct {
	store      core.StatusStore
	offerCache core.OfferSnapshotCache
	version    string
	logger     *slog.Logger
}

// NewStatusService constructs a new StatusService.
func NewStatusService(opts StatusServiceOptions) (*StatusService, error) {
	if opts.Store == nil {
		return nil, errors.New("StatusStore is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "status")
	}

	return &StatusService{
		store:      opts.Store,
		offerCache: opts.OfferCache,
		version:    opts.Version,
		logger:     logger,
	}, nil
}

// Report builds a point-in-time status report. The offer figures come from
// the dispatcher's last snapshot and may be slightly stale; everything else
// is a live count.
func (s *StatusService) Report(ctx context.Context) (model.StatusReport, error) {
	report := model.StatusReport{Version: s.version}

	queued, err := s.store.CountQueued(ctx)
	if err != nil {
		return report, fmt.Errorf("status: count queued: %w", err)
	}
	report.QueueLength = queued

	running, err := s.store.GetRunning(ctx)
	if err != nil {
		return report, fmt.Errorf("status: running jobs: %w", err)
	}
	report.RunningLength = len(running)
	for _, j := range running {
		report.TotalUsed.Add(j.Resources)
	}

	if s.offerCache != nil {
		snap, ok, cacheErr := s.offerCache.Get(ctx)
		if cacheErr != nil {
			// The report is still useful without offer figures.
			if s.logger != nil {
				s.logger.WarnContext(ctx, "offer snapshot read failed", "error", cacheErr)
			}
		} else if ok {
			report.Offers = snap.Count
			report.NumSlaves = snap.NumAgents
			report.TotalOffered = snap.TotalOffered
		}
	}
	return report, nil
}
