package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/retzproject/retz/internal/broker"
	"github.com/retzproject/retz/internal/core"
	"github.com/retzproject/retz/internal/data"
	"github.com/retzproject/retz/internal/domain/model"
	apperrors "github.com/retzproject/retz/internal/errors"
	"github.com/retzproject/retz/internal/observability/metrics"
	"github.com/retzproject/retz/internal/observability/statsd"
	"github.com/retzproject/retz/internal/planner"
)

// DispatcherServiceOptions groups dependencies for DispatcherService.
type DispatcherServiceOptions struct {
	Store        core.DispatchStore      // Required: store surface
	Broker       broker.ResourceBroker   // Required: outbound broker port
	Planner      planner.Planner         // Required: queue ordering + packing
	OfferCache   core.OfferSnapshotCache // Optional: snapshot cache for the reporter
	MaxStock     int                     // Offers held back instead of declined
	Logger       *slog.Logger            // Optional: structured logger
	Metrics      statsd.Sink             // Optional: metrics sink
	TimeProvider data.TimeProvider       // Optional: defaults to wall clock
}

// DispatcherService reacts to broker events: resource offers, task status
// updates, disconnects and re-registrations. It is the only component that
// moves jobs out of QUEUED.
type DispatcherService struct {
	store      core.DispatchStore
	broker     broker.ResourceBroker
	planner    planner.Planner
	offerCache core.OfferSnapshotCache
	maxStock   int
	logger     *slog.Logger
	metrics    statsd.Sink
	clock      data.TimeProvider
}

// NewDispatcherService constructs a new DispatcherService.
func NewDispatcherService(opts DispatcherServiceOptions) (*DispatcherService, error) {
	if opts.Store == nil {
		return nil, errors.New("DispatchStore is required")
	}
	if opts.Broker == nil {
		return nil, errors.New("ResourceBroker is required")
	}
	if opts.Planner == nil {
		return nil, errors.New("Planner is required")
	}

	clock := opts.TimeProvider
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "dispatcher")
		logger.Debug("DispatcherService initialized",
			"planner", opts.Planner.Name(),
			"max_stock", opts.MaxStock,
		)
	}

	return &DispatcherService{
		store:      opts.Store,
		broker:     opts.Broker,
		planner:    opts.Planner,
		offerCache: opts.OfferCache,
		maxStock:   opts.MaxStock,
		logger:     logger,
		metrics:    opts.Metrics,
		clock:      clock,
	}, nil
}

// OnOffers handles one batch of resource offers: fit queued jobs against the
// aggregate, pack them onto individual offers, mark them STARTING in one
// transaction, then launch. Unused offers beyond the stock are declined.
func (s *DispatcherService) OnOffers(ctx context.Context, offers []model.Offer) error {
	start := s.clock.Now()
	s.publishSnapshot(ctx, offers)

	if len(offers) == 0 {
		return nil
	}

	var total model.ResourceQuantity
	for _, o := range offers {
		total.Add(o.Resources)
	}

	jobs, err := s.store.FindFit(ctx, s.planner.OrderBy(), total.CPU, total.MemMB)
	if err != nil {
		s.declineAll(ctx, offerIDs(offers))
		return fmt.Errorf("dispatcher: find fit: %w", err)
	}

	plan := s.planner.Plan(offers, jobs, s.maxStock)
	if len(plan.Launches) == 0 {
		s.declineAll(ctx, plan.ToDecline)
		return nil
	}

	launched, err := s.startPlanned(ctx, plan.Launches)
	if err != nil {
		// The batch rolled back; nothing is STARTING, so every offer in the
		// plan goes back to the cluster and the next round replans.
		if s.logger != nil {
			s.logger.WarnContext(ctx, "marking jobs STARTING failed, declining offers", "error", err)
		}
		s.declineAll(ctx, offerIDs(offers))
		if apperrors.IsSerialization(err) {
			return nil
		}
		return err
	}

	s.declineAll(ctx, plan.ToDecline)

	metrics.EmitOfferRound(s.metrics, metrics.OfferMetric{
		Offers:   len(offers),
		Launched: launched,
		Declined: len(plan.ToDecline),
		Elapsed:  s.clock.Now().Sub(start),
	})
	return nil
}

// startPlanned assigns task ids, marks every planned job STARTING in one
// transaction and launches the tasks. A launch the broker rejects is
// compensated by reverting that job to QUEUED. Returns how many launched.
func (s *DispatcherService) startPlanned(ctx context.Context, launches []planner.Launch) (int, error) {
	now := s.clock.Now()
	batch := make([]data.JobTransition, len(launches))
	taskIDs := make([]string, len(launches))
	for i, l := range launches {
		taskIDs[i] = newTaskID(l.Job.ID)
		batch[i] = data.JobTransition{
			ID:         l.Job.ID,
			Transition: model.Starting(taskIDs[i], "", now),
		}
	}

	updated, err := s.store.ApplyTransitions(ctx, batch)
	if err != nil {
		return 0, err
	}

	launched := 0
	for i, l := range launches {
		job := updated[i]
		req := broker.LaunchRequest{
			OfferID:   l.OfferID,
			TaskID:    taskIDs[i],
			Command:   job.Cmd,
			Resources: job.Resources,
		}
		if app, appErr := s.store.GetApplication(ctx, job.Appid); appErr == nil && app != nil {
			req.Environment = app.Env
		}

		if launchErr := s.broker.Launch(ctx, req); launchErr != nil {
			if s.logger != nil {
				s.logger.ErrorContext(ctx, "launch failed, reverting job to queue",
					"job_id", job.ID, "task_id", taskIDs[i], "error", launchErr)
			}
			metrics.EmitTransition(s.metrics, metrics.TransitionMetric{
				Transition: string(model.TransitionStarting),
				Result:     metrics.ResultError,
				Err:        launchErr,
			})
			if revertErr := s.store.RevertToQueued(ctx, job.ID); revertErr != nil {
				return launched, fmt.Errorf("dispatcher: revert job %d: %w", job.ID, revertErr)
			}
			continue
		}

		launched++
		if s.logger != nil {
			s.logger.InfoContext(ctx, "job launched",
				"job_id", job.ID, "task_id", taskIDs[i], "offer_id", l.OfferID)
		}
		metrics.EmitTransition(s.metrics, metrics.TransitionMetric{
			Transition: string(model.TransitionStarting),
			Result:     metrics.ResultSuccess,
		})
	}
	return launched, nil
}

// OnStatusUpdate maps a broker task status to a lifecycle transition. Updates
// for unknown tasks and updates arriving out of order are logged and dropped;
// the broker may replay events after a reconciliation.
func (s *DispatcherService) OnStatusUpdate(ctx context.Context, st broker.TaskStatus) error {
	job, err := s.store.GetJobFromTaskID(ctx, st.TaskID)
	if err != nil {
		return fmt.Errorf("dispatcher: status update lookup: %w", err)
	}
	if job == nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "status update for unknown task, dropping",
				"task_id", st.TaskID, "task_state", st.State)
		}
		return nil
	}

	tr, ok := transitionFor(st, s.clock.Now())
	if !ok {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "unhandled task state, dropping",
				"task_id", st.TaskID, "task_state", st.State)
		}
		return nil
	}

	updated, err := s.store.UpdateJob(ctx, job.ID, tr)
	if err != nil {
		var illegal *model.IllegalTransition
		if errors.As(err, &illegal) {
			// A later transition already committed. Stale update, drop it.
			if s.logger != nil {
				s.logger.DebugContext(ctx, "stale status update dropped",
					"job_id", job.ID, "task_id", st.TaskID,
					"from", illegal.From, "to", illegal.To)
			}
			return nil
		}
		metrics.EmitTransition(s.metrics, metrics.TransitionMetric{
			Transition: string(tr.Kind),
			Result:     metrics.ResultError,
			Err:        err,
		})
		return fmt.Errorf("dispatcher: apply status update: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job state updated",
			"job_id", updated.ID, "state", updated.State, "task_state", st.State)
	}
	metrics.EmitTransition(s.metrics, metrics.TransitionMetric{
		Transition: string(tr.Kind),
		Result:     metrics.ResultSuccess,
	})
	return nil
}

// OnDisconnected handles loss of the broker connection. Running jobs stay
// untouched; the broker reconciles task state after reconnecting.
func (s *DispatcherService) OnDisconnected(ctx context.Context) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, "broker disconnected, awaiting reregistration")
	}
}

// OnReregistered persists the framework id on first registration and verifies
// it on every subsequent one. A mismatch means the cluster no longer knows
// the tasks this database believes are running, which is unrecoverable here.
func (s *DispatcherService) OnReregistered(ctx context.Context, frameworkID string) error {
	stored, err := s.store.GetFrameworkID(ctx)
	if err != nil {
		return fmt.Errorf("dispatcher: read framework id: %w", err)
	}
	if stored != "" && stored != frameworkID {
		return apperrors.Invariantf(
			"framework id mismatch: stored %s, broker reports %s", stored, frameworkID)
	}

	inserted, err := s.store.SetFrameworkID(ctx, frameworkID)
	if err != nil {
		return fmt.Errorf("dispatcher: persist framework id: %w", err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "registered with broker",
			"framework_id", frameworkID, "first_registration", inserted)
	}
	if !inserted {
		// Same incarnation reconnected; ask for the tasks we think exist.
		if err := s.broker.Reconcile(ctx, nil); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "reconciliation request failed", "error", err)
		}
	}
	return nil
}

func (s *DispatcherService) publishSnapshot(ctx context.Context, offers []model.Offer) {
	if s.offerCache == nil {
		return
	}
	snap := model.SnapshotOffers(offers, model.Timestamp(s.clock.Now()))
	if err := s.offerCache.Put(ctx, snap); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "offer snapshot publish failed", "error", err)
	}
}

func (s *DispatcherService) declineAll(ctx context.Context, offerIDs []string) {
	for _, id := range offerIDs {
		if err := s.broker.Decline(ctx, id); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "offer decline failed", "offer_id", id, "error", err)
		}
	}
}

func offerIDs(offers []model.Offer) []string {
	ids := make([]string, len(offers))
	for i, o := range offers {
		ids[i] = o.ID
	}
	return ids
}

// newTaskID builds a broker task id that stays traceable to the job.
func newTaskID(jobID int) string {
	return fmt.Sprintf("retz-%d-%s", jobID, strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// transitionFor maps a broker task state to a job lifecycle transition.
func transitionFor(st broker.TaskStatus, at time.Time) (model.Transition, bool) {
	switch st.State {
	case broker.TaskRunning:
		return model.Started(at), true
	case broker.TaskFinished, broker.TaskFailed:
		return model.Finished(at, st.ExitCode), true
	case broker.TaskKilled, broker.TaskLost:
		reason := st.Reason
		if reason == "" {
			reason = string(st.State)
		}
		return model.Killed(at, reason), true
	default:
		return model.Transition{}, false
	}
}
