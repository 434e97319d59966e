// Package core declares the ports the scheduler services consume. Services
// depend on these interfaces, not on the concrete store, so tests can supply
// hand-written stubs.
package core

import (
	"context"
	"time"

	"github.com/retzproject/retz/internal/data"
	"github.com/retzproject/retz/internal/domain/model"
)

// DispatchStore is the store surface the dispatcher uses.
type DispatchStore interface {
	FindFit(ctx context.Context, orderBy []string, cpu int, memMB int) ([]*model.Job, error)
	ApplyTransitions(ctx context.Context, batch []data.JobTransition) ([]*model.Job, error)
	RevertToQueued(ctx context.Context, id int) error
	GetJobFromTaskID(ctx context.Context, taskID string) (*model.Job, error)
	UpdateJob(ctx context.Context, id int, tr model.Transition) (*model.Job, error)
	GetApplication(ctx context.Context, appid string) (*model.Application, error)
	GetFrameworkID(ctx context.Context) (string, error)
	SetFrameworkID(ctx context.Context, value string) (bool, error)
}

// StatusStore is the store surface the status reporter uses.
type StatusStore interface {
	CountQueued(ctx context.Context) (int, error)
	CountRunning(ctx context.Context) (int, error)
	GetRunning(ctx context.Context) ([]*model.Job, error)
}

// RetentionStore is the store surface the retention sweep uses.
type RetentionStore interface {
	DeleteOldJobs(ctx context.Context, leeway time.Duration, batchSize int) (int64, error)
}

// OfferSnapshotCache carries the dispatcher's last offer snapshot to the
// status reporter. Implementations are a process-local cache or redis when
// the reporter runs in another process.
type OfferSnapshotCache interface {
	Put(ctx context.Context, snap model.OfferSnapshot) error
	// Get returns the last snapshot and false when none has been published.
	Get(ctx context.Context) (model.OfferSnapshot, bool, error)
}
