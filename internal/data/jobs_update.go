package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/retzproject/retz/internal/errors"
	"github.com/retzproject/retz/internal/data/pgxutil"
	"github.com/retzproject/retz/internal/domain/model"
)

// JobTransition pairs a job id with the transition to apply to it.
type JobTransition struct {
	ID         int
	Transition model.Transition
}

func applyTransitionInTx(ctx context.Context, tx *sql.Tx, id int, tr model.Transition) (*model.Job, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE id = $1", id)
	job, err := scanJobRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := job.Apply(tr); err != nil {
		return nil, err
	}
	if err := writeJob(ctx, tx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateJob reads a job, applies one transition and writes it back, all under
// one serializable transaction. An illegal transition aborts the transaction
// and is returned as *model.IllegalTransition.
func (s *Store) UpdateJob(ctx context.Context, id int, tr model.Transition) (*model.Job, error) {
	var updated *model.Job
	err := pgxutil.WithSerializableTx(ctx, s.DB, func(tx *sql.Tx) error {
		job, txErr := applyTransitionInTx(ctx, tx, id, tr)
		if txErr != nil {
			return txErr
		}
		updated = job
		return nil
	})
	if err != nil {
		var illegal *model.IllegalTransition
		if errors.Is(err, ErrJobNotFound) || errors.As(err, &illegal) {
			return nil, err
		}
		return nil, fmt.Errorf("store: updateJob(%d, %s): %w", id, tr.Kind, apperrors.MapDBError(err))
	}
	s.logger.DebugContext(ctx, "job updated",
		"job_id", updated.ID, "state", updated.State, "transition", tr.Kind)
	return updated, nil
}

// ApplyTransitions applies a batch of transitions atomically. If any single
// transition is illegal the whole batch rolls back, so callers observe either
// every change or none. The dispatcher relies on this when marking a plan's
// jobs STARTING: a job killed after planning aborts the batch and the offers
// are declined instead.
func (s *Store) ApplyTransitions(ctx context.Context, batch []JobTransition) ([]*model.Job, error) {
	var updated []*model.Job
	err := pgxutil.WithSerializableTx(ctx, s.DB, func(tx *sql.Tx) error {
		updated = updated[:0]
		for _, jt := range batch {
			job, txErr := applyTransitionInTx(ctx, tx, jt.ID, jt.Transition)
			if txErr != nil {
				return txErr
			}
			updated = append(updated, job)
		}
		return nil
	})
	if err != nil {
		var illegal *model.IllegalTransition
		if errors.Is(err, ErrJobNotFound) || errors.As(err, &illegal) {
			return nil, err
		}
		return nil, fmt.Errorf("store: applyTransitions(%d jobs): %w", len(batch), apperrors.MapDBError(err))
	}
	return updated, nil
}

// UpdateJobs rewrites a batch of already-mutated jobs in one transaction.
// No state machine check happens here; callers that need the check go
// through ApplyTransitions.
func (s *Store) UpdateJobs(ctx context.Context, jobs []*model.Job) error {
	err := pgxutil.WithSerializableTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, j := range jobs {
			if txErr := writeJob(ctx, tx, j); txErr != nil {
				return txErr
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return err
		}
		return fmt.Errorf("store: updateJobs(%d jobs): %w", len(jobs), apperrors.MapDBError(err))
	}
	return nil
}

// RevertToQueued is the compensation for a launch the broker rejected after
// the job was already marked STARTING. It is not a state machine edge; the
// row is restored to its pre-launch shape so the next offer can pick it up.
func (s *Store) RevertToQueued(ctx context.Context, id int) error {
	err := pgxutil.WithSerializableTx(ctx, s.DB, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"SELECT "+jobColumns+" FROM jobs WHERE id = $1", id)
		job, txErr := scanJobRow(row)
		if errors.Is(txErr, sql.ErrNoRows) {
			return ErrJobNotFound
		}
		if txErr != nil {
			return txErr
		}
		if job.State != model.JobStarting {
			// A status update won the race; leave the row alone.
			return nil
		}
		job.State = model.JobQueued
		job.TaskID = ""
		job.URL = ""
		job.Started = ""
		return writeJob(ctx, tx, job)
	})
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return err
		}
		return fmt.Errorf("store: revertToQueued(%d): %w", id, apperrors.MapDBError(err))
	}
	s.logger.InfoContext(ctx, "job reverted to queue after launch failure", "job_id", id)
	return nil
}

// RetryJobs re-enqueues finished or killed jobs in one transaction. Ids that
// do not resolve to a job or whose job is not terminal abort the batch.
func (s *Store) RetryJobs(ctx context.Context, ids []int) error {
	err := pgxutil.WithSerializableTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, txErr := applyTransitionInTx(ctx, tx, id, model.Retry()); txErr != nil {
				return txErr
			}
		}
		return nil
	})
	if err != nil {
		var illegal *model.IllegalTransition
		if errors.Is(err, ErrJobNotFound) || errors.As(err, &illegal) {
			return err
		}
		return fmt.Errorf("store: retryJobs(%d jobs): %w", len(ids), apperrors.MapDBError(err))
	}
	s.logger.InfoContext(ctx, "jobs requeued for retry", "count", len(ids))
	return nil
}
