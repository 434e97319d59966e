package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/retzproject/retz/internal/errors"
	"github.com/retzproject/retz/internal/data/pgxutil"
	"github.com/retzproject/retz/internal/domain/model"
)

// Advisory lock namespace for retention sweeps. Two-arg
// pg_try_advisory_xact_lock(major, minor) keeps sweep instances from
// overlapping when several servers share a database.
const (
	advisoryLockRetentionMajor = 2000
	advisoryLockRetentionSweep = 1
)

// DeleteOldJobs removes terminal jobs whose finished timestamp is older than
// the leeway. Only FINISHED and KILLED rows are candidates; anything queued
// or running is never touched no matter its age. Deletes at most batchSize
// rows per call and returns how many went.
func (s *Store) DeleteOldJobs(ctx context.Context, leeway time.Duration, batchSize int) (int64, error) {
	if leeway <= 0 {
		return 0, apperrors.Validationf("deleteOldJobs: non-positive leeway %v", leeway)
	}
	cutoff := model.Timestamp(s.timeProvider.Now().Add(-leeway))

	var rowsAffected int64
	err := pgxutil.WithSerializableTx(ctx, s.DB, func(tx *sql.Tx) error {
		var locked bool
		if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)",
			advisoryLockRetentionMajor, advisoryLockRetentionSweep).Scan(&locked); err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !locked {
			rowsAffected = 0
			return nil
		}

		res, err := tx.ExecContext(ctx, `
			DELETE FROM jobs
			WHERE id IN (
				SELECT id FROM jobs
				WHERE state IN ($1, $2)
				  AND finished IS NOT NULL
				  AND finished < $3
				ORDER BY finished
				LIMIT $4
			)
		`, string(model.JobFinished), string(model.JobKilled), cutoff, batchSize)
		if err != nil {
			return fmt.Errorf("delete old jobs: %w", err)
		}

		ra, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		rowsAffected = ra
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: deleteOldJobs: %w", apperrors.MapDBError(err))
	}
	if rowsAffected > 0 {
		s.logger.InfoContext(ctx, "retired old jobs",
			"deleted", rowsAffected, "cutoff", cutoff)
	}
	return rowsAffected, nil
}
