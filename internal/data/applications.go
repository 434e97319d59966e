package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "github.com/retzproject/retz/internal/errors"
	"github.com/retzproject/retz/internal/data/pgxutil"
	"github.com/retzproject/retz/internal/domain/model"
)

func scanApplication(blob, appid string) (*model.Application, error) {
	var app model.Application
	if err := json.Unmarshal([]byte(blob), &app); err != nil {
		return nil, fmt.Errorf("decode application: %w", err)
	}
	if app.Appid != appid {
		return nil, apperrors.Invariantf(
			"appid in JSON (%s) disagrees with column (%s)", app.Appid, appid)
	}
	return &app, nil
}

// GetAllApplications lists applications, optionally filtered by owner.
func (s *Store) GetAllApplications(ctx context.Context, owner string) ([]*model.Application, error) {
	query := "SELECT appid, json FROM applications"
	var args []any
	if owner != "" {
		query += " WHERE owner = $1"
		args = append(args, owner)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: getAllApplications(%s): %w", owner, apperrors.MapDBError(err))
	}
	defer rows.Close()

	var apps []*model.Application
	for rows.Next() {
		var appid, blob string
		if scanErr := rows.Scan(&appid, &blob); scanErr != nil {
			return nil, fmt.Errorf("store: getAllApplications: %w", scanErr)
		}
		app, decodeErr := scanApplication(blob, appid)
		if decodeErr != nil {
			return nil, decodeErr
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: getAllApplications: %w", err)
	}
	return apps, nil
}

// AddApplication registers an application, replacing any existing row with
// the same appid in the same transaction. It returns false without writing
// when the owner is missing or disabled.
func (s *Store) AddApplication(ctx context.Context, app *model.Application) (bool, error) {
	if err := app.Validate(); err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid application")
	}
	blob, err := json.Marshal(app)
	if err != nil {
		return false, fmt.Errorf("encode application: %w", err)
	}

	accepted := false
	err = pgxutil.WithSerializableTx(ctx, s.DB, func(tx *sql.Tx) error {
		var enabled bool
		qerr := tx.QueryRowContext(ctx,
			"SELECT enabled FROM users WHERE key_id = $1", app.Owner,
		).Scan(&enabled)
		if errors.Is(qerr, sql.ErrNoRows) {
			s.logger.WarnContext(ctx, "application owner not present",
				"appid", app.Appid, "owner", app.Owner)
			return nil
		}
		if qerr != nil {
			return qerr
		}
		if !enabled {
			s.logger.WarnContext(ctx, "application owner is disabled",
				"appid", app.Appid, "owner", app.Owner)
			return nil
		}

		if _, execErr := tx.ExecContext(ctx,
			"DELETE FROM applications WHERE appid = $1", app.Appid); execErr != nil {
			return execErr
		}
		if _, execErr := tx.ExecContext(ctx, `
			INSERT INTO applications (appid, owner, json) VALUES ($1, $2, $3)
		`, app.Appid, app.Owner, string(blob)); execErr != nil {
			return execErr
		}
		accepted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("store: addApplication(%s): %w", app.Appid, apperrors.MapDBError(err))
	}
	return accepted, nil
}

// GetApplication returns the application with the given appid, or nil if
// absent.
func (s *Store) GetApplication(ctx context.Context, appid string) (*model.Application, error) {
	var blob string
	err := s.DB.QueryRowContext(ctx,
		"SELECT json FROM applications WHERE appid = $1", appid,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: getApplication(%s): %w", appid, apperrors.MapDBError(err))
	}
	return scanApplication(blob, appid)
}

// SafeDeleteApplication deletes an application unless any queued or running
// job still references it. Finished jobs keep their appid for history; only
// the application row disappears.
func (s *Store) SafeDeleteApplication(ctx context.Context, appid string) error {
	err := pgxutil.WithSerializableTx(ctx, s.DB, func(tx *sql.Tx) error {
		var active int
		qerr := tx.QueryRowContext(ctx, `
			SELECT count(id) FROM jobs
			WHERE appid = $1 AND state IN ($2, $3, $4)
		`, appid, model.JobQueued, model.JobStarting, model.JobStarted).Scan(&active)
		if qerr != nil {
			return qerr
		}
		if active > 0 {
			return ErrApplicationInUse
		}
		_, execErr := tx.ExecContext(ctx, "DELETE FROM applications WHERE appid = $1", appid)
		return execErr
	})
	if err != nil {
		if errors.Is(err, ErrApplicationInUse) {
			return err
		}
		return fmt.Errorf("store: safeDeleteApplication(%s): %w", appid, apperrors.MapDBError(err))
	}
	s.logger.InfoContext(ctx, "application deleted", "appid", appid)
	return nil
}
