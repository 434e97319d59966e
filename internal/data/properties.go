package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/retzproject/retz/internal/errors"
	"github.com/retzproject/retz/internal/data/pgxutil"
)

// frameworkIDKey is the properties row carrying the broker registration id.
const frameworkIDKey = "frameworkId"

// SetFrameworkID records the broker's framework id. It returns true when the
// key was newly inserted and false when an existing value was overwritten,
// which tells the dispatcher whether this registration is the first one.
func (s *Store) SetFrameworkID(ctx context.Context, value string) (bool, error) {
	if value == "" {
		return false, apperrors.Validationf("setFrameworkId: empty value")
	}

	inserted := false
	err := pgxutil.WithSerializableTx(ctx, s.DB, func(tx *sql.Tx) error {
		var existing string
		qerr := tx.QueryRowContext(ctx,
			"SELECT value FROM properties WHERE key = $1", frameworkIDKey,
		).Scan(&existing)
		switch {
		case errors.Is(qerr, sql.ErrNoRows):
			if _, execErr := tx.ExecContext(ctx,
				"INSERT INTO properties (key, value) VALUES ($1, $2)",
				frameworkIDKey, value); execErr != nil {
				return execErr
			}
			inserted = true
			return nil
		case qerr != nil:
			return qerr
		default:
			_, execErr := tx.ExecContext(ctx,
				"UPDATE properties SET value = $2 WHERE key = $1",
				frameworkIDKey, value)
			return execErr
		}
	})
	if err != nil {
		return false, fmt.Errorf("store: setFrameworkId: %w", apperrors.MapDBError(err))
	}
	return inserted, nil
}

// GetFrameworkID returns the stored framework id, or "" when none has been
// recorded yet. Framework ids are never empty, so "" is unambiguous.
func (s *Store) GetFrameworkID(ctx context.Context) (string, error) {
	var value string
	err := s.DB.QueryRowContext(ctx,
		"SELECT value FROM properties WHERE key = $1", frameworkIDKey,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: getFrameworkId: %w", apperrors.MapDBError(err))
	}
	return value, nil
}

// DeleteAllProperties clears the properties table. Used when the cluster is
// re-registered from scratch and the old framework id must not leak into the
// new incarnation.
func (s *Store) DeleteAllProperties(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, "DELETE FROM properties"); err != nil {
		return fmt.Errorf("store: deleteAllProperties: %w", apperrors.MapDBError(err))
	}
	return nil
}
