package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/retzproject/retz/internal/errors"
	"github.com/retzproject/retz/internal/data/pgxutil"
	"github.com/retzproject/retz/internal/domain/model"
)

func scanUser(jsonBlob, keyID string, enabled bool) (*model.User, error) {
	var u model.User
	if err := json.Unmarshal([]byte(jsonBlob), &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if u.KeyID != keyID || u.Enabled != enabled {
		return nil, apperrors.Invariantf(
			"user row (%s, enabled=%t) disagrees with JSON (%s, enabled=%t)",
			keyID, enabled, u.KeyID, u.Enabled)
	}
	return &u, nil
}

// AllUsers returns every user, hydrated from the json column.
func (s *Store) AllUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.DB.QueryContext(ctx, "SELECT key_id, enabled, json FROM users")
	if err != nil {
		return nil, fmt.Errorf("store: allUsers: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		var keyID, blob string
		var enabled bool
		if scanErr := rows.Scan(&keyID, &enabled, &blob); scanErr != nil {
			return nil, fmt.Errorf("store: allUsers: %w", scanErr)
		}
		u, decodeErr := scanUser(blob, keyID, enabled)
		if decodeErr != nil {
			return nil, decodeErr
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: allUsers: %w", err)
	}
	return users, nil
}

// AddUser inserts a user row.
func (s *Store) AddUser(ctx context.Context, u *model.User) error {
	if err := u.Validate(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid user")
	}
	blob, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO users (key_id, secret, enabled, json) VALUES ($1, $2, $3, $4)
	`, u.KeyID, u.Secret, u.Enabled, string(blob))
	if err != nil {
		return fmt.Errorf("store: addUser(%s): %w", u.KeyID, apperrors.MapDBError(err))
	}
	return nil
}

// newCredential returns a 32-character hex string usable as a key id or secret.
func newCredential() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateUser generates fresh credentials and inserts an enabled user.
func (s *Store) CreateUser(ctx context.Context, info string) (*model.User, error) {
	u := model.NewUser(newCredential(), newCredential(), info)
	s.logger.InfoContext(ctx, "creating user", "key_id", u.KeyID)
	if err := s.AddUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser returns the user with the given key id, or nil if absent.
func (s *Store) GetUser(ctx context.Context, keyID string) (*model.User, error) {
	var blob string
	var enabled bool
	err := s.DB.QueryRowContext(ctx,
		"SELECT enabled, json FROM users WHERE key_id = $1", keyID,
	).Scan(&enabled, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: getUser(%s): %w", keyID, apperrors.MapDBError(err))
	}
	return scanUser(blob, keyID, enabled)
}

// EnableUser toggles the enabled flag. Users are never deleted; disabling is
// the only way to retire a key.
func (s *Store) EnableUser(ctx context.Context, keyID string, enabled bool) error {
	err := pgxutil.WithSerializableTx(ctx, s.DB, func(tx *sql.Tx) error {
		var blob string
		var wasEnabled bool
		qerr := tx.QueryRowContext(ctx,
			"SELECT enabled, json FROM users WHERE key_id = $1", keyID,
		).Scan(&wasEnabled, &blob)
		if errors.Is(qerr, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		if qerr != nil {
			return qerr
		}

		u, decodeErr := scanUser(blob, keyID, wasEnabled)
		if decodeErr != nil {
			return decodeErr
		}
		u.Enabled = enabled

		updated, encodeErr := json.Marshal(u)
		if encodeErr != nil {
			return fmt.Errorf("encode user: %w", encodeErr)
		}
		_, execErr := tx.ExecContext(ctx, `
			UPDATE users SET enabled = $2, json = $3 WHERE key_id = $1
		`, keyID, enabled, string(updated))
		return execErr
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("store: enableUser(%s): %w", keyID, apperrors.MapDBError(err))
	}
	return nil
}
