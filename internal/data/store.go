// Package data implements the persistent store for users, applications, jobs,
// and scheduler properties. Every entity row carries indexed columns used for
// queries plus a json column holding the canonical serialized entity; the
// JSON is the source of truth for all non-indexed fields, and the two views
// must never disagree.
package data

import (
	"context"
	"database/sql"
	"log/slog"
	"time"
)

// RepoConfig holds configuration options for the store.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// Store provides all database operations of the scheduler. It is the only
// component allowed to write persistent state; services read through it and
// propose mutations as typed transitions.
type Store struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewStore creates a Store over an established connection pool.
func NewStore(db *sql.DB, cfg RepoConfig) *Store {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		DB:           db,
		timeProvider: tp,
		logger:       logger.With("component", "store"),
	}
}

// drainPollInterval is how long Stop sleeps between checks of the active
// connection count.
const drainPollInterval = 512 * time.Millisecond

// Stop drains the pool: it waits until no connection is in use, polling with
// a fixed backoff, then closes the pool. The context bounds the wait.
func (s *Store) Stop(ctx context.Context) error {
	for {
		stats := s.DB.Stats()
		if stats.InUse == 0 {
			break
		}
		s.logger.InfoContext(ctx, "draining store connections",
			"in_use", stats.InUse,
			"idle", stats.Idle,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(drainPollInterval):
		}
	}
	if err := s.DB.Close(); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "store stopped")
	return nil
}
