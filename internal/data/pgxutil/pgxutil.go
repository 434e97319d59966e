// Package pgxutil provides small transaction helpers over database/sql with
// the pgx stdlib driver.
package pgxutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SerializableOpts returns the transaction options every multi-statement
// store operation runs under. The scheduler's correctness argument depends on
// SERIALIZABLE isolation, not on in-process locks.
func SerializableOpts() *sql.TxOptions {
	return &sql.TxOptions{Isolation: sql.LevelSerializable}
}

// TxConfig groups the parameters for WithTx.
type TxConfig struct {
	Opts *sql.TxOptions
	Fn   func(*sql.Tx) error
}

// WithTx runs fn inside a transaction and commits exactly once. The rollback
// in the deferred path is a no-op after a successful commit. Serialization
// failures propagate to the caller; they are never retried here.
func WithTx(ctx context.Context, db *sql.DB, cfg TxConfig) (err error) {
	tx, err := db.BeginTx(ctx, cfg.Opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rerr))
		}
	}()
	if err = cfg.Fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// WithSerializableTx runs fn inside a SERIALIZABLE transaction.
func WithSerializableTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	return WithTx(ctx, db, TxConfig{Opts: SerializableOpts(), Fn: fn})
}
