package data

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	"github.com/retzproject/retz/internal/data/pgxutil"
)

//go:embed ddl.sql
var schemaDDL string

// schemaTables are the four tables the scheduler owns.
var schemaTables = []string{"users", "applications", "jobs", "properties"}

// VerifySerializable checks at startup that the backend actually provides
// SERIALIZABLE isolation. A backend that silently downgrades the level would
// void every correctness argument in this package, so refusal is fatal.
func (s *Store) VerifySerializable(ctx context.Context) error {
	return pgxutil.WithSerializableTx(ctx, s.DB, func(tx *sql.Tx) error {
		var level string
		if err := tx.QueryRowContext(ctx, "SHOW transaction_isolation").Scan(&level); err != nil {
			return fmt.Errorf("%w: %v", ErrIsolationUnsupported, err)
		}
		if !strings.EqualFold(level, "serializable") {
			return fmt.Errorf("%w: backend reports %q", ErrIsolationUnsupported, level)
		}
		return nil
	})
}

// Bootstrap probes the schema and creates it when absent. All four tables
// present means an initialized database; none means a fresh one and the DDL
// runs; anything in between means a half-migrated database that must not be
// touched.
func (s *Store) Bootstrap(ctx context.Context) error {
	present, err := s.tablesPresent(ctx)
	if err != nil {
		return fmt.Errorf("store: schema probe failed: %w", err)
	}

	switch present {
	case len(schemaTables):
		s.logger.InfoContext(ctx, "schema present", "tables", len(schemaTables))
		return nil
	case 0:
		s.logger.InfoContext(ctx, "no schema found, creating tables")
		return pgxutil.WithSerializableTx(ctx, s.DB, func(tx *sql.Tx) error {
			if _, execErr := tx.ExecContext(ctx, schemaDDL); execErr != nil {
				return fmt.Errorf("store: create schema: %w", execErr)
			}
			return nil
		})
	default:
		s.logger.ErrorContext(ctx, "partial schema detected",
			"present", present,
			"expected", len(schemaTables),
		)
		return ErrSchemaPartial
	}
}

// tablesPresent counts how many of the scheduler tables exist. Some backends
// fold unquoted identifiers to upper case, so both spellings are accepted.
func (s *Store) tablesPresent(ctx context.Context) (int, error) {
	count := 0
	for _, name := range schemaTables {
		var exists bool
		err := s.DB.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name IN ($1, $2)
				  AND table_schema NOT IN ('pg_catalog', 'information_schema')
			)
		`, name, strings.ToUpper(name)).Scan(&exists)
		if err != nil {
			return 0, err
		}
		if exists {
			count++
		}
	}
	return count, nil
}

// DropAll removes every scheduler table. Test support only.
func (s *Store) DropAll(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, "DROP TABLE IF EXISTS jobs, applications, users, properties")
	if err != nil {
		return fmt.Errorf("store: drop tables: %w", err)
	}
	return nil
}
