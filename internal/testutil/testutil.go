// Package testutil provides database harness helpers for the store
// integration tests. Tests skip when no PostgreSQL instance is reachable,
// so the unit suite stays runnable without infrastructure.
package testutil

import (
	"context"
	"database/sql"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/retzproject/retz/internal/data"
)

// TestDBConfig holds connection settings for the test database.
type TestDBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// DefaultTestDBConfig reads TEST_DB_* overrides, defaulting to a local
// instance on the non-standard port 55432 so a development database on 5432
// is never touched by accident.
func DefaultTestDBConfig() TestDBConfig {
	return TestDBConfig{
		Host:     getEnvOrDefault("TEST_DB_HOST", "localhost"),
		Port:     getEnvOrDefault("TEST_DB_PORT", "55432"),
		User:     getEnvOrDefault("TEST_DB_USER", "retz"),
		Password: getEnvOrDefault("TEST_DB_PASSWORD", "retz"),
		DBName:   getEnvOrDefault("TEST_DB_NAME", "retz"),
	}
}

// TestingTB covers both *testing.T and *testing.B.
type TestingTB interface {
	Helper()
	Skip(args ...interface{})
	Skipf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	Logf(format string, args ...interface{})
}

func buildDSN(cfg TestDBConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, cfg.Port),
		Path:   cfg.DBName,
	}
	q := u.Query()
	q.Set("sslmode", "disable")
	// The store requires serializable isolation; tests run under the same
	// session default as production.
	q.Set("options", "-c default_transaction_isolation=serializable")
	u.RawQuery = q.Encode()
	return u.String()
}

// SkipIfNoTestDB skips the test if the test database is not reachable.
// Set TEST_REQUIRE_DB=1 to fail instead of skipping (for CI).
func SkipIfNoTestDB(t TestingTB) {
	t.Helper()

	db, err := sql.Open("pgx", buildDSN(DefaultTestDBConfig()))
	if err != nil {
		unavailable(t, err)
		return
	}
	defer closeAndLog(t, "probe db", db)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if pingErr := db.PingContext(ctx); pingErr != nil {
		unavailable(t, pingErr)
	}
}

func unavailable(t TestingTB, err error) {
	t.Helper()
	if envBool("TEST_REQUIRE_DB") {
		t.Fatal("Test database not available:", err)
	}
	t.Skip("Test database not available:", err)
}

// SetupTestDB opens a connection pool to the test database and ensures the
// schema exists, wiping any rows left over from earlier runs.
func SetupTestDB(t TestingTB) *sql.DB {
	t.Helper()
	SkipIfNoTestDB(t)

	db, err := sql.Open("pgx", buildDSN(DefaultTestDBConfig()))
	if err != nil {
		t.Fatal("Failed to open test database:", err)
	}
	db.SetMaxOpenConns(10)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		closeAndLog(t, "test db", db)
		t.Fatal("Failed to connect to test database:", pingErr)
	}

	store := data.NewStore(db, data.RepoConfig{Logger: quietLogger()})
	if bootErr := store.Bootstrap(ctx); bootErr != nil {
		closeAndLog(t, "test db", db)
		t.Fatal("Failed to create schema:", bootErr)
	}

	CleanupTestDB(t, db)
	return db
}

// CleanupTestDB deletes all rows. Jobs reference applications and
// applications reference users, so deletion runs child first.
func CleanupTestDB(t TestingTB, db *sql.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, table := range []string{"jobs", "applications", "users", "properties"} {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("Failed to clean up table %s: %v", table, err)
		}
	}
}

// WithStoreDB runs fn against a Store bound to a clean test database and
// tears everything down afterwards. The supplied time provider may be nil.
func WithStoreDB(t TestingTB, tp data.TimeProvider, fn func(ctx context.Context, store *data.Store)) {
	t.Helper()

	db := SetupTestDB(t)
	store := data.NewStore(db, data.RepoConfig{
		Logger:       quietLogger(),
		TimeProvider: tp,
	})

	fn(context.Background(), store)

	CleanupTestDB(t, db)
	closeAndLog(t, "test db", db)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func closeAndLog(t TestingTB, name string, closer interface{ Close() error }) {
	if err := closer.Close(); err != nil {
		t.Logf("warning: failed to close %s: %v", name, err)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// TestTime returns a fixed instant for deterministic timestamps.
func TestTime() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}
