package data

import "errors"

// Sentinel errors for store operations.
var (
	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("job not found")
	// ErrUserNotFound is returned when a user key id does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrApplicationMissing is returned by SafeAddJob when the referenced
	// application does not exist.
	ErrApplicationMissing = errors.New("no such application")
	// ErrApplicationInUse is returned by SafeDeleteApplication while queued or
	// running jobs still reference the application.
	ErrApplicationInUse = errors.New("application has non-finished jobs")
	// ErrSchemaPartial is fatal at startup: some but not all scheduler tables
	// exist, so the database is half-migrated and must not be touched.
	ErrSchemaPartial = errors.New("database schema is partially created")
	// ErrIsolationUnsupported is fatal at startup: the backend does not
	// provide SERIALIZABLE isolation.
	ErrIsolationUnsupported = errors.New("database does not support serializable isolation")
)
