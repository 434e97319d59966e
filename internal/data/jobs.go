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

// jobColumns is the indexed view of a job row selected alongside the blob so
// column/JSON agreement can be verified on every hydration.
const jobColumns = "id, appid, COALESCE(taskid, ''), state, priority, json"

type rowScanner interface {
	Scan(dest ...any) error
}

// scanJobRow hydrates a job from its json column and verifies that the
// indexed columns agree with the blob. Divergence means the write path was
// bypassed and the database can no longer be trusted.
func scanJobRow(scanner rowScanner) (*model.Job, error) {
	var (
		id, priority  int
		appid, taskid string
		state, blob   string
	)
	if err := scanner.Scan(&id, &appid, &taskid, &state, &priority, &blob); err != nil {
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal([]byte(blob), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	if job.ID != id || job.Appid != appid || job.TaskID != taskid ||
		string(job.State) != state || job.Priority != priority {
		return nil, apperrors.Invariantf(
			"job row (id=%d appid=%s taskid=%s state=%s priority=%d) disagrees with JSON (id=%d appid=%s taskid=%s state=%s priority=%d)",
			id, appid, taskid, state, priority,
			job.ID, job.Appid, job.TaskID, job.State, job.Priority)
	}
	return &job, nil
}

func collectJobs(rows *sql.Rows) ([]*model.Job, error) {
	defer rows.Close()
	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJobRow(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

// nullable maps "" to NULL for the taskid and finished columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// insertJob writes a new job row. The indexed columns are always derived
// from the entity here so they cannot drift from the blob.
func insertJob(ctx context.Context, tx *sql.Tx, j *model.Job) error {
	blob, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs (id, name, appid, cmd, priority, taskid, state, finished, json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, j.ID, j.Name, j.Appid, j.Cmd, j.Priority,
		nullable(j.TaskID), string(j.State), nullable(j.Finished), string(blob))
	return err
}

// writeJob rewrites the row for an existing job, columns and blob together.
func writeJob(ctx context.Context, tx *sql.Tx, j *model.Job) error {
	blob, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE jobs
		SET name = $2, appid = $3, cmd = $4, priority = $5,
		    taskid = $6, state = $7, finished = $8, json = $9
		WHERE id = $1
	`, j.ID, j.Name, j.Appid, j.Cmd, j.Priority,
		nullable(j.TaskID), string(j.State), nullable(j.Finished), string(blob))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// SafeAddJob enqueues a job. The referenced application must exist. A zero id
// is replaced by the next monotonic id inside the same transaction, so ids
// are unique and ordered even under concurrent submissions.
func (s *Store) SafeAddJob(ctx context.Context, j *model.Job) error {
	err := pgxutil.WithSerializableTx(ctx, s.DB, func(tx *sql.Tx) error {
		var one int
		qerr := tx.QueryRowContext(ctx,
			"SELECT 1 FROM applications WHERE appid = $1", j.Appid,
		).Scan(&one)
		if errors.Is(qerr, sql.ErrNoRows) {
			return ErrApplicationMissing
		}
		if qerr != nil {
			return qerr
		}

		if j.ID == 0 {
			var next int
			if idErr := tx.QueryRowContext(ctx,
				"SELECT COALESCE(MAX(id), 0) + 1 FROM jobs",
			).Scan(&next); idErr != nil {
				return idErr
			}
			j.ID = next
		}
		if verr := j.Validate(); verr != nil {
			return apperrors.Wrap(verr, apperrors.ErrCodeValidation, "invalid job")
		}
		return insertJob(ctx, tx, j)
	})
	if err != nil {
		if errors.Is(err, ErrApplicationMissing) || apperrors.IsValidation(err) {
			return err
		}
		return fmt.Errorf("store: safeAddJob(%s): %w", j.Appid, apperrors.MapDBError(err))
	}
	return nil
}

// GetJob returns the job with the given id, or nil if absent.
func (s *Store) GetJob(ctx context.Context, id int) (*model.Job, error) {
	row := s.DB.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE id = $1", id)
	job, err := scanJobRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: getJob(%d): %w", id, apperrors.MapDBError(err))
	}
	return job, nil
}

// GetJobFromTaskID returns the job owning the given broker task id, or nil.
// Broker status updates are keyed by task id, so this is the dispatcher's
// lookup on every event.
func (s *Store) GetJobFromTaskID(ctx context.Context, taskID string) (*model.Job, error) {
	row := s.DB.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE taskid = $1", taskID)
	job, err := scanJobRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: getJobFromTaskId(%s): %w", taskID, apperrors.MapDBError(err))
	}
	return job, nil
}

// GetAppJob returns a job joined with its application, or (nil, nil) when the
// job does not exist.
func (s *Store) GetAppJob(ctx context.Context, id int) (*model.Application, *model.Job, error) {
	var jobBlob, appid, appBlob string
	err := s.DB.QueryRowContext(ctx, `
		SELECT j.json, a.appid, a.json
		FROM jobs j JOIN applications a ON j.appid = a.appid
		WHERE j.id = $1
	`, id).Scan(&jobBlob, &appid, &appBlob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("store: getAppJob(%d): %w", id, apperrors.MapDBError(err))
	}

	var job model.Job
	if err := json.Unmarshal([]byte(jobBlob), &job); err != nil {
		return nil, nil, fmt.Errorf("decode job: %w", err)
	}
	if job.ID != id {
		return nil, nil, apperrors.Invariantf("job id in JSON (%d) disagrees with column (%d)", job.ID, id)
	}
	app, err := scanApplication(appBlob, appid)
	if err != nil {
		return nil, nil, err
	}
	return app, &job, nil
}

// ListJobsQuery selects jobs for a client listing.
type ListJobsQuery struct {
	Owner string
	State model.JobState
	Tag   string
	Limit int
}

// ListJobs returns the owner's jobs in the given state, newest first. The tag
// filter is applied after hydration because tags live only in the blob.
func (s *Store) ListJobs(ctx context.Context, q ListJobsQuery) ([]*model.Job, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT j.id, j.appid, COALESCE(j.taskid, ''), j.state, j.priority, j.json
		FROM jobs j JOIN applications a ON j.appid = a.appid
		WHERE a.owner = $1 AND j.state = $2
		ORDER BY j.id DESC
		LIMIT $3
	`, q.Owner, string(q.State), q.Limit)
	if err != nil {
		return nil, fmt.Errorf("store: listJobs(%s, %s): %w", q.Owner, q.State, apperrors.MapDBError(err))
	}
	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, fmt.Errorf("store: listJobs(%s, %s): %w", q.Owner, q.State, err)
	}
	if q.Tag == "" {
		return jobs, nil
	}
	filtered := jobs[:0]
	for _, j := range jobs {
		if j.HasTag(q.Tag) {
			filtered = append(filtered, j)
		}
	}
	return filtered, nil
}

// Queued returns up to limit queued jobs in submission order.
func (s *Store) Queued(ctx context.Context, limit int) ([]*model.Job, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE state = $1 ORDER BY id ASC LIMIT $2",
		string(model.JobQueued), limit)
	if err != nil {
		return nil, fmt.Errorf("store: queued: %w", apperrors.MapDBError(err))
	}
	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, fmt.Errorf("store: queued: %w", err)
	}
	return jobs, nil
}

// GetRunning returns all jobs occupying cluster resources, STARTING first.
func (s *Store) GetRunning(ctx context.Context) ([]*model.Job, error) {
	var running []*model.Job
	for _, state := range []model.JobState{model.JobStarting, model.JobStarted} {
		rows, err := s.DB.QueryContext(ctx,
			"SELECT "+jobColumns+" FROM jobs WHERE state = $1 ORDER BY id ASC",
			string(state))
		if err != nil {
			return nil, fmt.Errorf("store: getRunning: %w", apperrors.MapDBError(err))
		}
		jobs, err := collectJobs(rows)
		if err != nil {
			return nil, fmt.Errorf("store: getRunning: %w", err)
		}
		running = append(running, jobs...)
	}
	return running, nil
}

// FinishedJobs returns jobs whose finished timestamp lies in the half-open
// interval [start, end). Timestamps are RFC 3339 strings, so the comparison
// is a plain string range.
func (s *Store) FinishedJobs(ctx context.Context, start, end string) ([]*model.Job, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE $1 <= finished AND finished < $2",
		start, end)
	if err != nil {
		return nil, fmt.Errorf("store: finishedJobs(%s, %s): %w", start, end, apperrors.MapDBError(err))
	}
	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, fmt.Errorf("store: finishedJobs(%s, %s): %w", start, end, err)
	}
	return jobs, nil
}

// CountJobs returns the total number of job rows.
func (s *Store) CountJobs(ctx context.Context) (int, error) {
	var n int
	if err := s.DB.QueryRowContext(ctx, "SELECT count(id) FROM jobs").Scan(&n); err != nil {
		return 0, fmt.Errorf("store: countJobs: %w", apperrors.MapDBError(err))
	}
	return n, nil
}

func (s *Store) countByState(ctx context.Context, state model.JobState) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		"SELECT count(id) FROM jobs WHERE state = $1", string(state)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: countByState(%s): %w", state, apperrors.MapDBError(err))
	}
	return n, nil
}

// CountQueued returns the number of queued jobs.
func (s *Store) CountQueued(ctx context.Context) (int, error) {
	return s.countByState(ctx, model.JobQueued)
}

// CountRunning returns the number of jobs in STARTING or STARTED.
func (s *Store) CountRunning(ctx context.Context) (int, error) {
	starting, err := s.countByState(ctx, model.JobStarting)
	if err != nil {
		return 0, err
	}
	started, err := s.countByState(ctx, model.JobStarted)
	if err != nil {
		return 0, err
	}
	return starting + started, nil
}

// GetLatestJobID returns the highest assigned job id, or 0 on an empty table.
func (s *Store) GetLatestJobID(ctx context.Context) (int, error) {
	var id int
	err := s.DB.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(id), 0) FROM jobs").Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: getLatestJobId: %w", apperrors.MapDBError(err))
	}
	return id, nil
}
