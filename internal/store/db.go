package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go-catmat-matcher/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	catalog_version TEXT NOT NULL,
	thresholds TEXT NOT NULL,
	concurrency INTEGER NOT NULL,
	records TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS job_events (
	job_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	payload TEXT NOT NULL,
	PRIMARY KEY (job_id, seq)
);
CREATE TABLE IF NOT EXISTS job_errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL,
	error_message TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

// Store keeps jobs, their event logs and lookup errors in sqlite
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// JobError is one persisted lookup failure
type JobError struct {
	JobID     string    `json:"job_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Open connects to the sqlite database at path and creates the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serialises writers and keeps :memory: shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveJob inserts a new job with its records
func (s *Store) SaveJob(ctx context.Context, job model.StoredJob) error {
	thresholds, err := json.Marshal(job.Thresholds)
	if err != nil {
		return err
	}
	records, err := json.Marshal(job.Records)
	if err != nil {
		return err
	}
	created := job.CreatedAt
	if created.IsZero() {
		created = s.now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, name, catalog_version, thresholds, concurrency, records, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.JobID, job.Name, job.CatalogVersion, string(thresholds), job.Concurrency, string(records),
		string(job.State), created, s.now().UTC())
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.JobID, err)
	}
	return nil
}

// UpdateJobStatus updates job status
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, state model.JobState) error {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		string(state), s.now().UTC(), jobID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", model.ErrJobNotFound, jobID)
	}
	return nil
}

// AppendEvent stores one event. Re-appending an existing seq is a no-op.
func (s *Store) AppendEvent(ctx context.Context, jobID string, ev model.ProcessingEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO job_events (job_id, seq, payload) VALUES (?, ?, ?)`,
		jobID, ev.Seq, string(payload))
	return err
}

// LoadEvents returns a job's events in log order
func (s *Store) LoadEvents(ctx context.Context, jobID string) ([]model.ProcessingEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM job_events WHERE job_id = ? ORDER BY seq`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.ProcessingEvent
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev model.ProcessingEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decode event of %s: %w", jobID, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// SaveJobError records an error for a job
func (s *Store) SaveJobError(ctx context.Context, jobID string, err error) error {
	if err == nil {
		return nil
	}
	_, e := s.db.ExecContext(ctx, `INSERT INTO job_errors (job_id, error_message, created_at) VALUES (?, ?, ?)`,
		jobID, err.Error(), s.now().UTC())
	return e
}

// GetJobErrors lists a job's recorded errors, oldest first
func (s *Store) GetJobErrors(ctx context.Context, jobID string) ([]JobError, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, error_message, created_at FROM job_errors WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JobError
	for rows.Next() {
		var je JobError
		if err := rows.Scan(&je.JobID, &je.Message, &je.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, je)
	}
	return out, rows.Err()
}

const jobColumns = `id, name, catalog_version, thresholds, concurrency, records, status, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (model.StoredJob, error) {
	var (
		job                 model.StoredJob
		thresholds, records string
		status              string
	)
	if err := row.Scan(&job.JobID, &job.Name, &job.CatalogVersion, &thresholds, &job.Concurrency,
		&records, &status, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return model.StoredJob{}, err
	}
	job.State = model.JobState(status)
	if err := json.Unmarshal([]byte(thresholds), &job.Thresholds); err != nil {
		return model.StoredJob{}, fmt.Errorf("decode thresholds of %s: %w", job.JobID, err)
	}
	if err := json.Unmarshal([]byte(records), &job.Records); err != nil {
		return model.StoredJob{}, fmt.Errorf("decode records of %s: %w", job.JobID, err)
	}
	return job, nil
}

// ListJobs returns all jobs, newest first
func (s *Store) ListJobs(ctx context.Context) ([]model.StoredJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []model.StoredJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// GetJob fetches one job with its records
func (s *Store) GetJob(ctx context.Context, jobID string) (model.StoredJob, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.StoredJob{}, fmt.Errorf("%w: %s", model.ErrJobNotFound, jobID)
	}
	return job, err
}
