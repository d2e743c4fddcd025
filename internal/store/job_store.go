package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/threatforge/threatforge/internal/job"
	"github.com/threatforge/threatforge/internal/types"
)

// JobStore implements job.Store over SQLite.
type JobStore struct {
	conn *sql.DB
	path string
}

var _ job.Store = (*JobStore)(nil)

// Path returns the database file path.
func (s *JobStore) Path() string {
	return s.path
}

// Close closes the underlying connection.
func (s *JobStore) Close() error {
	return s.conn.Close()
}

// GetStatus retrieves the status row for a job.
func (s *JobStore) GetStatus(ctx context.Context, id types.ID) (*job.Status, error) {
	query := `SELECT job_id, state, retry_count, detail, updated_at FROM job_status WHERE job_id = ?`

	var status job.Status
	var jobID, state string
	err := s.conn.QueryRowContext(ctx, query, id.String()).Scan(
		&jobID, &state, &status.RetryCount, &status.Detail, &status.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewError(types.JOB_NOT_FOUND, "job not found: "+id.String())
	}
	if err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to query job status", err)
	}

	status.ID = types.ID(jobID)
	status.State = types.JobState(state)
	return &status, nil
}

// SetStatus upserts the status row for a job.
func (s *JobStore) SetStatus(ctx context.Context, status *job.Status) error {
	query := `
		INSERT INTO job_status (job_id, state, retry_count, detail, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			state = excluded.state,
			retry_count = excluded.retry_count,
			detail = excluded.detail,
			updated_at = excluded.updated_at
	`

	_, err := s.conn.ExecContext(ctx, query,
		status.ID.String(),
		status.State.String(),
		status.RetryCount,
		status.Detail,
		status.UpdatedAt,
	)
	if err != nil {
		return types.WrapError(types.STORE_WRITE_FAILED, "failed to write job status", err)
	}
	return nil
}

// GetResults retrieves and decodes the results snapshot for a job.
func (s *JobStore) GetResults(ctx context.Context, id types.ID) (*job.Results, error) {
	query := `SELECT payload FROM job_results WHERE job_id = ?`

	var payload string
	err := s.conn.QueryRowContext(ctx, query, id.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewError(types.JOB_NOT_FOUND, "no results for job: "+id.String())
	}
	if err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to query job results", err)
	}

	var results job.Results
	if err := json.Unmarshal([]byte(payload), &results); err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to decode job results", err)
	}
	return &results, nil
}

// SetResults upserts the results snapshot, preserving created_at across
// replaces.
func (s *JobStore) SetResults(ctx context.Context, results *job.Results) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return types.WrapError(types.STORE_WRITE_FAILED, "failed to encode job results", err)
	}

	query := `
		INSERT INTO job_results (job_id, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	createdAt := results.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	if _, err := s.conn.ExecContext(ctx, query, results.JobID.String(), string(payload), createdAt, now); err != nil {
		return types.WrapError(types.STORE_WRITE_FAILED, "failed to write job results", err)
	}
	return nil
}

// GetTrail retrieves and decodes the reasoning trail for a job.
func (s *JobStore) GetTrail(ctx context.Context, id types.ID) (*job.Trail, error) {
	query := `SELECT payload FROM job_trail WHERE job_id = ?`

	var payload string
	err := s.conn.QueryRowContext(ctx, query, id.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewError(types.JOB_NOT_FOUND, "no trail for job: "+id.String())
	}
	if err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to query job trail", err)
	}

	var trail job.Trail
	if err := json.Unmarshal([]byte(payload), &trail); err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to decode job trail", err)
	}
	return &trail, nil
}

// UpdateTrail upserts the reasoning trail for a job.
func (s *JobStore) UpdateTrail(ctx context.Context, id types.ID, trail *job.Trail) error {
	payload, err := json.Marshal(trail)
	if err != nil {
		return types.WrapError(types.STORE_WRITE_FAILED, "failed to encode job trail", err)
	}

	query := `
		INSERT INTO job_trail (job_id, payload)
		VALUES (?, ?)
		ON CONFLICT(job_id) DO UPDATE SET payload = excluded.payload
	`

	if _, err := s.conn.ExecContext(ctx, query, id.String(), string(payload)); err != nil {
		return types.WrapError(types.STORE_WRITE_FAILED, "failed to write job trail", err)
	}
	return nil
}

// AddToIndex upserts a job's listing entry.
func (s *JobStore) AddToIndex(ctx context.Context, entry job.IndexEntry) error {
	query := `
		INSERT INTO job_index (job_id, title, mode, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			title = excluded.title,
			mode = excluded.mode
	`

	_, err := s.conn.ExecContext(ctx, query,
		entry.ID.String(),
		entry.Title,
		entry.Mode.String(),
		entry.CreatedAt,
	)
	if err != nil {
		return types.WrapError(types.STORE_WRITE_FAILED, "failed to index job", err)
	}
	return nil
}

// ListIndex returns the job index newest-first.
func (s *JobStore) ListIndex(ctx context.Context) ([]job.IndexEntry, error) {
	query := `SELECT job_id, title, mode, created_at FROM job_index ORDER BY created_at DESC`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to query job index", err)
	}
	defer rows.Close()

	var entries []job.IndexEntry
	for rows.Next() {
		var entry job.IndexEntry
		var id, mode string
		if err := rows.Scan(&id, &entry.Title, &mode, &entry.CreatedAt); err != nil {
			return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to scan job index row", err)
		}
		entry.ID = types.ID(id)
		entry.Mode = types.ExecutionMode(mode)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to iterate job index", err)
	}

	return entries, nil
}
