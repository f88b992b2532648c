package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pinesagetechnology/filemonitor/internal/apperrors"
	"github.com/pinesagetechnology/filemonitor/internal/models"
)

// UploadJobRepo persists models.UploadJob rows and implements the atomic
// claim/reclaim operations the upload processor relies on for
// exactly-once-in-flight semantics.
type UploadJobRepo struct {
	db *sql.DB
}

// Enqueue inserts a new Pending job. A duplicate (data_source_name,
// local_path) while a prior job for the same file is still Pending or
// InFlight is rejected by the unique partial index and surfaced as a
// StoreError; callers treat that as "already queued" and ignore it.
func (r *UploadJobRepo) Enqueue(ctx context.Context, job models.UploadJob) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO upload_queue (data_source_name, local_path, target_container, target_object_name, size_bytes, state)
		VALUES (?, ?, ?, ?, ?, ?)
	`, job.DataSourceName, job.LocalPath, job.TargetContainer, job.TargetObjectName, job.SizeBytes, models.StatePending)
	if err != nil {
		return 0, &apperrors.StoreError{Op: "uploadjob.Enqueue", Transient: true, Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &apperrors.StoreError{Op: "uploadjob.Enqueue.lastID", Err: err}
	}
	return id, nil
}

// ClaimBatch atomically transitions up to limit Pending jobs whose
// next_attempt_at has arrived into InFlight, and returns the claimed rows.
// The UPDATE...RETURNING statement is the compare-and-swap: only rows still
// in Pending at the moment of the update are claimed, so two processor
// instances racing on the same table never both claim the same job.
func (r *UploadJobRepo) ClaimBatch(ctx context.Context, limit int) ([]models.UploadJob, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE upload_queue
		SET state = ?, updated_at = datetime('now')
		WHERE id IN (
			SELECT id FROM upload_queue
			WHERE state = ? AND next_attempt_at <= datetime('now')
			ORDER BY next_attempt_at ASC, id ASC
			LIMIT ?
		)
		RETURNING id, data_source_name, local_path, target_container, target_object_name,
			size_bytes, state, attempts, last_error, next_attempt_at, created_at, updated_at
	`, models.StateInFlight, models.StatePending, limit)
	if err != nil {
		return nil, &apperrors.StoreError{Op: "uploadjob.ClaimBatch", Transient: true, Err: err}
	}
	defer rows.Close()

	var out []models.UploadJob
	for rows.Next() {
		job, err := scanUploadJob(rows)
		if err != nil {
			return nil, &apperrors.StoreError{Op: "uploadjob.ClaimBatch.scan", Err: err}
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperrors.StoreError{Op: "uploadjob.ClaimBatch.rows", Err: err}
	}
	return out, nil
}

// ReclaimStale resets InFlight rows whose updated_at is older than
// olderThanSeconds back to Pending, for recovery after a worker crash left
// a row stranded in InFlight. Returns the number of rows reclaimed.
func (r *UploadJobRepo) ReclaimStale(ctx context.Context, olderThanSeconds int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE upload_queue
		SET state = ?, updated_at = datetime('now')
		WHERE state = ? AND updated_at <= datetime('now', ? || ' seconds')
	`, models.StatePending, models.StateInFlight, fmt.Sprintf("-%d", olderThanSeconds))
	if err != nil {
		return 0, &apperrors.StoreError{Op: "uploadjob.ReclaimStale", Transient: true, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &apperrors.StoreError{Op: "uploadjob.ReclaimStale.rowsAffected", Err: err}
	}
	return n, nil
}

// MarkSucceeded transitions a job to Succeeded.
func (r *UploadJobRepo) MarkSucceeded(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE upload_queue SET state = ?, last_error = '', updated_at = datetime('now') WHERE id = ?
	`, models.StateSucceeded, id)
	if err != nil {
		return &apperrors.StoreError{Op: "uploadjob.MarkSucceeded", Transient: true, Err: err}
	}
	return nil
}

// MarkRetry increments attempts, records lastErr, and schedules the next
// attempt at nextAttemptAt, transitioning the job back to Pending.
func (r *UploadJobRepo) MarkRetry(ctx context.Context, id int64, lastErr string, nextAttemptAt string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE upload_queue
		SET state = ?, attempts = attempts + 1, last_error = ?, next_attempt_at = ?, updated_at = datetime('now')
		WHERE id = ?
	`, models.StatePending, lastErr, nextAttemptAt, id)
	if err != nil {
		return &apperrors.StoreError{Op: "uploadjob.MarkRetry", Transient: true, Err: err}
	}
	return nil
}

// MarkFailed transitions a job to its terminal Failed state after the
// retry budget is exhausted or a permanent error was classified.
func (r *UploadJobRepo) MarkFailed(ctx context.Context, id int64, lastErr string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE upload_queue
		SET state = ?, attempts = attempts + 1, last_error = ?, updated_at = datetime('now')
		WHERE id = ?
	`, models.StateFailed, lastErr, id)
	if err != nil {
		return &apperrors.StoreError{Op: "uploadjob.MarkFailed", Transient: true, Err: err}
	}
	return nil
}

// ListByState returns jobs in the given state ordered by id, for CLI
// inspection (`queue list`, `queue failed`).
func (r *UploadJobRepo) ListByState(ctx context.Context, state models.UploadState) ([]models.UploadJob, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, data_source_name, local_path, target_container, target_object_name,
			size_bytes, state, attempts, last_error, next_attempt_at, created_at, updated_at
		FROM upload_queue WHERE state = ? ORDER BY id ASC
	`, state)
	if err != nil {
		return nil, &apperrors.StoreError{Op: "uploadjob.ListByState", Transient: true, Err: err}
	}
	defer rows.Close()

	var out []models.UploadJob
	for rows.Next() {
		job, err := scanUploadJob(rows)
		if err != nil {
			return nil, &apperrors.StoreError{Op: "uploadjob.ListByState.scan", Err: err}
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// Stats returns the count of jobs in each terminal/non-terminal state.
func (r *UploadJobRepo) Stats(ctx context.Context) (map[models.UploadState]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM upload_queue GROUP BY state`)
	if err != nil {
		return nil, &apperrors.StoreError{Op: "uploadjob.Stats", Transient: true, Err: err}
	}
	defer rows.Close()

	out := map[models.UploadState]int{}
	for rows.Next() {
		var state models.UploadState
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, &apperrors.StoreError{Op: "uploadjob.Stats.scan", Err: err}
		}
		out[state] = count
	}
	return out, rows.Err()
}

// RequeueFailed resets a Failed job back to Pending with a reset attempt
// counter, for the `queue retry` CLI command.
func (r *UploadJobRepo) RequeueFailed(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE upload_queue
		SET state = ?, attempts = 0, last_error = '', next_attempt_at = datetime('now'), updated_at = datetime('now')
		WHERE id = ? AND state = ?
	`, models.StatePending, id, models.StateFailed)
	if err != nil {
		return &apperrors.StoreError{Op: "uploadjob.RequeueFailed", Transient: true, Err: err}
	}
	return checkRowAffected(res, "uploadjob.RequeueFailed", fmt.Sprintf("%d", id))
}

// HasSucceeded reports whether a Succeeded row already references path for
// dataSourceName, used by the watcher's cold-start scan to avoid
// re-enqueuing (and re-uploading) a file that was already uploaded in a
// prior run and left in place (no archive/delete disposition configured).
func (r *UploadJobRepo) HasSucceeded(ctx context.Context, dataSourceName, localPath string) (bool, error) {
	var exists bool
	row := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM upload_queue
			WHERE data_source_name = ? AND local_path = ? AND state = ?
		)
	`, dataSourceName, localPath, models.StateSucceeded)
	if err := row.Scan(&exists); err != nil {
		return false, &apperrors.StoreError{Op: "uploadjob.HasSucceeded", Transient: true, Err: err}
	}
	return exists, nil
}

func scanUploadJob(row rowScanner) (models.UploadJob, error) {
	var job models.UploadJob
	var nextAttemptAt, createdAt, updatedAt string
	if err := row.Scan(&job.ID, &job.DataSourceName, &job.LocalPath, &job.TargetContainer,
		&job.TargetObjectName, &job.SizeBytes, &job.State, &job.Attempts, &job.LastError,
		&nextAttemptAt, &createdAt, &updatedAt); err != nil {
		return models.UploadJob{}, err
	}
	job.NextAttemptAt = parseTimestamp(nextAttemptAt)
	job.CreatedAt = parseTimestamp(createdAt)
	job.UpdatedAt = parseTimestamp(updatedAt)
	return job, nil
}
