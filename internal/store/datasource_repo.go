package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pinesagetechnology/filemonitor/internal/apperrors"
	"github.com/pinesagetechnology/filemonitor/internal/models"
)

// DataSourceRepo persists models.FileDataSource rows.
type DataSourceRepo struct {
	db *sql.DB
}

// Get returns the FileDataSource row for name, or (false, nil) if absent.
func (r *DataSourceRepo) Get(ctx context.Context, name string) (models.FileDataSource, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT name, folder_path, archive_folder_path, file_pattern, is_enabled, needs_refresh, created_at
		FROM data_sources WHERE name = ?`, name)

	ds, err := scanDataSource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.FileDataSource{}, false, nil
		}
		return models.FileDataSource{}, false, &apperrors.StoreError{Op: "datasource.Get", Transient: true, Err: err}
	}
	return ds, true, nil
}

// ListAll returns every FileDataSource ordered by name, giving callers a
// deterministic ordering for reconciliation diffs.
func (r *DataSourceRepo) ListAll(ctx context.Context) ([]models.FileDataSource, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, folder_path, archive_folder_path, file_pattern, is_enabled, needs_refresh, created_at
		FROM data_sources ORDER BY name ASC`)
	if err != nil {
		return nil, &apperrors.StoreError{Op: "datasource.ListAll", Transient: true, Err: err}
	}
	defer rows.Close()

	var out []models.FileDataSource
	for rows.Next() {
		ds, err := scanDataSource(rows)
		if err != nil {
			return nil, &apperrors.StoreError{Op: "datasource.ListAll.scan", Err: err}
		}
		out = append(out, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperrors.StoreError{Op: "datasource.ListAll.rows", Err: err}
	}
	return out, nil
}

// Upsert creates or fully replaces a FileDataSource row.
func (r *DataSourceRepo) Upsert(ctx context.Context, ds models.FileDataSource) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO data_sources (name, folder_path, archive_folder_path, file_pattern, is_enabled, needs_refresh)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(name) DO UPDATE SET
			folder_path = excluded.folder_path,
			archive_folder_path = excluded.archive_folder_path,
			file_pattern = excluded.file_pattern,
			is_enabled = excluded.is_enabled,
			needs_refresh = 1
	`, ds.Name, ds.FolderPath, ds.ArchiveFolderPath, ds.FilePattern, boolToInt(ds.IsEnabled))
	if err != nil {
		return &apperrors.StoreError{Op: "datasource.Upsert", Transient: true, Err: err}
	}
	return nil
}

// SetEnabled flips is_enabled and marks the row as needing a watcher
// refresh so the supervisor picks up the change on its next tick.
func (r *DataSourceRepo) SetEnabled(ctx context.Context, name string, enabled bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE data_sources SET is_enabled = ?, needs_refresh = 1 WHERE name = ?`,
		boolToInt(enabled), name)
	if err != nil {
		return &apperrors.StoreError{Op: "datasource.SetEnabled", Transient: true, Err: err}
	}
	return checkRowAffected(res, "datasource.SetEnabled", name)
}

// ClearNeedsRefresh resets needs_refresh once the supervisor has
// reconciled the watcher for this data source.
func (r *DataSourceRepo) ClearNeedsRefresh(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE data_sources SET needs_refresh = 0 WHERE name = ?`, name)
	if err != nil {
		return &apperrors.StoreError{Op: "datasource.ClearNeedsRefresh", Transient: true, Err: err}
	}
	return nil
}

// Delete removes a FileDataSource row. Existing UploadJob rows referencing
// it are left untouched so in-flight/queued uploads still drain.
func (r *DataSourceRepo) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM data_sources WHERE name = ?`, name)
	if err != nil {
		return &apperrors.StoreError{Op: "datasource.Delete", Transient: true, Err: err}
	}
	return checkRowAffected(res, "datasource.Delete", name)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataSource(row rowScanner) (models.FileDataSource, error) {
	var ds models.FileDataSource
	var isEnabled, needsRefresh int
	var createdAt string
	if err := row.Scan(&ds.Name, &ds.FolderPath, &ds.ArchiveFolderPath, &ds.FilePattern,
		&isEnabled, &needsRefresh, &createdAt); err != nil {
		return models.FileDataSource{}, err
	}
	ds.IsEnabled = isEnabled != 0
	ds.NeedsRefresh = needsRefresh != 0
	ds.CreatedAt = parseTimestamp(createdAt)
	return ds, nil
}
