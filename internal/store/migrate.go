package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations is an ordered list of idempotent schema statements. Entry 0
// creates schema_migrations itself and runs on every open without being
// recorded; every later entry is applied once and recorded there. New
// entries must only ever be appended.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,

	`CREATE TABLE IF NOT EXISTS configurations (
		key         TEXT PRIMARY KEY,
		value       TEXT NOT NULL,
		category    TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS data_sources (
		name                TEXT PRIMARY KEY,
		folder_path         TEXT NOT NULL,
		archive_folder_path TEXT NOT NULL DEFAULT '',
		file_pattern        TEXT NOT NULL DEFAULT '',
		is_enabled          INTEGER NOT NULL DEFAULT 1,
		needs_refresh       INTEGER NOT NULL DEFAULT 0,
		created_at          TEXT NOT NULL DEFAULT (datetime('now'))
	)`,

	`CREATE TABLE IF NOT EXISTS upload_queue (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		data_source_name    TEXT NOT NULL,
		local_path          TEXT NOT NULL,
		target_container    TEXT NOT NULL,
		target_object_name  TEXT NOT NULL,
		size_bytes          INTEGER NOT NULL,
		state               TEXT NOT NULL DEFAULT 'Pending',
		attempts            INTEGER NOT NULL DEFAULT 0,
		last_error          TEXT NOT NULL DEFAULT '',
		next_attempt_at     TEXT NOT NULL DEFAULT (datetime('now')),
		created_at          TEXT NOT NULL DEFAULT (datetime('now')),
		updated_at          TEXT NOT NULL DEFAULT (datetime('now'))
	)`,

	`CREATE INDEX IF NOT EXISTS idx_upload_queue_state_next_attempt
		ON upload_queue (state, next_attempt_at)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_upload_queue_dedup
		ON upload_queue (data_source_name, local_path)
		WHERE state IN ('Pending', 'InFlight')`,
}

// migrate applies every migration whose version is not already recorded in
// schema_migrations, each inside its own transaction.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, migrations[0]); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for version := 1; version < len(migrations); version++ {
		var exists bool
		row := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)`, version)
		if err := row.Scan(&exists); err != nil {
			return fmt.Errorf("check migration %d: %w", version, err)
		}
		if exists {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[version]); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", version, err)
		}
	}

	return nil
}
