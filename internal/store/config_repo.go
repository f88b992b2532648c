package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pinesagetechnology/filemonitor/internal/apperrors"
	"github.com/pinesagetechnology/filemonitor/internal/models"
)

// ConfigRepo persists models.Configuration rows.
type ConfigRepo struct {
	db *sql.DB
}

// Get returns the Configuration row for key, or (false, nil) if absent.
func (r *ConfigRepo) Get(ctx context.Context, key string) (models.Configuration, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT key, value, category, description FROM configurations WHERE key = ?`, key)

	var cfg models.Configuration
	if err := row.Scan(&cfg.Key, &cfg.Value, &cfg.Category, &cfg.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Configuration{}, false, nil
		}
		return models.Configuration{}, false, &apperrors.StoreError{Op: "config.Get", Transient: true, Err: err}
	}
	return cfg, true, nil
}

// ListAll returns every Configuration row ordered by key.
func (r *ConfigRepo) ListAll(ctx context.Context) ([]models.Configuration, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, value, category, description FROM configurations ORDER BY key ASC`)
	if err != nil {
		return nil, &apperrors.StoreError{Op: "config.ListAll", Transient: true, Err: err}
	}
	defer rows.Close()

	var out []models.Configuration
	for rows.Next() {
		var cfg models.Configuration
		if err := rows.Scan(&cfg.Key, &cfg.Value, &cfg.Category, &cfg.Description); err != nil {
			return nil, &apperrors.StoreError{Op: "config.ListAll.scan", Err: err}
		}
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperrors.StoreError{Op: "config.ListAll.rows", Err: err}
	}
	return out, nil
}

// Set upserts a Configuration row, overwriting value/category/description.
func (r *ConfigRepo) Set(ctx context.Context, cfg models.Configuration) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO configurations (key, value, category, description)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			category = excluded.category,
			description = excluded.description
	`, cfg.Key, cfg.Value, cfg.Category, cfg.Description)
	if err != nil {
		return &apperrors.StoreError{Op: "config.Set", Transient: true, Err: err}
	}
	return nil
}

// SeedIfAbsent inserts cfg only if no row with that key already exists,
// leaving any operator-set value untouched. Used by config.Bootstrap.
func (r *ConfigRepo) SeedIfAbsent(ctx context.Context, cfg models.Configuration) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO configurations (key, value, category, description)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`, cfg.Key, cfg.Value, cfg.Category, cfg.Description)
	if err != nil {
		return &apperrors.StoreError{Op: "config.SeedIfAbsent", Transient: true, Err: err}
	}
	return nil
}

// Exists reports whether a Configuration row with the given key exists.
func (r *ConfigRepo) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	row := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM configurations WHERE key = ?)`, key)
	if err := row.Scan(&exists); err != nil {
		return false, &apperrors.StoreError{Op: "config.Exists", Err: err}
	}
	return exists, nil
}
