// Package store provides the SQLite-backed persistence layer shared by the
// configuration service, data-source service, and upload processor. It owns
// connection setup, schema migrations, and a typed repository per entity.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/pinesagetechnology/filemonitor/internal/apperrors"
)

// Store wraps a *sql.DB opened against a single SQLite file and exposes one
// repository per persistent entity.
type Store struct {
	db *sql.DB

	Config     *ConfigRepo
	DataSource *DataSourceRepo
	UploadJob  *UploadJobRepo
}

// Open opens (creating if absent) the SQLite database at path, applies
// pragmas favoring concurrent readers/writers, runs pending migrations, and
// returns a ready Store. A migration failure is returned wrapped in a
// StoreError and is fatal to the caller.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &apperrors.StoreError{Op: "open", Err: err}
	}

	// A single SQLite connection avoids "database is locked" errors under
	// concurrent writers; WAL mode lets readers proceed without blocking.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, &apperrors.StoreError{Op: "pragma", Err: err}
		}
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, &apperrors.StoreError{Op: "migrate", Err: err}
	}

	return &Store{
		db:         db,
		Config:     &ConfigRepo{db: db},
		DataSource: &DataSourceRepo{db: db},
		UploadJob:  &UploadJobRepo{db: db},
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
