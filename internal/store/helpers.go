package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pinesagetechnology/filemonitor/internal/apperrors"
)

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// sqliteTimestamp is the layout SQLite's datetime('now') produces and the
// one every repo writes back with on update.
const sqliteTimestamp = "2006-01-02 15:04:05"

func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse(sqliteTimestamp, s); err == nil {
		return t
	}
	return time.Time{}
}

func checkRowAffected(res sql.Result, op, target string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return &apperrors.StoreError{Op: op, Err: err}
	}
	if n == 0 {
		return &apperrors.StoreError{Op: op, Err: fmt.Errorf("no row found for %q", target)}
	}
	return nil
}
