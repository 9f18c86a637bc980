// Package storage persists run history to a SQLite database under the
// project's .pyfix directory, so applied fixes can be listed and undone
// later.
package storage

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"pyfix/internal/errors"
	"pyfix/internal/paths"
)

// Store is the run-history database.
type Store struct {
	conn   *sql.DB
	logger *slog.Logger
	dbPath string
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	root        TEXT NOT NULL,
	mode        TEXT NOT NULL,
	passes      INTEGER NOT NULL,
	diagnostics INTEGER NOT NULL,
	applied     INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	rejected    INTEGER NOT NULL,
	undone      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS patches (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	file_path TEXT NOT NULL,
	line      INTEGER NOT NULL,
	start_col INTEGER NOT NULL,
	end_col   INTEGER NOT NULL,
	old_text  TEXT NOT NULL,
	new_text  TEXT NOT NULL,
	outcome   TEXT NOT NULL,
	reason    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_patches_run ON patches(run_id);
`

// Open opens or creates the database at .pyfix/pyfix.db under the root.
// Failures carry the STORAGE_ERROR code; callers treat history as optional
// and degrade to an unrecorded run.
func Open(root string, logger *slog.Logger) (*Store, error) {
	if _, err := paths.EnsureStateDir(root); err != nil {
		return nil, errors.New(errors.StorageError, "creating state directory", err)
	}
	dbPath := paths.DBPath(root)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.New(errors.StorageError, "opening database", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, errors.New(errors.StorageError, "setting pragma", err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, errors.New(errors.StorageError, "initializing schema", err)
	}

	logger.Debug("run-history database opened", slog.String("path", dbPath))
	return &Store{conn: conn, logger: logger, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// WithTx executes fn within a transaction, rolling back on error.
func (s *Store) WithTx(fn func(*sql.Tx) error) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("transaction rollback failed",
				slog.String("error", err.Error()),
				slog.String("rollbackError", rbErr.Error()))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
