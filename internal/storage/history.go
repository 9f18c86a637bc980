package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pyfix/internal/patch"
)

// Run summarizes one fix session.
type Run struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Root        string    `json:"root"`
	Mode        string    `json:"mode"` // "dry-run" or "apply"
	Passes      int       `json:"passes"`
	Diagnostics int       `json:"diagnostics"`
	Applied     int       `json:"applied"`
	Skipped     int       `json:"skipped"`
	Rejected    int       `json:"rejected"`
	Undone      bool      `json:"undone"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RecordRun persists a run and its patch decisions in one transaction.
func (s *Store) RecordRun(ctx context.Context, run Run, entries []patch.Entry) error {
	return s.WithTx(func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, started_at, finished_at, root, mode, passes,
				diagnostics, applied, skipped, rejected)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			run.StartedAt.UTC().Format(time.RFC3339Nano),
			run.FinishedAt.UTC().Format(time.RFC3339Nano),
			run.Root, run.Mode, run.Passes,
			run.Diagnostics, run.Applied, run.Skipped, run.Rejected)
		if err != nil {
			return fmt.Errorf("inserting run: %w", err)
		}

		for _, e := range entries {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO patches (run_id, file_path, line, start_col, end_col,
					old_text, new_text, outcome, reason)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				run.ID, e.Patch.FilePath, e.Patch.Line, e.Patch.StartCol,
				e.Patch.EndCol, e.Patch.OldText, e.Patch.NewText,
				string(e.Outcome), e.Reason)
			if err != nil {
				return fmt.Errorf("inserting patch record: %w", err)
			}
		}
		return nil
	})
}

// ListRuns returns runs newest first, up to limit (0 means all).
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, started_at, finished_at, root, mode, passes,
			diagnostics, applied, skipped, rejected, undone
		FROM runs ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LastRun returns the most recent run that has not been undone, or nil when
// none exists.
func (s *Store) LastRun(ctx context.Context) (*Run, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, started_at, finished_at, root, mode, passes,
			diagnostics, applied, skipped, rejected, undone
		FROM runs WHERE undone = 0 ORDER BY started_at DESC LIMIT 1`)
	if err != nil {
		return nil, fmt.Errorf("querying last run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	run, err := scanRun(rows)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// AppliedPatches returns the applied patches of a run in reverse apply
// order, ready for undo.
func (s *Store) AppliedPatches(ctx context.Context, runID string) ([]patch.Patch, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT file_path, line, start_col, end_col, old_text, new_text
		FROM patches WHERE run_id = ? AND outcome = ? ORDER BY id DESC`,
		runID, string(patch.OutcomeApplied))
	if err != nil {
		return nil, fmt.Errorf("querying patches: %w", err)
	}
	defer rows.Close()

	var patches []patch.Patch
	for rows.Next() {
		var p patch.Patch
		if err := rows.Scan(&p.FilePath, &p.Line, &p.StartCol, &p.EndCol, &p.OldText, &p.NewText); err != nil {
			return nil, fmt.Errorf("scanning patch: %w", err)
		}
		patches = append(patches, p)
	}
	return patches, rows.Err()
}

// MarkUndone flags a run so it is skipped by future undo lookups.
func (s *Store) MarkUndone(ctx context.Context, runID string) error {
	res, err := s.conn.ExecContext(ctx, "UPDATE runs SET undone = 1 WHERE id = ?", runID)
	if err != nil {
		return fmt.Errorf("marking run undone: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var run Run
	var started, finished string
	var undone int
	err := rows.Scan(&run.ID, &started, &finished, &run.Root, &run.Mode,
		&run.Passes, &run.Diagnostics, &run.Applied, &run.Skipped,
		&run.Rejected, &undone)
	if err != nil {
		return Run{}, fmt.Errorf("scanning run: %w", err)
	}
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Run{}, fmt.Errorf("parsing started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return Run{}, fmt.Errorf("parsing finished_at: %w", err)
	}
	run.Undone = undone != 0
	return run, nil
}
