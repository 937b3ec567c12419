// Package store persists audit runs and reports in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yaserfarook1/SentinalLens/internal/models"
)

// ErrNotFound is returned when a run or report does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps a SQLite database holding run history.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS audit_runs (
		id            TEXT PRIMARY KEY,
		workspace_id  TEXT NOT NULL,
		lookback_days INTEGER NOT NULL,
		status        TEXT NOT NULL,
		step_index    INTEGER NOT NULL DEFAULT 0,
		started_at    DATETIME,
		completed_at  DATETIME,
		error         TEXT DEFAULT '',
		steps_json    TEXT DEFAULT '[]',
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_runs_workspace ON audit_runs(workspace_id);
	CREATE INDEX IF NOT EXISTS idx_audit_runs_started ON audit_runs(started_at);

	CREATE TABLE IF NOT EXISTS audit_reports (
		run_id      TEXT PRIMARY KEY,
		report_json TEXT NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun upserts the run's current state, including its step records.
func (s *Store) SaveRun(ctx context.Context, run *models.AuditRun) error {
	steps, err := json.Marshal(run.Steps)
	if err != nil {
		return fmt.Errorf("encoding steps: %w", err)
	}

	var startedAt, completedAt any
	if !run.StartedAt.IsZero() {
		startedAt = run.StartedAt
	}
	if run.CompletedAt != nil {
		completedAt = *run.CompletedAt
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_runs (id, workspace_id, lookback_days, status, step_index, started_at, completed_at, error, steps_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			step_index = excluded.step_index,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			error = excluded.error,
			steps_json = excluded.steps_json`,
		run.ID, run.WorkspaceID, run.LookbackDays, string(run.Status), run.StepIndex,
		startedAt, completedAt, run.Error, string(steps),
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	return nil
}

// SaveReport stores the finished report for a run.
func (s *Store) SaveReport(ctx context.Context, runID string, rep *models.Report) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_reports (run_id, report_json) VALUES (?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET report_json = excluded.report_json`,
		runID, string(data),
	)
	if err != nil {
		return fmt.Errorf("saving report for run %s: %w", runID, err)
	}
	return nil
}

// GetRun loads one run by ID. The report, if persisted, is attached.
func (s *Store) GetRun(ctx context.Context, id string) (*models.AuditRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, lookback_days, status, step_index, started_at, completed_at, error, steps_json
		 FROM audit_runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	rep, err := s.GetReport(ctx, id)
	if err == nil {
		run.Report = rep
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return run, nil
}

// GetReport loads the persisted report for a run.
func (s *Store) GetReport(ctx context.Context, runID string) (*models.Report, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT report_json FROM audit_reports WHERE run_id = ?`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report for run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading report for run %s: %w", runID, err)
	}

	var rep models.Report
	if err := json.Unmarshal([]byte(data), &rep); err != nil {
		return nil, fmt.Errorf("decoding report for run %s: %w", runID, err)
	}
	return &rep, nil
}

// ListRuns returns the most recent runs for a workspace, newest first. An
// empty workspaceID lists runs across all workspaces.
func (s *Store) ListRuns(ctx context.Context, workspaceID string, limit int) ([]*models.AuditRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, workspace_id, lookback_days, status, step_index, started_at, completed_at, error, steps_json
		 FROM audit_runs`
	args := []any{}
	if workspaceID != "" {
		query += ` WHERE workspace_id = ?`
		args = append(args, workspaceID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.AuditRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.AuditRun, error) {
	var (
		run         models.AuditRun
		status      string
		startedAt   sql.NullTime
		completedAt sql.NullTime
		stepsJSON   string
	)
	err := row.Scan(&run.ID, &run.WorkspaceID, &run.LookbackDays, &status, &run.StepIndex,
		&startedAt, &completedAt, &run.Error, &stepsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	run.Status = models.RunStatus(status)
	if startedAt.Valid {
		run.StartedAt = startedAt.Time.UTC()
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		run.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(stepsJSON), &run.Steps); err != nil {
		return nil, fmt.Errorf("decoding steps for run %s: %w", run.ID, err)
	}
	return &run, nil
}

// PruneBefore deletes runs (and their reports) started before cutoff.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_reports WHERE run_id IN (SELECT id FROM audit_runs WHERE started_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("pruning reports: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	return res.RowsAffected()
}
