package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the ledger in a local database file.
type SQLiteStore struct {
	db *sql.DB
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS sync_runs (
		id TEXT PRIMARY KEY,
		object_type TEXT NOT NULL,
		mode TEXT NOT NULL,
		input_path TEXT NOT NULL,
		output_path TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		rows_total INTEGER NOT NULL DEFAULT 0,
		rows_succeeded INTEGER NOT NULL DEFAULT 0,
		rows_failed INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS sync_rows (
		run_id TEXT NOT NULL REFERENCES sync_runs(id),
		seq INTEGER NOT NULL,
		line INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		object TEXT NOT NULL DEFAULT '',
		object_key TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs(started_at)`,
}

// OpenSQLite opens (or creates) the database file at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("ledger: sqlite needs a file path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; more connections only produce SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, m := range sqliteMigrations {
		if _, err := db.Exec(m); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate sqlite ledger: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) BeginRun(ctx context.Context, run *Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, object_type, mode, input_path, output_path, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.ObjectType, run.Mode, run.InputPath, run.OutputPath,
		string(run.Status), formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordRow(ctx context.Context, runID uuid.UUID, row Row) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_rows (run_id, seq, line, outcome, object, object_key, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID.String(), row.Seq, row.Line, row.Outcome, row.Object, row.Key, row.Message)
	if err != nil {
		return fmt.Errorf("insert row %d: %w", row.Seq, err)
	}
	return nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *Run) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_runs
		SET output_path = ?, status = ?, rows_total = ?, rows_succeeded = ?,
		    rows_failed = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		run.OutputPath, string(run.Status), run.Rows, run.Succeeded, run.Failed,
		run.Error, formatTime(run.FinishedAt), run.ID.String())
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRun loads a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var (
		run               Run
		rawID, status     string
		started, finished string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, object_type, mode, input_path, output_path, status,
		       rows_total, rows_succeeded, rows_failed, error, started_at, finished_at
		FROM sync_runs WHERE id = ?`, id.String()).Scan(
		&rawID, &run.ObjectType, &run.Mode, &run.InputPath, &run.OutputPath, &status,
		&run.Rows, &run.Succeeded, &run.Failed, &run.Error, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select run: %w", err)
	}

	if run.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("run id %q: %w", rawID, err)
	}
	run.Status = Status(status)
	if run.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRows returns the recorded rows of a run in processing order.
func (s *SQLiteStore) ListRows(ctx context.Context, id uuid.UUID) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, line, outcome, object, object_key, message
		FROM sync_rows WHERE run_id = ? ORDER BY seq`, id.String())
	if err != nil {
		return nil, fmt.Errorf("select rows: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Seq, &r.Line, &r.Outcome, &r.Object, &r.Key, &r.Message); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
