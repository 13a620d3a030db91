package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the ledger in a shared PostgreSQL database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS sync_runs (
		id UUID PRIMARY KEY,
		object_type TEXT NOT NULL,
		mode TEXT NOT NULL,
		input_path TEXT NOT NULL,
		output_path TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		rows_total INTEGER NOT NULL DEFAULT 0,
		rows_succeeded INTEGER NOT NULL DEFAULT 0,
		rows_failed INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS sync_rows (
		run_id UUID NOT NULL REFERENCES sync_runs(id) ON DELETE CASCADE,
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

// OpenPostgres connects a pool to dsn and creates the ledger tables.
func OpenPostgres(ctx context.Context, dsn string, maxConns int) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("ledger: postgres needs a connection string")
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse ledger DSN: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect ledger: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping ledger: %w", err)
	}

	for _, m := range postgresMigrations {
		if _, err := pool.Exec(ctx, m); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres ledger: %w", err)
		}
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) BeginRun(ctx context.Context, run *Run) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_runs (id, object_type, mode, input_path, output_path, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID.String(), run.ObjectType, run.Mode, run.InputPath, run.OutputPath,
		string(run.Status), run.StartedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordRow(ctx context.Context, runID uuid.UUID, row Row) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_rows (run_id, seq, line, outcome, object, object_key, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		runID.String(), row.Seq, row.Line, row.Outcome, row.Object, row.Key, row.Message)
	if err != nil {
		return fmt.Errorf("insert row %d: %w", row.Seq, err)
	}
	return nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *Run) error {
	var finished *time.Time
	if !run.FinishedAt.IsZero() {
		finished = &run.FinishedAt
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE sync_runs
		SET output_path = $1, status = $2, rows_total = $3, rows_succeeded = $4,
		    rows_failed = $5, error = $6, finished_at = $7
		WHERE id = $8`,
		run.OutputPath, string(run.Status), run.Rows, run.Succeeded, run.Failed,
		run.Error, finished, run.ID.String())
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRun loads a run by ID.
func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var (
		run      Run
		rawID    string
		status   string
		finished *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, object_type, mode, input_path, output_path, status,
		       rows_total, rows_succeeded, rows_failed, error, started_at, finished_at
		FROM sync_runs WHERE id = $1`, id.String()).Scan(
		&rawID, &run.ObjectType, &run.Mode, &run.InputPath, &run.OutputPath, &status,
		&run.Rows, &run.Succeeded, &run.Failed, &run.Error, &run.StartedAt, &finished)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select run: %w", err)
	}

	if run.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("run id %q: %w", rawID, err)
	}
	run.Status = Status(status)
	run.StartedAt = run.StartedAt.UTC()
	if finished != nil {
		run.FinishedAt = finished.UTC()
	}
	return &run, nil
}

// ListRows returns the recorded rows of a run in processing order.
func (s *PostgresStore) ListRows(ctx context.Context, id uuid.UUID) ([]Row, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq, line, outcome, object, object_key, message
		FROM sync_rows WHERE run_id = $1 ORDER BY seq`, id.String())
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

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
