// Package ledger records sync runs and their per-row outcomes.
//
// A Store is opened from the LEDGER_DRIVER / LEDGER_DSN settings:
//
//   - none: NopStore, nothing is persisted
//   - sqlite: a local database file (modernc.org/sqlite, no cgo)
//   - postgres: a shared database reached through a pgx connection pool
//
// The ledger is bookkeeping only. Runs never read it back to decide what to
// send to the remote API.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a run ID is unknown to the store.
var ErrNotFound = errors.New("run not found")

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one invocation of the sync engine.
type Run struct {
	ID         uuid.UUID
	ObjectType string
	Mode       string
	InputPath  string
	OutputPath string
	Status     Status
	Rows       int
	Succeeded  int
	Failed     int
	// Error is the fatal error that ended a failed run.
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRun returns a running Run with a fresh ID.
func NewRun(objectType, mode, inputPath string) *Run {
	return &Run{
		ID:         uuid.New(),
		ObjectType: objectType,
		Mode:       mode,
		InputPath:  inputPath,
		Status:     StatusRunning,
		StartedAt:  time.Now().UTC(),
	}
}

// Finish stamps the end time and final status. A nil err completes the run.
func (r *Run) Finish(err error) {
	r.FinishedAt = time.Now().UTC()
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = StatusCompleted
}

// Duration is the wall time of a finished run.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Row is the outcome of one processed input row.
type Row struct {
	// Seq is the 1-based position of the row in the run.
	Seq     int
	Line    int
	Outcome string
	Object  string
	Key     string
	Message string
}

// Store persists runs. Implementations are used from a single goroutine.
type Store interface {
	BeginRun(ctx context.Context, run *Run) error
	RecordRow(ctx context.Context, runID uuid.UUID, row Row) error
	FinishRun(ctx context.Context, run *Run) error
	Close() error
}

// Drivers accepted by Open.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the Store for driver. maxConns only applies to postgres.
func Open(ctx context.Context, driver, dsn string, maxConns int) (Store, error) {
	switch driver {
	case "", DriverNone:
		return NopStore{}, nil
	case DriverSQLite:
		return OpenSQLite(dsn)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn, maxConns)
	default:
		return nil, fmt.Errorf("ledger: unknown driver %q", driver)
	}
}

// NopStore discards everything.
type NopStore struct{}

func (NopStore) BeginRun(context.Context, *Run) error { return nil }
func (NopStore) RecordRow(context.Context, uuid.UUID, Row) error { return nil }
func (NopStore) FinishRun(context.Context, *Run) error { return nil }
func (NopStore) Close() error { return nil }
