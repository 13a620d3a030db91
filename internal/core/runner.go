package core

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/crmsync/internal/crm"
	"github.com/JonMunkholm/crmsync/internal/ledger"
	"github.com/JonMunkholm/crmsync/internal/logging"
	"github.com/JonMunkholm/crmsync/internal/records"
	"github.com/JonMunkholm/crmsync/internal/report"
)

// maxReportFailures caps how many failed rows are kept for the HTML report.
const maxReportFailures = 500

// Runner executes runs against one remote API.
type Runner struct {
	remote Remote
	store  ledger.Store
	out    io.Writer
}

// NewRunner creates a Runner. store may be nil (nothing is recorded); out
// receives the per-row progress lines and the final "Wrote results" line.
func NewRunner(remote Remote, store ledger.Store, out io.Writer) *Runner {
	if store == nil {
		store = ledger.NopStore{}
	}
	if out == nil {
		out = io.Discard
	}
	return &Runner{remote: remote, store: store, out: out}
}

// Run executes one run. On a fatal error the returned RunResult still holds
// the output path and the counts reached so far.
func (r *Runner) Run(ctx context.Context, opts Options) (RunResult, error) {
	if err := opts.Validate(); err != nil {
		return RunResult{}, err
	}
	if opts.Mode == ModeFetch {
		return r.fetch(ctx, opts)
	}

	run := ledger.NewRun(opts.ObjectType, string(opts.Mode), opts.InputPath)
	ctx = logging.WithRunID(ctx, run.ID.String())
	log := logging.WithFields(ctx, "object", opts.ObjectType, "mode", opts.Mode)
	res := RunResult{RunID: run.ID}

	// The input is checked before any remote call so a bad file costs
	// nothing on the remote side.
	src, err := records.Open(opts.InputPath, records.Options{SampleSize: opts.SampleSize})
	if err != nil {
		return res, err
	}
	defer src.Close()

	opened := []any{"path", opts.InputPath, "columns", len(src.Header())}
	if s, ok := src.(records.Sniffed); ok {
		opened = append(opened, "dialect", s.Dialect().String())
	}
	log.Debug("input opened", opened...)

	sess, err := r.remote.Authenticate(ctx, opts.Credentials)
	if err != nil {
		return res, err
	}

	schema, err := DescribeSchema(ctx, r.remote, sess, opts.ObjectType)
	if err != nil {
		return res, err
	}
	unknown, err := CheckHeader(opts.InputPath, src.Header(), opts, schema)
	if err != nil {
		return res, err
	}
	if len(unknown) > 0 {
		log.Warn("input columns are not fields of the object type", "columns", unknown)
	}

	w, err := records.CreateResultWriter(opts.InputPath)
	if err != nil {
		return res, err
	}
	defer w.Close()
	run.OutputPath = w.Path()
	res.OutputPath = w.Path()

	if err := r.store.BeginRun(ctx, run); err != nil {
		return res, fmt.Errorf("ledger: %w", err)
	}

	proc := NewRowProcessor(r.remote, sess, opts, src.Header(), r.out)
	failures, err := r.processRows(ctx, proc, src, w, run)
	if err == nil {
		err = w.Close()
	}
	if err == nil {
		fmt.Fprintf(r.out, "Wrote results to %s\n", w.Path())
	}

	run.Finish(err)
	// The ledger entry is closed even when ctx was cancelled.
	if ferr := r.store.FinishRun(context.WithoutCancel(ctx), run); ferr != nil {
		log.Warn("ledger finish failed", "error", ferr)
	}

	res.Rows, res.Succeeded, res.Failed = run.Rows, run.Succeeded, run.Failed
	res.Duration = run.Duration()

	if opts.HTMLReport {
		res.ReportPath = r.writeReport(ctx, run, failures)
	}

	if err != nil {
		return res, err
	}
	done := []any{
		"rows", run.Rows,
		"succeeded", run.Succeeded,
		"failed", run.Failed,
		"output", run.OutputPath,
		"duration_ms", res.Duration.Milliseconds(),
	}
	if s, ok := src.(records.Sniffed); ok {
		done = append(done, "input_bytes", s.BytesRead())
	}
	log.Info("run complete", done...)
	return res, nil
}

// processRows runs every record through proc in input order, writing each
// result row before the next record is read.
func (r *Runner) processRows(ctx context.Context, proc *RowProcessor, src records.Source, w *records.ResultWriter, run *ledger.Run) ([]ledger.Row, error) {
	log := logging.FromContext(ctx)

	if err := w.WriteHeader(proc.ResultHeader()); err != nil {
		return nil, err
	}

	var failures []ledger.Row
	for {
		if err := ctx.Err(); err != nil {
			return failures, fmt.Errorf("stopped after %d rows: %w", run.Rows, err)
		}

		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			return failures, nil
		}
		if err != nil {
			return failures, err
		}

		outcome, err := proc.Process(ctx, rec)
		if err != nil {
			return failures, err
		}
		if err := w.Write(outcome.Row); err != nil {
			return failures, err
		}

		run.Rows++
		entry := ledgerRow(run.Rows, rec.Line, outcome.Result)
		if outcome.Err != nil {
			run.Failed++
			log.Debug("row rejected", "line", rec.Line, "error", outcome.Err)
			if len(failures) < maxReportFailures {
				failures = append(failures, entry)
			}
		} else {
			run.Succeeded++
		}

		if err := r.store.RecordRow(ctx, run.ID, entry); err != nil {
			log.Warn("ledger row not recorded", "line", rec.Line, "error", err)
		}
	}
}

func ledgerRow(seq, line int, res crm.OperationResult) ledger.Row {
	msgs := res.Messages()
	msg := ""
	if len(msgs) > 0 {
		msg = msgs[0]
	}
	return ledger.Row{
		Seq:     seq,
		Line:    line,
		Outcome: string(res.Outcome),
		Object:  res.Object,
		Key:     res.Key,
		Message: msg,
	}
}

// writeReport renders the HTML summary next to the output file. A report
// failure is logged; it does not change the outcome of the run.
func (r *Runner) writeReport(ctx context.Context, run *ledger.Run, failures []ledger.Row) string {
	path := report.PathFor(run.OutputPath)
	data := report.Data{Run: *run, Failures: failures}
	if err := report.WriteFile(context.WithoutCancel(ctx), path, report.Summary(data)); err != nil {
		logging.FromContext(ctx).Warn("report not written", "path", path, "error", err)
		return ""
	}
	return path
}
