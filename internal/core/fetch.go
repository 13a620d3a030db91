package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/crmsync/internal/logging"
	"github.com/JonMunkholm/crmsync/internal/records"
)

// fetch writes one remote object to opts.InputPath as a header row and a
// value row, in the field order of the response. There is no describe,
// no input and no ledger entry.
func (r *Runner) fetch(ctx context.Context, opts Options) (RunResult, error) {
	start := time.Now()

	sess, err := r.remote.Authenticate(ctx, opts.Credentials)
	if err != nil {
		return RunResult{}, err
	}

	obj, err := r.remote.GetObject(ctx, sess, opts.ObjectType, opts.Key)
	if err != nil {
		return RunResult{}, fmt.Errorf("fetch %s %s: %w", opts.ObjectType, opts.Key, err)
	}

	w, err := records.CreateResultFile(opts.InputPath)
	if err != nil {
		return RunResult{}, err
	}
	defer w.Close()

	res := RunResult{OutputPath: w.Path()}
	if err := w.WriteHeader(obj.Fields); err != nil {
		return res, err
	}
	if err := w.Write(obj.Values); err != nil {
		return res, err
	}
	if err := w.Close(); err != nil {
		return res, err
	}

	res.Rows = w.Rows()
	res.Succeeded = res.Rows
	res.Duration = time.Since(start)
	fmt.Fprintf(r.out, "Wrote results to %s\n", w.Path())
	logging.FromContext(ctx).Info("object fetched",
		"object", opts.ObjectType,
		"key", opts.Key,
		"fields", len(obj.Fields),
		"output", w.Path(),
	)
	return res, nil
}
