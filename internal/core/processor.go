package core

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/JonMunkholm/crmsync/internal/crm"
	"github.com/JonMunkholm/crmsync/internal/records"
)

// deleteColumns is the result header in delete mode.
var deleteColumns = []string{"result", "object", "key", "message"}

// RowOutcome is what processing one record produced.
type RowOutcome struct {
	// Row is the result row, aligned with RowProcessor.ResultHeader.
	Row    []string
	Result crm.OperationResult
	// Err is a *RemoteOperationError when the remote side rejected the row.
	Err error
}

// RowProcessor turns records into remote calls and result rows.
type RowProcessor struct {
	remote     Remote
	sess       *crm.Session
	mode       Mode
	objectType string
	keyField   string
	policy     KeyPolicy
	header     []string
	// keyIndex is the position of keyField in the result row.
	keyIndex  int
	appendKey bool
	out       io.Writer
}

// NewRowProcessor binds a processor to one run. Human-readable progress
// lines go to out.
func NewRowProcessor(remote Remote, sess *crm.Session, opts Options, header []string, out io.Writer) *RowProcessor {
	p := &RowProcessor{
		remote:     remote,
		sess:       sess,
		mode:       opts.Mode,
		objectType: opts.ObjectType,
		keyField:   opts.KeyField(),
		policy:     opts.KeyPolicy,
		header:     header,
		out:        out,
	}
	if p.policy == "" {
		p.policy = KeyPolicyPassthrough
	}
	p.keyIndex = slices.Index(header, p.keyField)
	if p.keyIndex < 0 {
		p.appendKey = true
		p.keyIndex = len(header)
	}
	return p
}

// ResultHeader returns the result file columns: the four fixed columns for
// delete, the input header (plus <type>_KEY when missing) for save.
func (p *RowProcessor) ResultHeader() []string {
	if p.mode == ModeDelete {
		return slices.Clone(deleteColumns)
	}
	cols := slices.Clone(p.header)
	if p.appendKey {
		cols = append(cols, p.keyField)
	}
	return cols
}

// Process handles one record. A returned error is fatal for the run; a
// row-local failure is reported in RowOutcome.Err instead.
func (p *RowProcessor) Process(ctx context.Context, rec records.Record) (RowOutcome, error) {
	if p.mode == ModeDelete {
		return p.delete(ctx, rec)
	}
	return p.save(ctx, rec)
}

func (p *RowProcessor) save(ctx context.Context, rec records.Record) (RowOutcome, error) {
	res, err := p.remote.Save(ctx, p.sess, p.objectType, p.saveArgs(rec))
	if err != nil {
		return RowOutcome{}, fmt.Errorf("line %d: %w", rec.Line, err)
	}

	out := RowOutcome{Row: p.saveRow(rec, res), Result: res}
	if res.Succeeded() {
		fmt.Fprintf(p.out, "Saved %s object %s\n", p.objectType, res.Key)
		return out, nil
	}
	for _, m := range res.Messages() {
		fmt.Fprintln(p.out, m)
	}
	out.Err = &RemoteOperationError{Line: rec.Line, Op: "save", Result: res}
	return out, nil
}

// saveArgs lists the fields the row carries in header order. A column named
// object is dropped because the run's object type always wins.
func (p *RowProcessor) saveArgs(rec records.Record) crm.Args {
	fields := rec.Fields()
	args := make(crm.Args, 0, len(fields))
	for _, f := range fields {
		switch {
		case f.Name == "object":
			continue
		case f.Name == p.keyField && p.policy == KeyPolicyTranslate:
			if f.Value != "" {
				args.Add(wireKey, f.Value)
			}
			continue
		}
		args.Add(f.Name, f.Value)
	}
	return args
}

func (p *RowProcessor) saveRow(rec records.Record, res crm.OperationResult) []string {
	row := slices.Clone(rec.Values())
	if p.appendKey {
		row = append(row, "")
	}
	if p.policy == KeyPolicyTranslate && res.Succeeded() && row[p.keyIndex] == "" {
		row[p.keyIndex] = res.Key
	}
	return row
}

func (p *RowProcessor) delete(ctx context.Context, rec records.Record) (RowOutcome, error) {
	key, _ := rec.Get(p.keyField)

	res, err := p.remote.Delete(ctx, p.sess, p.objectType, key)
	if err != nil {
		return RowOutcome{}, fmt.Errorf("line %d: %w", rec.Line, err)
	}

	fmt.Fprintln(p.out, res.Message)

	out := RowOutcome{
		Row:    []string{string(res.Outcome), res.Object, res.Key, res.Message},
		Result: res,
	}
	if !res.Succeeded() {
		out.Err = &RemoteOperationError{Line: rec.Line, Op: "delete", Result: res}
	}
	return out, nil
}
