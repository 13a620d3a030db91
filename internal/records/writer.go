package records

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
)

// ResultWriter writes result rows to a new CSV file created beside the
// input. Every row is flushed immediately; if the run aborts, the rows
// written so far remain in the file.
type ResultWriter struct {
	path   string
	f      *os.File
	w      *csv.Writer
	rows   int
	closed bool
}

// OutputPathPattern returns the directory and os.CreateTemp pattern used for
// inputPath: "<root>-*<ext>", where workbook inputs get a .csv extension.
func OutputPathPattern(inputPath string) (dir, pattern string) {
	dir = filepath.Dir(inputPath)
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	root := strings.TrimSuffix(base, ext)
	if strings.EqualFold(ext, ".xlsx") {
		ext = ".csv"
	}
	return dir, root + "-*" + ext
}

// CreateResultWriter creates a uniquely named output file next to inputPath.
// The input itself is never opened for writing.
func CreateResultWriter(inputPath string) (*ResultWriter, error) {
	dir, pattern := OutputPathPattern(inputPath)
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, &OutputError{Path: filepath.Join(dir, pattern), Op: "create", Err: err}
	}

	return newResultWriter(f), nil
}

// CreateResultFile creates (or truncates) exactly path. Fetch mode uses it
// because the named file is the requested destination, not an input.
func CreateResultFile(path string) (*ResultWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &OutputError{Path: path, Op: "create", Err: err}
	}
	return newResultWriter(f), nil
}

func newResultWriter(f *os.File) *ResultWriter {
	w := csv.NewWriter(f)
	w.UseCRLF = true
	return &ResultWriter{path: f.Name(), f: f, w: w}
}

// Path returns the output file path.
func (w *ResultWriter) Path() string { return w.path }

// Rows returns how many data rows have been written.
func (w *ResultWriter) Rows() int { return w.rows }

// WriteHeader writes the column names.
func (w *ResultWriter) WriteHeader(columns []string) error {
	return w.write("write header", columns)
}

// Write writes one result row.
func (w *ResultWriter) Write(row []string) error {
	if err := w.write("write row", row); err != nil {
		return err
	}
	w.rows++
	return nil
}

func (w *ResultWriter) write(op string, row []string) error {
	if err := w.w.Write(row); err != nil {
		return &OutputError{Path: w.path, Op: op, Err: err}
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return &OutputError{Path: w.path, Op: op, Err: err}
	}
	return nil
}

// Close flushes and closes the file. Calling it again is a no-op.
func (w *ResultWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		w.f.Close()
		return &OutputError{Path: w.path, Op: "flush", Err: err}
	}
	if err := w.f.Close(); err != nil {
		return &OutputError{Path: w.path, Op: "close", Err: err}
	}
	return nil
}
