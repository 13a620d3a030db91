// Package records reads input rows and writes result rows.
//
// Input is either a delimited text file, whose dialect is sniffed from a
// fixed-size prefix, or an .xlsx workbook. Both are exposed through Source:
// a lazy, forward-only sequence of Records behind a validated header.
// Output is a CSV file created next to the input.
package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DefaultSampleSize is how many bytes of a CSV file are used to sniff it.
const DefaultSampleSize = 1024

// Record is one input row.
type Record struct {
	// Line is the 1-based source line (CSV) or row number (xlsx).
	Line int

	header []string
	values []string
	// present is how many leading values the row actually carried.
	present int
}

// Values returns the row values in header order. Missing trailing values
// are "".
func (r Record) Values() []string { return r.values }

// Header returns the column names the record is aligned with.
func (r Record) Header() []string { return r.header }

// Get returns the value for column name and whether the row carried it.
func (r Record) Get(name string) (string, bool) {
	for i, h := range r.header {
		if h == name {
			return r.values[i], i < r.present
		}
	}
	return "", false
}

// Field is a column name with its value.
type Field struct {
	Name  string
	Value string
}

// Fields returns the name/value pairs the row actually carried, in header
// order. Columns missing from a short row are left out.
func (r Record) Fields() []Field {
	out := make([]Field, 0, r.present)
	for i := 0; i < r.present; i++ {
		out = append(out, Field{Name: r.header[i], Value: r.values[i]})
	}
	return out
}

// NewRecord builds a record aligned to header; values may be shorter.
func NewRecord(line int, header, values []string) Record {
	padded := make([]string, len(header))
	copy(padded, values)
	return Record{Line: line, header: header, values: padded, present: min(len(values), len(header))}
}

// Source is a forward-only stream of records. Next returns io.EOF after the
// last record; it cannot be restarted.
type Source interface {
	Header() []string
	Next() (Record, error)
	Close() error
}

// Sniffed is implemented by delimited sources, whose dialect was detected
// from the file rather than fixed by the format.
type Sniffed interface {
	Dialect() Dialect
	BytesRead() int64
}

var _ Sniffed = (*csvSource)(nil)

// Options tune how input is opened.
type Options struct {
	// SampleSize is the sniffing prefix length for delimited files.
	SampleSize int
}

// Open opens path as a delimited file or, for .xlsx, as a workbook. The
// header is validated before Open returns, so a file without a header row is
// rejected before anything else happens.
func Open(path string, opts Options) (Source, error) {
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultSampleSize
	}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return openWorkbook(path)
	}
	return openDelimited(path, opts.SampleSize)
}

// csvSource streams a delimited file.
type csvSource struct {
	path    string
	f       *os.File
	r       *csv.Reader
	counter *countingReader
	header  []string
	dialect Dialect
}

func openDelimited(path string, sampleSize int) (*csvSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &InputFormatError{Path: path, Kind: KindUnreadable, Msg: "cannot open", Err: err}
	}

	s, err := sniffDelimited(path, f, sampleSize)
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func sniffDelimited(path string, f *os.File, sampleSize int) (*csvSource, error) {
	// 1. Read the sample
	br, err := skipBOM(f)
	if err != nil {
		return nil, &InputFormatError{Path: path, Kind: KindUnreadable, Msg: "read", Err: err}
	}
	buf := make([]byte, sampleSize)
	n, err := io.ReadFull(br, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, &InputFormatError{Path: path, Kind: KindUnreadable, Msg: "read", Err: err}
	}
	if n == 0 {
		return nil, &InputFormatError{Path: path, Kind: KindHeader, Msg: "file is empty"}
	}
	sample := trimPartialRune(buf[:n])

	// 2. Sniff the dialect and check for a header
	d, err := Sniff(sample)
	if err != nil {
		return nil, &InputFormatError{Path: path, Kind: KindDialect, Msg: "cannot sniff dialect", Err: err}
	}
	if d.QuoteChar != '"' {
		return nil, &InputFormatError{Path: path, Kind: KindDialect,
			Msg: fmt.Sprintf("unsupported quote character %q", d.QuoteChar)}
	}
	if d.Delimiter == utf8.RuneError || d.Delimiter == '"' || d.Delimiter == '\r' || d.Delimiter == '\n' {
		return nil, &InputFormatError{Path: path, Kind: KindDialect,
			Msg: fmt.Sprintf("unsupported delimiter %q", d.Delimiter)}
	}
	if !HasHeader(sampleRows(normalizeNewlines(sample), d)) {
		return nil, &InputFormatError{Path: path, Kind: KindHeader, Msg: "no header row detected"}
	}

	// 3. Rewind and read for real
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, &InputFormatError{Path: path, Kind: KindUnreadable, Msg: "rewind", Err: err}
	}
	br, err = skipBOM(f)
	if err != nil {
		return nil, &InputFormatError{Path: path, Kind: KindUnreadable, Msg: "read", Err: err}
	}
	counter := &countingReader{r: br}
	r := newCSVReader(counter, d)

	header, err := r.Read()
	if err != nil {
		return nil, &InputFormatError{Path: path, Kind: KindHeader, Line: 1, Msg: "read header", Err: err}
	}
	header, err = cleanHeader(path, header)
	if err != nil {
		return nil, err
	}

	return &csvSource{path: path, f: f, r: r, counter: counter, header: header, dialect: d}, nil
}

func (s *csvSource) Header() []string { return s.header }

// Dialect returns the sniffed dialect.
func (s *csvSource) Dialect() Dialect { return s.dialect }

// BytesRead returns how much of the file has been consumed.
func (s *csvSource) BytesRead() int64 { return s.counter.n }

func (s *csvSource) Next() (Record, error) {
	values, err := s.r.Read()
	if err == io.EOF {
		return Record{}, io.EOF
	}
	if err != nil {
		var pe *csv.ParseError
		line := 0
		if errors.As(err, &pe) {
			line = pe.StartLine
		}
		return Record{}, &InputFormatError{Path: s.path, Kind: KindRow, Line: line, Msg: "malformed row", Err: err}
	}

	line, _ := s.r.FieldPos(0)
	return alignRow(s.path, line, s.header, values)
}

func (s *csvSource) Close() error { return s.f.Close() }

// alignRow checks a raw row against the header.
func alignRow(path string, line int, header, values []string) (Record, error) {
	if len(values) > len(header) {
		return Record{}, &InputFormatError{Path: path, Kind: KindRow, Line: line,
			Msg: fmt.Sprintf("row has %d fields, header has %d", len(values), len(header))}
	}
	for _, v := range values {
		if !utf8.ValidString(v) {
			return Record{}, &InputFormatError{Path: path, Kind: KindRow, Line: line, Msg: "invalid UTF-8"}
		}
	}
	return NewRecord(line, header, values), nil
}

// cleanHeader trims column names and rejects empty or repeated ones.
func cleanHeader(path string, header []string) ([]string, error) {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, &InputFormatError{Path: path, Kind: KindHeader, Line: 1,
				Msg: fmt.Sprintf("column %d has no name", i+1)}
		}
		if seen[h] {
			return nil, &InputFormatError{Path: path, Kind: KindHeader, Line: 1,
				Msg: fmt.Sprintf("duplicate column %q", h)}
		}
		if !utf8.ValidString(h) {
			return nil, &InputFormatError{Path: path, Kind: KindHeader, Line: 1, Msg: "invalid UTF-8"}
		}
		seen[h] = true
		out[i] = h
	}
	return out, nil
}

// trimPartialRune drops an incomplete UTF-8 sequence cut off by the sample
// boundary.
func trimPartialRune(b []byte) string {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		if utf8.Valid(b) {
			break
		}
		r, size := utf8.DecodeLastRune(b)
		if r != utf8.RuneError || size != 1 {
			break
		}
		b = b[:len(b)-1]
	}
	return string(b)
}
