package records

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// xlsxSource streams the first sheet of a workbook. There is no dialect to
// sniff; the header check runs on the rows buffered while opening.
type xlsxSource struct {
	path   string
	f      *excelize.File
	rows   *excelize.Rows
	header []string
	line   int
	// pending holds rows read ahead for the header check.
	pending []pendingRow
}

type pendingRow struct {
	line   int
	values []string
}

func openWorkbook(path string) (*xlsxSource, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &InputFormatError{Path: path, Kind: KindUnreadable, Msg: "cannot open workbook", Err: err}
	}

	s := &xlsxSource{path: path, f: f}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *xlsxSource) init() error {
	sheets := s.f.GetSheetList()
	if len(sheets) == 0 {
		return &InputFormatError{Path: s.path, Kind: KindHeader, Msg: "workbook has no sheets"}
	}

	rows, err := s.f.Rows(sheets[0])
	if err != nil {
		return &InputFormatError{Path: s.path, Kind: KindUnreadable, Msg: "read sheet " + sheets[0], Err: err}
	}
	s.rows = rows

	// Read the header plus enough rows to vote on it.
	var sample [][]string
	for len(sample) < headerCheckRows+2 {
		line, values, err := s.readRow()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		sample = append(sample, values)
		s.pending = append(s.pending, pendingRow{line: line, values: values})
	}
	if len(sample) == 0 {
		return &InputFormatError{Path: s.path, Kind: KindHeader, Msg: "sheet is empty"}
	}
	if !HasHeader(sample) {
		return &InputFormatError{Path: s.path, Kind: KindHeader, Msg: "no header row detected"}
	}

	header, err := cleanHeader(s.path, sample[0])
	if err != nil {
		return err
	}
	s.header = header
	s.pending = s.pending[1:]
	return nil
}

// readRow returns the next non-empty row with trailing blanks removed.
func (s *xlsxSource) readRow() (int, []string, error) {
	for s.rows.Next() {
		s.line++
		cols, err := s.rows.Columns()
		if err != nil {
			return 0, nil, &InputFormatError{Path: s.path, Kind: KindRow, Line: s.line, Msg: "read row", Err: err}
		}
		cols = trimTrailingBlanks(cols)
		if len(cols) == 0 {
			continue
		}
		return s.line, cols, nil
	}
	if err := s.rows.Error(); err != nil {
		return 0, nil, &InputFormatError{Path: s.path, Kind: KindUnreadable, Msg: "read sheet", Err: err}
	}
	return 0, nil, io.EOF
}

func (s *xlsxSource) Header() []string { return s.header }

func (s *xlsxSource) Next() (Record, error) {
	if len(s.pending) > 0 {
		row := s.pending[0]
		s.pending = s.pending[1:]
		return alignRow(s.path, row.line, s.header, row.values)
	}

	line, values, err := s.readRow()
	if err != nil {
		return Record{}, err
	}
	return alignRow(s.path, line, s.header, values)
}

func (s *xlsxSource) Close() error {
	var errs []error
	if s.rows != nil {
		errs = append(errs, s.rows.Close())
	}
	errs = append(errs, s.f.Close())
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close workbook: %w", err)
	}
	return nil
}

func trimTrailingBlanks(cols []string) []string {
	n := len(cols)
	for n > 0 && strings.TrimSpace(cols[n-1]) == "" {
		n--
	}
	return cols[:n]
}
