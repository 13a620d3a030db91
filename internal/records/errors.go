package records

import "fmt"

// Kind classifies an InputFormatError.
type Kind string

const (
	KindUnreadable Kind = "unreadable"
	KindDialect    Kind = "dialect"
	KindHeader     Kind = "header"
	KindColumns    Kind = "columns"
	KindRow        Kind = "row"
)

// InputFormatError reports an input file whose structure cannot be used.
// Line is 0 when the problem is not tied to a single line.
type InputFormatError struct {
	Path string
	Kind Kind
	Line int
	Msg  string
	Err  error
}

func (e *InputFormatError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("input %s: %s: %v", loc, e.Msg, e.Err)
	}
	return fmt.Sprintf("input %s: %s", loc, e.Msg)
}

func (e *InputFormatError) Unwrap() error { return e.Err }

// OutputError reports a failure creating or writing the result file.
type OutputError struct {
	Path string
	Op   string
	Err  error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("output %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }
