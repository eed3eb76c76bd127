package roster

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported roster format")
	ErrSheetNotFound     = errors.New("sheet not found")
	ErrInvalidSheetName  = errors.New("sheet name must look like \"sem N\" or \"IA N\"")
	ErrEmptyTable        = errors.New("table has no header row")
	ErrStudentNotFound   = errors.New("student not found")
	ErrAmbiguousStudent  = errors.New("more than one student matches")
)

// ParseError means the source could not be read as a table.
type ParseError struct {
	Source string
	Sheet  string
	Row    int // 1-based spreadsheet row, 0 when not row specific
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse ")
	b.WriteString(e.Source)
	if e.Sheet != "" {
		fmt.Fprintf(&b, " [%s]", e.Sheet)
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// MissingColumnError means a required header is absent.
type MissingColumnError struct {
	Source    string
	Sheet     string
	Column    string
	Available []string
}

func (e *MissingColumnError) Error() string {
	where := e.Source
	if e.Sheet != "" {
		where += " [" + e.Sheet + "]"
	}
	return fmt.Sprintf("%s: missing column %q (have %s)", where, e.Column, strings.Join(e.Available, ", "))
}
