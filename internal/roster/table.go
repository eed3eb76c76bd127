package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

var sheetPattern = regexp.MustCompile(`(?i)^(sem|ia)\s*(\d+)$`)

// SemesterSheet names the roster sheet of a semester workbook.
func SemesterSheet(n int) string {
	return fmt.Sprintf("sem %d", n)
}

// AssessmentSheet names the marks sheet of an internal assessment.
func AssessmentSheet(n int) string {
	return fmt.Sprintf("IA %d", n)
}

// ValidateSheetName accepts "sem N" and "IA N" in any case.
func ValidateSheetName(name string) error {
	if !sheetPattern.MatchString(strings.TrimSpace(name)) {
		return fmt.Errorf("%w: got %q", ErrInvalidSheetName, name)
	}
	return nil
}

// table is a header row plus data rows padded to the header width.
type table struct {
	source string
	sheet  string
	header []string
	rows   [][]string
	lines  []int // spreadsheet row number of each entry in rows
}

func (t *table) column(aliases []string) int {
	for _, alias := range aliases {
		want := normalize(alias)
		for i, h := range t.header {
			if normalize(h) == want {
				return i
			}
		}
	}
	return -1
}

func (t *table) require(name string, aliases []string) (int, error) {
	idx := t.column(aliases)
	if idx < 0 {
		return -1, &MissingColumnError{Source: t.source, Sheet: t.sheet, Column: name, Available: t.header}
	}
	return idx, nil
}

func isExcel(ext string) bool {
	return ext == ".xlsx" || ext == ".xlsm"
}

func isDelimited(ext string) bool {
	return ext == ".csv" || ext == ".tsv" || ext == ".txt"
}

// readTable decodes r according to the extension of name.
func readTable(r io.Reader, name, sheet string) (*table, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case isExcel(ext):
		return readWorkbook(r, name, sheet)
	case isDelimited(ext):
		return readDelimited(r, name, ext)
	default:
		return nil, &ParseError{Source: name, Err: fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)}
	}
}

func readWorkbook(r io.Reader, name, sheet string) (*table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseError{Source: name, Err: err}
	}
	defer f.Close()

	resolved, err := resolveSheet(f.GetSheetList(), sheet)
	if err != nil {
		return nil, &ParseError{Source: name, Sheet: sheet, Err: err}
	}

	rows, err := f.GetRows(resolved)
	if err != nil {
		return nil, &ParseError{Source: name, Sheet: resolved, Err: err}
	}
	return buildTable(name, resolved, rows, nil)
}

func resolveSheet(sheets []string, want string) (string, error) {
	if len(sheets) == 0 {
		return "", ErrSheetNotFound
	}
	if strings.TrimSpace(want) == "" {
		return sheets[0], nil
	}
	if err := ValidateSheetName(want); err != nil {
		return "", err
	}
	key := sheetKey(want)
	for _, s := range sheets {
		if sheetKey(s) == key {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q (workbook has %s)", ErrSheetNotFound, want, strings.Join(sheets, ", "))
}

// sheetKey folds "Sem 3", "sem3" and "SEM  3" together.
func sheetKey(s string) string {
	m := sheetPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return normalize(s)
	}
	return strings.ToLower(m[1]) + " " + strings.TrimLeft(m[2], "0")
}

func readDelimited(r io.Reader, name, ext string) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	if ext == ".tsv" {
		cr.Comma = '\t'
	}
	// The reader skips empty lines, so each record keeps its own file line.
	var (
		rows  [][]string
		lines []int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Source: name, Err: err}
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, rec)
		lines = append(lines, line)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return buildTable(name, "", rows, lines)
}

// buildTable takes the first non-blank row as the header. lines holds the
// source line of each row; nil means rows are numbered from 1 with no gaps.
func buildTable(source, sheet string, rows [][]string, lines []int) (*table, error) {
	t := &table{source: source, sheet: sheet}
	start := -1
	for i, row := range rows {
		if !blank(row) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, &ParseError{Source: source, Sheet: sheet, Err: ErrEmptyTable}
	}

	for _, h := range rows[start] {
		t.header = append(t.header, strings.TrimSpace(h))
	}
	width := len(t.header)
	for i := start + 1; i < len(rows); i++ {
		row := make([]string, width)
		for j := 0; j < width && j < len(rows[i]); j++ {
			row[j] = strings.TrimSpace(rows[i][j])
		}
		t.rows = append(t.rows, row)
		if lines != nil {
			t.lines = append(t.lines, lines[i])
		} else {
			t.lines = append(t.lines, i+1)
		}
	}
	return t, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// SheetNames lists the sheets of a workbook; delimited files have none.
func SheetNames(r io.Reader, name string) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if isDelimited(ext) {
		return nil, nil
	}
	if !isExcel(ext) {
		return nil, &ParseError{Source: name, Err: fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)}
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ParseError{Source: name, Err: err}
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// IsSpreadsheet reports whether name has an extension the loader reads.
func IsSpreadsheet(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return isExcel(ext) || isDelimited(ext)
}

// IsWorkbook reports whether name is a multi-sheet workbook.
func IsWorkbook(name string) bool {
	return isExcel(strings.ToLower(filepath.Ext(name)))
}
