// Package roster reads student rosters and internal-assessment marks from
// spreadsheets and joins them on the student identifier.
package roster

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Channel is the messaging channel a parent prefers.
type Channel string

const (
	WhatsApp Channel = "WHATSAPP"
	SMS      Channel = "SMS"
)

// ParseChannel accepts the spellings faculty actually type into the sheet.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "whatsapp", "wa", "whats app":
		return WhatsApp, nil
	case "sms", "text":
		return SMS, nil
	default:
		return "", fmt.Errorf("unknown channel %q", s)
	}
}

// Student is one roster row.
type Student struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Phone    string  `json:"phone"`
	Channel  Channel `json:"channel"`
	Semester *int    `json:"semester,omitempty"`
	Row      int     `json:"row"`
}

// Score is one subject column of a marks row.
type Score struct {
	Subject string `json:"subject"`
	Value   string `json:"value"`
}

// Marks holds one student's scores in source column order.
type Marks struct {
	StudentID string
	Scores    []Score
	Row       int
}

// Entry is a roster student with the scores joined onto it, if any.
type Entry struct {
	Student Student `json:"student"`
	Scores  []Score `json:"scores,omitempty"`
}

// Diagnostics records every row that did not make it into the roster.
type Diagnostics struct {
	UnmatchedStudents []string `json:"unmatched_students,omitempty"`
	UnmatchedMarks    []string `json:"unmatched_marks,omitempty"`
	DuplicateStudents []string `json:"duplicate_students,omitempty"`
	DuplicateMarks    []string `json:"duplicate_marks,omitempty"`
	MissingIDRows     []int    `json:"missing_id_rows,omitempty"`
	BlankRows         int      `json:"blank_rows,omitempty"`
}

// Dropped counts rows excluded from the batch.
func (d Diagnostics) Dropped() int {
	return len(d.UnmatchedStudents) + len(d.UnmatchedMarks) + len(d.DuplicateStudents) +
		len(d.DuplicateMarks) + len(d.MissingIDRows)
}

func (d *Diagnostics) merge(o Diagnostics) {
	d.UnmatchedStudents = append(d.UnmatchedStudents, o.UnmatchedStudents...)
	d.UnmatchedMarks = append(d.UnmatchedMarks, o.UnmatchedMarks...)
	d.DuplicateStudents = append(d.DuplicateStudents, o.DuplicateStudents...)
	d.DuplicateMarks = append(d.DuplicateMarks, o.DuplicateMarks...)
	d.MissingIDRows = append(d.MissingIDRows, o.MissingIDRows...)
	d.BlankRows += o.BlankRows
}

// Roster is the ordered set of recipients for one batch.
type Roster struct {
	Source      string      `json:"source"`
	Sheet       string      `json:"sheet,omitempty"`
	Subjects    []string    `json:"subjects,omitempty"`
	Entries     []Entry     `json:"entries"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Students returns the roster students in order.
func (r *Roster) Students() []Student {
	out := make([]Student, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Student
	}
	return out
}

// Len is the number of recipients.
func (r *Roster) Len() int {
	return len(r.Entries)
}

// Only returns a roster restricted to ids, keeping order. Diagnostics are
// carried over unchanged.
func (r *Roster) Only(ids []string) *Roster {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[key(id)] = true
	}
	out := &Roster{Source: r.Source, Sheet: r.Sheet, Subjects: r.Subjects, Diagnostics: r.Diagnostics}
	for _, e := range r.Entries {
		if want[key(e.Student.ID)] {
			out.Entries = append(out.Entries, e)
		}
	}
	return out
}

// MarksTable is a parsed marks sheet.
type MarksTable struct {
	Source      string
	Sheet       string
	Subjects    []string
	Rows        []Marks
	Diagnostics Diagnostics
}

// Options controls how a sheet is read.
type Options struct {
	// Sheet selects a workbook sheet ("sem N" or "IA N"); empty means the
	// first sheet. Ignored for delimited files.
	Sheet          string
	RequireChannel bool
	Columns        ColumnSet
}

func (o Options) columns() ColumnSet {
	if o.Columns.isZero() {
		return DefaultColumns
	}
	return o.Columns
}

// Load reads a roster file from disk.
func Load(path string, opts Options) (*Roster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Source: path, Err: err}
	}
	defer f.Close()
	return ReadStudents(f, filepath.Base(path), opts)
}

// LoadMarks reads a marks file from disk.
func LoadMarks(path string, opts Options) (*MarksTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Source: path, Err: err}
	}
	defer f.Close()
	return ReadMarks(f, filepath.Base(path), opts)
}

// ReadStudents parses a roster. name is used for the format and in errors.
func ReadStudents(r io.Reader, name string, opts Options) (*Roster, error) {
	t, err := readTable(r, name, opts.Sheet)
	if err != nil {
		return nil, err
	}
	cols := opts.columns()

	idIdx, err := t.require("USN", cols.ID)
	if err != nil {
		return nil, err
	}
	nameIdx, err := t.require("Student Name", cols.Name)
	if err != nil {
		return nil, err
	}
	phoneIdx, err := t.require("Phone Number", cols.Phone)
	if err != nil {
		return nil, err
	}
	chanIdx := t.column(cols.Channel)
	if opts.RequireChannel && chanIdx < 0 {
		return nil, &MissingColumnError{Source: t.source, Sheet: t.sheet, Column: "Channel", Available: t.header}
	}
	semIdx := t.column(cols.Semester)

	ros := &Roster{Source: t.source, Sheet: t.sheet}
	seen := make(map[string]bool)
	for i, row := range t.rows {
		line := t.lines[i]
		if blank(row) {
			ros.Diagnostics.BlankRows++
			continue
		}
		id := row[idIdx]
		if id == "" {
			ros.Diagnostics.MissingIDRows = append(ros.Diagnostics.MissingIDRows, line)
			continue
		}
		if seen[key(id)] {
			ros.Diagnostics.DuplicateStudents = append(ros.Diagnostics.DuplicateStudents, id)
			continue
		}
		seen[key(id)] = true

		s := Student{ID: id, Name: row[nameIdx], Phone: row[phoneIdx], Channel: WhatsApp, Row: line}
		if chanIdx >= 0 && row[chanIdx] != "" {
			ch, err := ParseChannel(row[chanIdx])
			if err != nil {
				return nil, &ParseError{Source: t.source, Sheet: t.sheet, Row: line, Err: err}
			}
			s.Channel = ch
		} else if opts.RequireChannel {
			return nil, &ParseError{Source: t.source, Sheet: t.sheet, Row: line, Err: fmt.Errorf("channel is empty")}
		}
		if semIdx >= 0 {
			s.Semester = parseInt(row[semIdx])
		}
		ros.Entries = append(ros.Entries, Entry{Student: s})
	}
	return ros, nil
}

// ReadMarks parses a marks sheet. Every column that is not an identifier
// column is a subject, kept in source order.
func ReadMarks(r io.Reader, name string, opts Options) (*MarksTable, error) {
	t, err := readTable(r, name, opts.Sheet)
	if err != nil {
		return nil, err
	}
	cols := opts.columns()

	idIdx, err := t.require("USN", cols.ID)
	if err != nil {
		return nil, err
	}

	var subjectIdx []int
	mt := &MarksTable{Source: t.source, Sheet: t.sheet}
	for i, h := range t.header {
		if i == idIdx || h == "" || cols.known(h) {
			continue
		}
		subjectIdx = append(subjectIdx, i)
		mt.Subjects = append(mt.Subjects, h)
	}
	if len(subjectIdx) == 0 {
		return nil, &MissingColumnError{Source: t.source, Sheet: t.sheet, Column: "<subject>", Available: t.header}
	}

	seen := make(map[string]bool)
	for i, row := range t.rows {
		line := t.lines[i]
		if blank(row) {
			mt.Diagnostics.BlankRows++
			continue
		}
		id := row[idIdx]
		if id == "" {
			mt.Diagnostics.MissingIDRows = append(mt.Diagnostics.MissingIDRows, line)
			continue
		}
		if seen[key(id)] {
			mt.Diagnostics.DuplicateMarks = append(mt.Diagnostics.DuplicateMarks, id)
			continue
		}
		seen[key(id)] = true

		m := Marks{StudentID: id, Row: line, Scores: make([]Score, len(subjectIdx))}
		for j, idx := range subjectIdx {
			m.Scores[j] = Score{Subject: mt.Subjects[j], Value: row[idx]}
		}
		mt.Rows = append(mt.Rows, m)
	}
	return mt, nil
}

// Join inner-joins marks onto the roster by student ID. Students without
// marks and marks without a student are listed in the diagnostics.
func Join(students *Roster, marks *MarksTable) *Roster {
	byID := make(map[string]Marks, len(marks.Rows))
	for _, m := range marks.Rows {
		byID[key(m.StudentID)] = m
	}

	out := &Roster{
		Source:   students.Source,
		Sheet:    students.Sheet,
		Subjects: marks.Subjects,
	}
	out.Diagnostics.merge(students.Diagnostics)
	out.Diagnostics.merge(marks.Diagnostics)

	matched := make(map[string]bool, len(students.Entries))
	for _, e := range students.Entries {
		k := key(e.Student.ID)
		m, ok := byID[k]
		if !ok {
			out.Diagnostics.UnmatchedStudents = append(out.Diagnostics.UnmatchedStudents, e.Student.ID)
			continue
		}
		matched[k] = true
		out.Entries = append(out.Entries, Entry{Student: e.Student, Scores: m.Scores})
	}
	for _, m := range marks.Rows {
		if !matched[key(m.StudentID)] {
			out.Diagnostics.UnmatchedMarks = append(out.Diagnostics.UnmatchedMarks, m.StudentID)
		}
	}
	return out
}

// Selector picks a single student by ID or, failing that, by name.
type Selector struct {
	ID   string
	Name string
}

// Find returns a roster holding only the selected student.
func Find(r *Roster, sel Selector) (*Roster, error) {
	var hits []Entry
	switch {
	case strings.TrimSpace(sel.ID) != "":
		for _, e := range r.Entries {
			if key(e.Student.ID) == key(sel.ID) {
				hits = append(hits, e)
			}
		}
	case strings.TrimSpace(sel.Name) != "":
		for _, e := range r.Entries {
			if normalize(e.Student.Name) == normalize(sel.Name) {
				hits = append(hits, e)
			}
		}
	default:
		return nil, fmt.Errorf("%w: no USN or name given", ErrStudentNotFound)
	}

	switch len(hits) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrStudentNotFound, sel)
	case 1:
		return &Roster{Source: r.Source, Sheet: r.Sheet, Entries: hits}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousStudent, sel)
	}
}

func (s Selector) String() string {
	if s.ID != "" {
		return "USN " + s.ID
	}
	return "name " + strconv.Quote(s.Name)
}

func key(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func parseInt(s string) *int {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".0")
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
