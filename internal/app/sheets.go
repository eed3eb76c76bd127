package app

import (
	"bytes"
	"context"

	"parent-messenger/internal/batch"
	"parent-messenger/internal/roster"
)

// Sheet is a spreadsheet to read, either from disk (Path) or from memory
// (Data, as received in an upload). Name carries the extension.
type Sheet struct {
	Name string
	Path string
	Data []byte
	// Sheet selects a workbook sheet such as "sem 3" or "IA 2".
	Sheet string
}

func (s Sheet) options(requireChannel bool) roster.Options {
	return roster.Options{Sheet: s.Sheet, RequireChannel: requireChannel}
}

// Students reads s as a roster.
func (s Sheet) Students(requireChannel bool) (*roster.Roster, error) {
	if s.Path != "" {
		return roster.Load(s.Path, s.options(requireChannel))
	}
	return roster.ReadStudents(bytes.NewReader(s.Data), s.Name, s.options(requireChannel))
}

// Marks reads s as a marks sheet.
func (s Sheet) Marks() (*roster.MarksTable, error) {
	if s.Path != "" {
		return roster.LoadMarks(s.Path, s.options(false))
	}
	return roster.ReadMarks(bytes.NewReader(s.Data), s.Name, s.options(false))
}

// SheetNames lists the workbook sheets of s.
func (s Sheet) SheetNames() ([]string, error) {
	if s.Path != "" {
		return roster.SheetNamesFile(s.Path)
	}
	return roster.SheetNames(bytes.NewReader(s.Data), s.Name)
}

// StudentsLoader loads a roster, optionally narrowed to only.
func StudentsLoader(students Sheet, only []string) batch.Loader {
	return func(context.Context) (*roster.Roster, error) {
		r, err := students.Students(false)
		if err != nil {
			return nil, err
		}
		return narrow(r, only), nil
	}
}

// MarksLoader joins a marks sheet onto a roster.
func MarksLoader(students, marks Sheet, only []string) batch.Loader {
	return func(context.Context) (*roster.Roster, error) {
		s, err := students.Students(false)
		if err != nil {
			return nil, err
		}
		m, err := marks.Marks()
		if err != nil {
			return nil, err
		}
		return narrow(roster.Join(s, m), only), nil
	}
}

// StudentLoader picks a single student out of a roster.
func StudentLoader(students Sheet, sel roster.Selector) batch.Loader {
	return func(context.Context) (*roster.Roster, error) {
		r, err := students.Students(false)
		if err != nil {
			return nil, err
		}
		return roster.Find(r, sel)
	}
}

func narrow(r *roster.Roster, only []string) *roster.Roster {
	if len(only) == 0 {
		return r
	}
	return r.Only(only)
}
