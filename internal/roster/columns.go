package roster

import "strings"

// ColumnSet lists the accepted header aliases for each known column.
type ColumnSet struct {
	ID       []string
	Name     []string
	Phone    []string
	Channel  []string
	Semester []string
}

// DefaultColumns matches the faculty roster template.
var DefaultColumns = ColumnSet{
	ID:       []string{"USN", "Student ID", "Roll No", "Roll Number"},
	Name:     []string{"Student Name", "Name"},
	Phone:    []string{"Phone Number", "Parent Phone Number", "Phone", "Mobile", "Mobile Number"},
	Channel:  []string{"Channel", "Preferred Channel", "Preferred Service"},
	Semester: []string{"Semester", "Sem"},
}

func (c ColumnSet) isZero() bool {
	return len(c.ID) == 0 && len(c.Name) == 0 && len(c.Phone) == 0 && len(c.Channel) == 0 && len(c.Semester) == 0
}

// known reports whether header is any of the identifier columns.
func (c ColumnSet) known(header string) bool {
	h := normalize(header)
	for _, group := range [][]string{c.ID, c.Name, c.Phone, c.Channel, c.Semester} {
		for _, alias := range group {
			if normalize(alias) == h {
				return true
			}
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
