package roster

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

type sheet struct {
	name string
	rows [][]interface{}
}

func writeWorkbook(t *testing.T, name string, sheets ...sheet) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", s.name))
		} else {
			_, err := f.NewSheet(s.name)
			require.NoError(t, err)
		}
		for r, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			row := row
			require.NoError(t, f.SetSheetRow(s.name, cell, &row))
		}
	}

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoad_CSV(t *testing.T) {
	path := writeFile(t, "students.csv", strings.Join([]string{
		"USN,Student Name,Phone Number,Channel,Semester",
		"1AB21CS001,Asha Rao,9876543210,WhatsApp,3",
		"1AB21CS002,Ravi Kumar,9876500000,sms,3",
		",,,,",
		"1AB21CS003,Meera N,9876511111,,",
		",Nameless,9999999999,,",
		"1ab21cs001,Asha Again,9000000000,,",
	}, "\n"))

	r, err := Load(path, Options{})
	require.NoError(t, err)

	students := r.Students()
	require.Len(t, students, 3)
	assert.Equal(t, "1AB21CS001", students[0].ID)
	assert.Equal(t, "Asha Rao", students[0].Name)
	assert.Equal(t, "9876543210", students[0].Phone)
	assert.Equal(t, WhatsApp, students[0].Channel)
	require.NotNil(t, students[0].Semester)
	assert.Equal(t, 3, *students[0].Semester)
	assert.Equal(t, 2, students[0].Row)

	assert.Equal(t, SMS, students[1].Channel)
	assert.Equal(t, WhatsApp, students[2].Channel, "blank channel defaults to WhatsApp")
	assert.Nil(t, students[2].Semester)

	assert.Equal(t, 1, r.Diagnostics.BlankRows)
	assert.Equal(t, []int{6}, r.Diagnostics.MissingIDRows)
	assert.Equal(t, []string{"1ab21cs001"}, r.Diagnostics.DuplicateStudents)
}

func TestLoad_CSVKeepsFileLines(t *testing.T) {
	content := "USN,Student Name,Phone Number\n\n\n1AB21CS001,Asha Rao,9876543210\n,Nameless,9999999999\n"
	r, err := ReadStudents(strings.NewReader(content), "students.csv", Options{})
	require.NoError(t, err)

	require.Len(t, r.Entries, 1)
	assert.Equal(t, 4, r.Entries[0].Student.Row)
	assert.Equal(t, []int{5}, r.Diagnostics.MissingIDRows)
}

func TestLoad_ParentPhoneAndPreferredService(t *testing.T) {
	content := strings.Join([]string{
		"USN,Student Name,Parent Phone Number,Preferred Service",
		"1AB01,Asha,9876543210,SMS",
		"1AB02,Ravi,9876543211,WHATSAPP",
	}, "\n")
	r, err := ReadStudents(strings.NewReader(content), "students.csv", Options{RequireChannel: true})
	require.NoError(t, err)

	students := r.Students()
	require.Len(t, students, 2)
	assert.Equal(t, "9876543210", students[0].Phone)
	assert.Equal(t, SMS, students[0].Channel)
	assert.Equal(t, WhatsApp, students[1].Channel)

	marks, err := ReadMarks(strings.NewReader(strings.Join([]string{
		"USN,Student Name,Parent Phone Number,Preferred Service,Math,Physics",
		"1AB01,Asha,9876543210,SMS,18,20",
	}, "\n")), "marks.csv", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Math", "Physics"}, marks.Subjects)
}

func TestLoad_MissingColumn(t *testing.T) {
	path := writeFile(t, "students.csv", "USN,Student Name\n1,Asha\n")

	_, err := Load(path, Options{})
	var mce *MissingColumnError
	require.True(t, errors.As(err, &mce), "got %v", err)
	assert.Equal(t, "Phone Number", mce.Column)
	assert.Equal(t, []string{"USN", "Student Name"}, mce.Available)
}

func TestLoad_RequireChannel(t *testing.T) {
	path := writeFile(t, "students.csv", "USN,Student Name,Phone Number\n1,Asha,9876543210\n")

	_, err := Load(path, Options{RequireChannel: true})
	var mce *MissingColumnError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, "Channel", mce.Column)
}

func TestLoad_BadChannel(t *testing.T) {
	path := writeFile(t, "students.csv", "USN,Student Name,Phone Number,Channel\n1,Asha,9876543210,fax\n")

	_, err := Load(path, Options{})
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Row)
}

func TestLoad_Unsupported(t *testing.T) {
	path := writeFile(t, "students.pdf", "%PDF-1.4")

	_, err := Load(path, Options{})
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestLoad_CorruptWorkbook(t *testing.T) {
	path := writeFile(t, "students.xlsx", "this is not a zip archive")

	_, err := Load(path, Options{})
	var pe *ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeFile(t, "students.csv", "\n\n")

	_, err := Load(path, Options{})
	assert.True(t, errors.Is(err, ErrEmptyTable))
}

func TestLoad_WorkbookSheets(t *testing.T) {
	path := writeWorkbook(t, "students.xlsx",
		sheet{name: "sem 1", rows: [][]interface{}{
			{"USN", "Student Name", "Phone Number"},
			{"1AB24CS001", "First Year", "9876500001"},
		}},
		sheet{name: "Sem 3", rows: [][]interface{}{
			{"USN", "Student Name", "Phone Number"},
			{"1AB22CS001", "Third Sem", "9876500003"},
		}},
	)

	r, err := Load(path, Options{Sheet: SemesterSheet(3)})
	require.NoError(t, err)
	require.Equal(t, 1, r.Len())
	assert.Equal(t, "Sem 3", r.Sheet)
	assert.Equal(t, "Third Sem", r.Entries[0].Student.Name)
	assert.Equal(t, "9876500003", r.Entries[0].Student.Phone)

	r, err = Load(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, "sem 1", r.Sheet, "first sheet by default")

	_, err = Load(path, Options{Sheet: "sem 5"})
	assert.True(t, errors.Is(err, ErrSheetNotFound))

	_, err = Load(path, Options{Sheet: "Marks"})
	assert.True(t, errors.Is(err, ErrInvalidSheetName))
}

func TestSheetNames(t *testing.T) {
	path := writeWorkbook(t, "book.xlsx",
		sheet{name: "sem 3", rows: [][]interface{}{{"USN"}}},
		sheet{name: "IA 1", rows: [][]interface{}{{"USN"}}},
	)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	names, err := SheetNames(f, "book.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"sem 3", "IA 1"}, names)
}

func TestValidateSheetName(t *testing.T) {
	for _, ok := range []string{"sem 1", "SEM 8", "IA 2", "ia3", " sem 4 "} {
		assert.NoError(t, ValidateSheetName(ok), ok)
	}
	for _, bad := range []string{"", "Sheet1", "semester 1", "IA", "IA x"} {
		assert.Error(t, ValidateSheetName(bad), bad)
	}
}

func TestReadMarks_SubjectOrder(t *testing.T) {
	path := writeFile(t, "marks.csv", strings.Join([]string{
		"USN,Student Name,Math,Physics,Chem,Lab,Lab",
		"1AB21CS001,Asha Rao,18,17,19,9,10",
	}, "\n"))

	mt, err := LoadMarks(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Math", "Physics", "Chem", "Lab", "Lab"}, mt.Subjects)
	require.Len(t, mt.Rows, 1)
	assert.Equal(t, []Score{
		{"Math", "18"}, {"Physics", "17"}, {"Chem", "19"}, {"Lab", "9"}, {"Lab", "10"},
	}, mt.Rows[0].Scores)
}

func TestReadMarks_NoSubjects(t *testing.T) {
	path := writeFile(t, "marks.csv", "USN,Student Name\n1,Asha\n")

	_, err := LoadMarks(path, Options{})
	var mce *MissingColumnError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, "<subject>", mce.Column)
}

func TestJoin_InnerJoin(t *testing.T) {
	students, err := Load(writeFile(t, "students.csv", strings.Join([]string{
		"USN,Student Name,Phone Number",
		"S1,Asha,9876500001",
		"S2,Ravi,9876500002",
		"S3,Meera,9876500003",
	}, "\n")), Options{})
	require.NoError(t, err)

	marks, err := LoadMarks(writeFile(t, "marks.csv", strings.Join([]string{
		"USN,Math,Physics,Chem",
		"S3,15,16,17",
		"S1,18,17,19",
		"S9,10,10,10",
		"S1,0,0,0",
	}, "\n")), Options{})
	require.NoError(t, err)

	joined := Join(students, marks)

	require.Equal(t, 2, joined.Len())
	assert.Equal(t, "S1", joined.Entries[0].Student.ID, "roster order is kept")
	assert.Equal(t, "S3", joined.Entries[1].Student.ID)
	assert.Equal(t, "18", joined.Entries[0].Scores[0].Value)
	assert.Equal(t, []string{"Math", "Physics", "Chem"}, joined.Subjects)

	assert.Equal(t, []string{"S2"}, joined.Diagnostics.UnmatchedStudents)
	assert.Equal(t, []string{"S9"}, joined.Diagnostics.UnmatchedMarks)
	assert.Equal(t, []string{"S1"}, joined.Diagnostics.DuplicateMarks)
	assert.Equal(t, 3, joined.Diagnostics.Dropped())
}

func TestJoin_WorkbookMarksSheet(t *testing.T) {
	rosterPath := writeWorkbook(t, "students.xlsx", sheet{name: "sem 3", rows: [][]interface{}{
		{"USN", "Student Name", "Phone Number"},
		{"S1", "Asha", "9876500001"},
	}})
	marksPath := writeWorkbook(t, "marks.xlsx",
		sheet{name: "IA 1", rows: [][]interface{}{{"USN", "Math"}, {"S1", 11}}},
		sheet{name: "IA 2", rows: [][]interface{}{{"USN", "Math"}, {"S1", 22}}},
	)

	students, err := Load(rosterPath, Options{Sheet: SemesterSheet(3)})
	require.NoError(t, err)
	marks, err := LoadMarks(marksPath, Options{Sheet: AssessmentSheet(2)})
	require.NoError(t, err)

	joined := Join(students, marks)
	require.Equal(t, 1, joined.Len())
	assert.Equal(t, "22", joined.Entries[0].Scores[0].Value)
}

func TestFind(t *testing.T) {
	r := &Roster{Entries: []Entry{
		{Student: Student{ID: "S1", Name: "Asha Rao"}},
		{Student: Student{ID: "S2", Name: "Ravi"}},
		{Student: Student{ID: "S3", Name: "Ravi"}},
	}}

	one, err := Find(r, Selector{ID: "s1"})
	require.NoError(t, err)
	require.Equal(t, 1, one.Len())
	assert.Equal(t, "Asha Rao", one.Entries[0].Student.Name)

	one, err = Find(r, Selector{Name: "asha  rao"})
	require.NoError(t, err)
	assert.Equal(t, "S1", one.Entries[0].Student.ID)

	_, err = Find(r, Selector{Name: "Ravi"})
	assert.True(t, errors.Is(err, ErrAmbiguousStudent))

	_, err = Find(r, Selector{ID: "S404"})
	assert.True(t, errors.Is(err, ErrStudentNotFound))

	_, err = Find(r, Selector{})
	assert.True(t, errors.Is(err, ErrStudentNotFound))
}

func TestOnly(t *testing.T) {
	r := &Roster{Entries: []Entry{
		{Student: Student{ID: "S1"}},
		{Student: Student{ID: "S2"}},
		{Student: Student{ID: "S3"}},
	}}

	sub := r.Only([]string{"S3", "s1"})
	require.Equal(t, 2, sub.Len())
	assert.Equal(t, "S1", sub.Entries[0].Student.ID)
	assert.Equal(t, "S3", sub.Entries[1].Student.ID)
}

func TestParseChannel(t *testing.T) {
	ch, err := ParseChannel(" WA ")
	require.NoError(t, err)
	assert.Equal(t, WhatsApp, ch)

	ch, err = ParseChannel("SMS")
	require.NoError(t, err)
	assert.Equal(t, SMS, ch)

	_, err = ParseChannel("pager")
	assert.Error(t, err)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.xlsx", "a.csv", "notes.pdf", "~$b.xlsx", ".cache/c.xlsx", "sem/d.xlsx"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	}

	found, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.csv"),
		filepath.Join(dir, "b.xlsx"),
		filepath.Join(dir, "sem", "d.xlsx"),
	}, found)
}

func TestSheetNamesFile_CSV(t *testing.T) {
	names, err := SheetNamesFile(writeFile(t, "students.csv", "USN\n"))
	require.NoError(t, err)
	assert.Nil(t, names)
}
