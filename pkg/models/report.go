package models

import "time"

// BatchReport is what the operator sees after a batch: the API returns it
// as JSON and the CLI prints it.
type BatchReport struct {
	BatchID     string       `json:"batch_id"`
	Kind        string       `json:"kind"`
	State       string       `json:"state"`
	Source      string       `json:"source,omitempty"`
	Total       int          `json:"total"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
	Skipped     []string     `json:"skipped,omitempty"`
	Cancelled   bool         `json:"cancelled"`
	Attachment  *Media       `json:"attachment,omitempty"`
	Diagnostics Diagnostics  `json:"diagnostics"`
	Results     []ResultView `json:"results"`
	Error       string       `json:"error,omitempty"`
	ErrorKind   string       `json:"error_kind,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	DurationMS  int64        `json:"duration_ms"`
}

// ResultView is one recipient's line in a report.
type ResultView struct {
	RecipientID string `json:"recipient_id"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Provider    string `json:"provider,omitempty"`
	Succeeded   bool   `json:"succeeded"`
	StatusCode  int    `json:"status_code,omitempty"`
	MessageID   string `json:"message_id,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	Error       string `json:"error,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
}

// Diagnostics lists the rows that were left out of a batch.
type Diagnostics struct {
	UnmatchedStudents []string `json:"unmatched_students,omitempty"`
	UnmatchedMarks    []string `json:"unmatched_marks,omitempty"`
	DuplicateStudents []string `json:"duplicate_students,omitempty"`
	DuplicateMarks    []string `json:"duplicate_marks,omitempty"`
	MissingIDRows     []int    `json:"missing_id_rows,omitempty"`
	BlankRows         int      `json:"blank_rows,omitempty"`
	Dropped           int      `json:"dropped"`
}

// RosterPreview is returned before sending so the operator can check the
// file was read as intended.
type RosterPreview struct {
	Source      string        `json:"source"`
	Sheet       string        `json:"sheet,omitempty"`
	Sheets      []string      `json:"sheets,omitempty"`
	Subjects    []string      `json:"subjects,omitempty"`
	Students    []StudentView `json:"students"`
	Diagnostics Diagnostics   `json:"diagnostics"`
}

// StudentView is a roster row as shown to the operator.
type StudentView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Channel  string `json:"channel"`
	Semester *int   `json:"semester,omitempty"`
	Valid    bool   `json:"valid_phone"`
}
