package app

import (
	"errors"

	"parent-messenger/internal/batch"
	"parent-messenger/internal/config"
	"parent-messenger/internal/dispatch"
	"parent-messenger/internal/phone"
	"parent-messenger/internal/roster"
	"parent-messenger/pkg/models"
)

// Error kinds reported for batch-fatal errors.
const (
	KindConfiguration = "configuration"
	KindParse         = "parse"
	KindMissingColumn = "missing_column"
	KindSheet         = "sheet"
	KindStudent       = "student_not_found"
	KindUpload        = "upload"
	KindInvalidJob    = "invalid_job"
	KindAttachment    = "attachment"
	KindInternal      = "internal"
)

// ErrorKind classifies an error returned before any send.
func ErrorKind(err error) string {
	var (
		cerr *config.Error
		mce  *roster.MissingColumnError
		pe   *roster.ParseError
		ue   *dispatch.UploadError
	)
	switch {
	case errors.As(err, &cerr):
		return KindConfiguration
	case errors.As(err, &mce):
		return KindMissingColumn
	case errors.Is(err, roster.ErrSheetNotFound), errors.Is(err, roster.ErrInvalidSheetName):
		return KindSheet
	case errors.As(err, &pe):
		return KindParse
	case errors.Is(err, roster.ErrStudentNotFound), errors.Is(err, roster.ErrAmbiguousStudent):
		return KindStudent
	case errors.As(err, &ue):
		return KindUpload
	case errors.Is(err, dispatch.ErrNotImage):
		return KindAttachment
	case errors.Is(err, batch.ErrInvalidJob):
		return KindInvalidJob
	default:
		return KindInternal
	}
}

// Report converts an outcome into the operator-facing report.
func Report(o *batch.Outcome) models.BatchReport {
	rep := models.BatchReport{
		BatchID:     o.ID.String(),
		Kind:        string(o.Kind),
		State:       string(o.State),
		Source:      o.Source,
		Total:       o.Total,
		Succeeded:   o.Succeeded,
		Failed:      o.Failed,
		Skipped:     o.Skipped,
		Cancelled:   o.Cancelled,
		Diagnostics: diagnostics(o.Diagnostics),
		Results:     make([]models.ResultView, 0, len(o.Results)),
		StartedAt:   o.StartedAt,
		FinishedAt:  o.FinishedAt,
	}
	if !o.FinishedAt.IsZero() {
		rep.DurationMS = o.FinishedAt.Sub(o.StartedAt).Milliseconds()
	}
	if o.Err != nil {
		rep.Error = o.Err.Error()
		rep.ErrorKind = ErrorKind(o.Err)
	}
	if o.Attachment != nil {
		rep.Attachment = &models.Media{
			MediaID:  o.Attachment.ID,
			Provider: o.Attachment.Provider,
			Filename: o.Filename,
			MimeType: o.Attachment.MimeType,
		}
	}
	for _, r := range o.Results {
		view := models.ResultView{
			RecipientID: r.RecipientID,
			Name:        r.Name,
			Phone:       r.Phone,
			Provider:    r.Provider,
			Succeeded:   r.Succeeded,
			StatusCode:  r.StatusCode,
			MessageID:   r.MessageID,
			DurationMS:  r.Duration.Milliseconds(),
		}
		if r.Err != nil {
			view.Error = r.Err.Error()
			view.ErrorKind = string(dispatch.AsSendError(r.Err).Kind)
		}
		rep.Results = append(rep.Results, view)
	}
	return rep
}

// Preview describes a roster without sending anything. Phones are checked
// against prefix so bad numbers show up before the batch.
func Preview(r *roster.Roster, sheets []string, prefix phone.Prefix) models.RosterPreview {
	p := models.RosterPreview{
		Source:      r.Source,
		Sheet:       r.Sheet,
		Sheets:      sheets,
		Subjects:    r.Subjects,
		Students:    make([]models.StudentView, 0, r.Len()),
		Diagnostics: diagnostics(r.Diagnostics),
	}
	for _, s := range r.Students() {
		_, err := prefix.Apply(s.Phone)
		p.Students = append(p.Students, models.StudentView{
			ID:       s.ID,
			Name:     s.Name,
			Phone:    s.Phone,
			Channel:  string(s.Channel),
			Semester: s.Semester,
			Valid:    err == nil,
		})
	}
	return p
}

func diagnostics(d roster.Diagnostics) models.Diagnostics {
	return models.Diagnostics{
		UnmatchedStudents: d.UnmatchedStudents,
		UnmatchedMarks:    d.UnmatchedMarks,
		DuplicateStudents: d.DuplicateStudents,
		DuplicateMarks:    d.DuplicateMarks,
		MissingIDRows:     d.MissingIDRows,
		BlankRows:         d.BlankRows,
		Dropped:           d.Dropped(),
	}
}
