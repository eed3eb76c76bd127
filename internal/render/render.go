// Package render builds message bodies from roster entries.
package render

import (
	"errors"
	"fmt"
	"strings"

	"parent-messenger/internal/roster"
)

// Kind selects the message template.
type Kind string

const (
	IAMarks  Kind = "IA_MARKS"
	Circular Kind = "CIRCULAR_NOTICE"
	FreeText Kind = "FREE_TEXT"
)

// CircularLine is sent with every circular image.
const CircularLine = "Please find the attached circular."

var ErrEmptyText = errors.New("message text is empty")

// ParseKind accepts the wire names and a few short forms.
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(IAMarks), "IA", "MARKS":
		return IAMarks, nil
	case string(Circular), "CIRCULAR":
		return Circular, nil
	case string(FreeText), "TEXT", "MESSAGE":
		return FreeText, nil
	default:
		return "", fmt.Errorf("unknown message kind %q", s)
	}
}

// Input is everything a template may read.
type Input struct {
	Student    roster.Student
	Scores     []roster.Score
	Assessment int    // IA number, IA_MARKS only
	Text       string // caption for circulars, body for free text
}

// Render returns the message body. It has no side effects and the same input
// always yields the same string.
func Render(kind Kind, in Input) (string, error) {
	switch kind {
	case IAMarks:
		return renderMarks(in), nil
	case Circular:
		caption := strings.TrimSpace(in.Text)
		if caption == "" {
			return CircularLine, nil
		}
		return caption + "\n" + CircularLine, nil
	case FreeText:
		// Spreadsheet content never reaches the text, so there is nothing to
		// interpolate.
		if strings.TrimSpace(in.Text) == "" {
			return "", ErrEmptyText
		}
		return in.Text, nil
	default:
		return "", fmt.Errorf("unknown message kind %q", kind)
	}
}

func renderMarks(in Input) string {
	var b strings.Builder
	b.WriteString("Dear Parent,\n")
	fmt.Fprintf(&b, "This message is regarding the I.A. %d marks of your ward, %s.\n", in.Assessment, in.Student.Name)
	for i, s := range in.Scores {
		if i > 0 {
			b.WriteByte('\n')
		}
		v := s.Value
		if v == "" {
			v = "-"
		}
		fmt.Fprintf(&b, "%s: %s", s.Subject, v)
	}
	b.WriteString("\nThank you.")
	return b.String()
}
