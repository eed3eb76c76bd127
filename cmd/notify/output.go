package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"parent-messenger/pkg/models"
)

func (c *cli) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) printReport(rep models.BatchReport) error {
	if c.jsonOut {
		return c.printJSON(rep)
	}

	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, r := range rep.Results {
		status := "sent"
		detail := r.MessageID
		if !r.Succeeded {
			status = "FAILED"
			detail = r.ErrorKind + ": " + r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.RecipientID, r.Name, r.Phone, status, detail)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n%s batch %s: %s, %d of %d sent, %d failed\n",
		rep.Kind, rep.BatchID, rep.State, rep.Succeeded, rep.Total, rep.Failed)
	if len(rep.Skipped) > 0 {
		fmt.Fprintf(c.out, "skipped after cancel: %s\n", strings.Join(rep.Skipped, ", "))
	}
	c.printDiagnostics(rep.Diagnostics)
	return nil
}

func (c *cli) printPreview(p models.RosterPreview) error {
	if c.jsonOut {
		return c.printJSON(p)
	}

	fmt.Fprint(c.out, p.Source)
	if p.Sheet != "" {
		fmt.Fprintf(c.out, " [%s]", p.Sheet)
	}
	fmt.Fprintf(c.out, ": %d students\n", len(p.Students))
	if len(p.Sheets) > 0 {
		fmt.Fprintf(c.out, "sheets: %s\n", strings.Join(p.Sheets, ", "))
	}
	if len(p.Subjects) > 0 {
		fmt.Fprintf(c.out, "subjects: %s\n", strings.Join(p.Subjects, ", "))
	}

	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, s := range p.Students {
		mark := ""
		if !s.Valid {
			mark = "bad phone"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Phone, s.Channel, mark)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	c.printDiagnostics(p.Diagnostics)
	return nil
}

func (c *cli) printDiagnostics(d models.Diagnostics) {
	lines := []struct {
		label string
		ids   []string
	}{
		{"students without marks", d.UnmatchedStudents},
		{"marks without a student", d.UnmatchedMarks},
		{"duplicate students", d.DuplicateStudents},
		{"duplicate marks", d.DuplicateMarks},
	}
	for _, l := range lines {
		if len(l.ids) > 0 {
			fmt.Fprintf(c.out, "%s: %s\n", l.label, strings.Join(l.ids, ", "))
		}
	}
	if n := len(d.MissingIDRows); n > 0 {
		fmt.Fprintf(c.out, "rows without a USN: %d\n", n)
	}
}

func joinOr(s []string, empty string) string {
	if len(s) == 0 {
		return empty
	}
	return strings.Join(s, ", ")
}
