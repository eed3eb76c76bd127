package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"parent-messenger/internal/app"
	"parent-messenger/internal/batch"
	"parent-messenger/internal/dispatch"
	"parent-messenger/internal/render"
	"parent-messenger/internal/roster"
)

type sheetFlags struct {
	students string
	semester int
	only     []string
}

func (f *sheetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.students, "students", "", "student roster (.xlsx, .csv)")
	cmd.Flags().IntVar(&f.semester, "semester", 0, `read the "sem N" sheet of a workbook`)
	cmd.Flags().StringSliceVar(&f.only, "only", nil, "send only to these USNs (re-run a failed subset)")
	_ = cmd.MarkFlagRequired("students")
}

func (f *sheetFlags) sheet() app.Sheet {
	s := app.Sheet{Name: f.students, Path: f.students}
	if f.semester > 0 && roster.IsWorkbook(f.students) {
		s.Sheet = roster.SemesterSheet(f.semester)
	}
	return s
}

func (c *cli) iaMarksCmd() *cobra.Command {
	var (
		sf    sheetFlags
		marks string
		ia    int
	)
	cmd := &cobra.Command{
		Use:     "ia-marks",
		Short:   "Send internal-assessment marks to every parent",
		Example: "  notify ia-marks --students sem3.xlsx --semester 3 --marks marks.xlsx --ia 2",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := app.Sheet{Name: marks, Path: marks}
			if roster.IsWorkbook(marks) {
				m.Sheet = roster.AssessmentSheet(ia)
			}
			return c.send(cmd.Context(), batch.Job{
				Kind:       render.IAMarks,
				Assessment: ia,
				Load:       app.MarksLoader(sf.sheet(), m, sf.only),
			})
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVar(&marks, "marks", "", `marks workbook; the "IA N" sheet is used`)
	cmd.Flags().IntVar(&ia, "ia", 0, "internal assessment number")
	_ = cmd.MarkFlagRequired("marks")
	_ = cmd.MarkFlagRequired("ia")
	return cmd
}

func (c *cli) circularCmd() *cobra.Command {
	var (
		sf      sheetFlags
		image   string
		caption string
	)
	cmd := &cobra.Command{
		Use:     "circular",
		Short:   "Send a circular image to every parent",
		Example: "  notify circular --students sem3.xlsx --image circular.png --caption \"Sports day on Friday\"",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(image)
			if err != nil {
				return err
			}
			att := dispatch.NewAttachment(data, image)
			if err := att.RequireImage(); err != nil {
				return err
			}
			return c.send(cmd.Context(), batch.Job{
				Kind:       render.Circular,
				Text:       caption,
				Attachment: &att,
				Load:       app.StudentsLoader(sf.sheet(), sf.only),
			})
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVar(&image, "image", "", "circular image (jpg or png)")
	cmd.Flags().StringVar(&caption, "caption", "", "text sent above the circular line")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func (c *cli) messageCmd() *cobra.Command {
	var (
		sf   sheetFlags
		sel  roster.Selector
		text string
	)
	cmd := &cobra.Command{
		Use:     "message",
		Short:   "Send a free-text note to one parent, found by USN or name",
		Example: "  notify message --students sem3.xlsx --usn 1AB21CS001 --text \"Please meet the class teacher.\"",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.send(cmd.Context(), batch.Job{
				Kind: render.FreeText,
				Text: text,
				Load: app.StudentLoader(sf.sheet(), sel),
			})
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVar(&sel.ID, "usn", "", "student USN")
	cmd.Flags().StringVar(&sel.Name, "name", "", "student name")
	cmd.Flags().StringVar(&text, "text", "", "message text")
	cmd.MarkFlagsOneRequired("usn", "name")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

// send runs job until done or until SIGINT/SIGTERM, which stops it between
// recipients.
func (c *cli) send(ctx context.Context, job batch.Job) error {
	a, err := c.newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	defer a.Logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	o, err := a.Dispatcher.Run(ctx, job)
	if err != nil {
		if o != nil && len(o.Results) > 0 {
			_ = c.printReport(app.Report(o))
		}
		return fmt.Errorf("%s: %w", app.ErrorKind(err), err)
	}
	if err := c.printReport(app.Report(o)); err != nil {
		return err
	}
	if o.Failed > 0 || len(o.Skipped) > 0 {
		return errIncomplete
	}
	return nil
}
