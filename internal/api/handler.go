package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"parent-messenger/internal/app"
	"parent-messenger/internal/batch"
	"parent-messenger/internal/dispatch"
	"parent-messenger/internal/render"
	"parent-messenger/internal/roster"
)

var errBadForm = errors.New("invalid form")

type DispatchHandler struct {
	App *app.App
}

func NewDispatchHandler(a *app.App) *DispatchHandler {
	return &DispatchHandler{App: a}
}

// SendIAMarks handles POST /api/ia-marks.
//
// Form: students (file), marks (file), ia, optional semester and only.
func (h *DispatchHandler) SendIAMarks(c *gin.Context) {
	ia, err := formInt(c, "ia", true)
	if err != nil {
		h.fail(c, err)
		return
	}
	students, err := studentSheet(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	marks, err := formSheet(c, "marks")
	if err != nil {
		h.fail(c, err)
		return
	}
	if roster.IsWorkbook(marks.Name) {
		marks.Sheet = roster.AssessmentSheet(ia)
	}

	h.run(c, batch.Job{
		Kind:       render.IAMarks,
		Assessment: ia,
		Load:       app.MarksLoader(students, marks, formList(c, "only")),
	})
}

// SendCircular handles POST /api/circular.
//
// Form: students (file), image (file), optional caption, semester and only.
func (h *DispatchHandler) SendCircular(c *gin.Context) {
	students, err := studentSheet(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	data, filename, err := formFile(c, "image")
	if err != nil {
		h.fail(c, err)
		return
	}
	att := dispatch.NewAttachment(data, filename)
	if err := att.RequireImage(); err != nil {
		h.fail(c, err)
		return
	}

	h.run(c, batch.Job{
		Kind:       render.Circular,
		Text:       c.PostForm("caption"),
		Attachment: &att,
		Load:       app.StudentsLoader(students, formList(c, "only")),
	})
}

// SendMessage handles POST /api/message: free text to one parent, picked by
// USN or by student name.
func (h *DispatchHandler) SendMessage(c *gin.Context) {
	students, err := studentSheet(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	sel := roster.Selector{ID: c.PostForm("usn"), Name: c.PostForm("name")}

	h.run(c, batch.Job{
		Kind: render.FreeText,
		Text: c.PostForm("text"),
		Load: app.StudentLoader(students, sel),
	})
}

func (h *DispatchHandler) run(c *gin.Context, job batch.Job) {
	o, err := h.App.Dispatcher.Run(c.Request.Context(), job)
	if err != nil {
		kind := app.ErrorKind(err)
		h.App.Logger.Warn("Batch rejected", zap.String("error_kind", kind), zap.Error(err))
		rep := app.Report(o)
		c.JSON(statusFor(kind), gin.H{"error": err.Error(), "error_kind": kind, "report": rep})
		return
	}
	c.JSON(http.StatusOK, app.Report(o))
}

func (h *DispatchHandler) fail(c *gin.Context, err error) {
	kind := app.ErrorKind(err)
	if errors.Is(err, errBadForm) {
		kind = app.KindInvalidJob
	}
	c.JSON(statusFor(kind), gin.H{"error": err.Error(), "error_kind": kind})
}

func statusFor(kind string) int {
	switch kind {
	case app.KindUpload:
		return http.StatusBadGateway
	case app.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// studentSheet reads the "students" upload; workbooks use the "sem N" sheet
// when a semester is given.
func studentSheet(c *gin.Context) (app.Sheet, error) {
	s, err := formSheet(c, "students")
	if err != nil {
		return s, err
	}
	sem, err := formInt(c, "semester", false)
	if err != nil {
		return s, err
	}
	if sem > 0 && roster.IsWorkbook(s.Name) {
		s.Sheet = roster.SemesterSheet(sem)
	}
	return s, nil
}

func formSheet(c *gin.Context, field string) (app.Sheet, error) {
	data, filename, err := formFile(c, field)
	if err != nil {
		return app.Sheet{}, err
	}
	if !roster.IsSpreadsheet(filename) {
		return app.Sheet{}, &roster.ParseError{Source: filename, Err: roster.ErrUnsupportedFormat}
	}
	return app.Sheet{Name: filename, Data: data}, nil
}

func formFile(c *gin.Context, field string) ([]byte, string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s file is required", errBadForm, field)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return data, fh.Filename, nil
}

func formInt(c *gin.Context, field string, required bool) (int, error) {
	v := strings.TrimSpace(c.PostForm(field))
	if v == "" {
		if required {
			return 0, fmt.Errorf("%w: %s is required", errBadForm, field)
		}
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive number", errBadForm, field)
	}
	return n, nil
}

// formList accepts repeated fields and comma separated values.
func formList(c *gin.Context, field string) []string {
	var out []string
	for _, v := range c.PostFormArray(field) {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
