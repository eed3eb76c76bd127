package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parent-messenger/internal/app"
	"parent-messenger/internal/roster"
)

// PreviewRoster handles POST /api/roster/preview. With a marks file and an
// IA number it previews the joined batch instead.
func (h *DispatchHandler) PreviewRoster(c *gin.Context) {
	students, err := studentSheet(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	sheets, err := students.SheetNames()
	if err != nil {
		h.fail(c, err)
		return
	}

	var r *roster.Roster
	if _, err := c.FormFile("marks"); err == nil {
		ia, err := formInt(c, "ia", true)
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
		r, err = app.MarksLoader(students, marks, nil)(c.Request.Context())
		if err != nil {
			h.fail(c, err)
			return
		}
	} else {
		r, err = students.Students(false)
		if err != nil {
			h.fail(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, app.Preview(r, sheets, h.App.Dispatcher.Prefix))
}
