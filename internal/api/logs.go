package api

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"parent-messenger/internal/database"
)

type LogHandler struct {
	Store *database.LogStore
}

func NewLogHandler(store *database.LogStore) *LogHandler {
	return &LogHandler{Store: store}
}

func (h *LogHandler) enabled(c *gin.Context) bool {
	if h.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dispatch log is disabled (set DB_DRIVER)"})
		return false
	}
	return true
}

func filterFrom(c *gin.Context) database.Filter {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "500"))
	failed, _ := strconv.ParseBool(c.Query("failed"))
	return database.Filter{BatchID: c.Query("batch_id"), FailedOnly: failed, Limit: limit}
}

// GetDispatches lists logged sends, newest first.
func (h *LogHandler) GetDispatches(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	logs, err := h.Store.List(c.Request.Context(), filterFrom(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, logs)
}

// GetBatches lists recent batch summaries.
func (h *LogHandler) GetBatches(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	batches, err := h.Store.Batches(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, batches)
}

// ExportDispatches streams the filtered log as CSV.
func (h *LogHandler) ExportDispatches(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	f := filterFrom(c)
	if c.Query("limit") == "" {
		f.Limit = 0
	}
	logs, err := h.Store.List(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=dispatches.csv")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"Batch ID", "Kind", "USN", "Name", "Phone", "Provider", "Succeeded", "Status Code", "Message ID", "Error Kind", "Error", "Sent At"})
	for _, l := range logs {
		_ = w.Write([]string{
			l.BatchID,
			l.Kind,
			l.RecipientID,
			l.Name,
			l.Phone,
			l.Provider,
			strconv.FormatBool(l.Succeeded),
			strconv.Itoa(l.StatusCode),
			l.MessageID,
			l.ErrorKind,
			l.Error,
			l.CreatedAt.Format(time.RFC3339),
		})
	}
	w.Flush()
}
