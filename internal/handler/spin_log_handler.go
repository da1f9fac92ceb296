package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/lucky-wheel/internal/service"
)

// SpinLog is the spin statistics service as seen by HTTP
type SpinLog interface {
	Stats(ctx context.Context) (*service.SpinStats, error)
	Clear(ctx context.Context) error
	ExportXLSX(ctx context.Context, w io.Writer) error
}

// SpinLogHandler serves /api/spin-log
type SpinLogHandler struct {
	spinLog SpinLog
}

// NewSpinLogHandler creates the handler
func NewSpinLogHandler(spinLog SpinLog) *SpinLogHandler {
	return &SpinLogHandler{spinLog: spinLog}
}

// Stats returns the fairness summary
func (h *SpinLogHandler) Stats(c *gin.Context) {
	stats, err := h.spinLog.Stats(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("[SpinLogHandler] Failed to compute statistics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Clear deletes all statistics
func (h *SpinLogHandler) Clear(c *gin.Context) {
	if err := h.spinLog.Clear(c.Request.Context()); err != nil {
		log.Error().Err(err).Msg("[SpinLogHandler] Failed to clear statistics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Statistics cleared."})
}

// Export streams the statistics as an XLSX workbook
func (h *SpinLogHandler) Export(c *gin.Context) {
	// Built in memory first so a failure can still answer with JSON.
	var buf bytes.Buffer
	if err := h.spinLog.ExportXLSX(c.Request.Context(), &buf); err != nil {
		log.Error().Err(err).Msg("[SpinLogHandler] Failed to build export")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	filename := fmt.Sprintf("spin_statistics_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
