package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/CodeXGautam/mail-tracker/internal/logstore"
	"github.com/gin-gonic/gin"
)

// LogsHandler exposes the access log for the dashboard
type LogsHandler struct {
	logs   *logstore.Store
	logger *slog.Logger
}

// NewLogsHandler creates a new LogsHandler instance
func NewLogsHandler(logs *logstore.Store, logger *slog.Logger) *LogsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogsHandler{logs: logs, logger: logger}
}

// List handles GET /logs
func (h *LogsHandler) List(c *gin.Context) {
	entries, err := h.logs.ListAll()
	if err != nil {
		h.logger.Error("failed to read access log", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read logs"})
		return
	}
	if entries == nil {
		entries = []json.RawMessage{}
	}
	c.JSON(http.StatusOK, entries)
}

// Clear handles DELETE /logs
func (h *LogsHandler) Clear(c *gin.Context) {
	if err := h.logs.Clear(); err != nil {
		h.logger.Error("failed to clear access log", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logs cleared"})
}
