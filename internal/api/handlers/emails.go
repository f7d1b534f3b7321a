package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/CodeXGautam/mail-tracker/internal/api/middleware"
	"github.com/CodeXGautam/mail-tracker/internal/database/models"
	"github.com/CodeXGautam/mail-tracker/internal/logstore"
	"github.com/CodeXGautam/mail-tracker/internal/services"
	"github.com/gin-gonic/gin"
)

// EmailsHandler handles the tracked-email record endpoints
type EmailsHandler struct {
	emails *services.EmailService
	logs   *logstore.Store
	logger *slog.Logger
}

// NewEmailsHandler creates a new EmailsHandler instance
func NewEmailsHandler(emails *services.EmailService, logs *logstore.Store, logger *slog.Logger) *EmailsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailsHandler{emails: emails, logs: logs, logger: logger}
}

// upsertRequest accepts either a full record or a status-only patch.
// A body carrying a thread id and the tracking-pixel flag is a full
// record; anything else with a tracking id is treated as a patch.
type upsertRequest struct {
	services.EmailInput
}

// Upsert handles POST /emails
func (h *EmailsHandler) Upsert(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
		return
	}

	var req upsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.TrackingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing email data or id"})
		return
	}

	if req.ThreadID == "" && !req.HasTrackingPixel {
		// Status-only patch; a miss is a silent no-op so stale pushes
		// from a previous send never error
		lastUpdate := time.Now()
		if req.LastUpdateAt != nil {
			lastUpdate = *req.LastUpdateAt
		}
		if err := h.emails.UpsertStatus(req.TrackingID, user.ID, req.Status, lastUpdate); err != nil {
			h.logger.Error("status upsert failed", "emailId", req.TrackingID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store email"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	if err := h.emails.UpsertFull(user.ID, req.EmailInput); err != nil {
		if err == services.ErrMissingFields {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing email data or id"})
			return
		}
		h.logger.Error("email upsert failed", "emailId", req.TrackingID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store email"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// List handles GET /emails, scoped to the caller's records. With the
// database down it degrades to the raw log contents so the dashboard
// still has something to show.
func (h *EmailsHandler) List(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
		return
	}

	records, err := h.emails.ListForOwner(user.ID)
	if err != nil {
		if err == services.ErrStoreUnavailable {
			entries, logErr := h.logs.ListAll()
			if logErr != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read emails"})
				return
			}
			if entries == nil {
				entries = []json.RawMessage{}
			}
			c.JSON(http.StatusOK, entries)
			return
		}
		h.logger.Error("email list failed", "userId", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read emails"})
		return
	}
	if records == nil {
		records = []models.EmailRecord{}
	}
	c.JSON(http.StatusOK, records)
}

// Get handles GET /emails/:emailId. Not-found and not-owned are the
// same 404 so record existence never leaks across owners.
func (h *EmailsHandler) Get(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
		return
	}

	record, err := h.emails.FindForOwner(c.Param("emailId"), user.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Email not found or access denied"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// Clear handles DELETE /emails, the explicit unscoped bulk clear
func (h *EmailsHandler) Clear(c *gin.Context) {
	if err := h.emails.ClearAll(); err != nil {
		h.logger.Error("email bulk clear failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear emails"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Emails cleared"})
}
