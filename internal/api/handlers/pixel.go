package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/CodeXGautam/mail-tracker/internal/logstore"
	"github.com/CodeXGautam/mail-tracker/internal/metrics"
	"github.com/CodeXGautam/mail-tracker/internal/services"
	"github.com/CodeXGautam/mail-tracker/internal/tracking"
	"github.com/gin-gonic/gin"
)

// PixelHandler serves the tracking pixel and drives the ingestion
// pipeline behind it
type PixelHandler struct {
	emails *services.EmailService
	logs   *logstore.Store
	logger *slog.Logger
}

// NewPixelHandler creates a new PixelHandler instance
func NewPixelHandler(emails *services.EmailService, logs *logstore.Store, logger *slog.Logger) *PixelHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PixelHandler{emails: emails, logs: logs, logger: logger}
}

// Serve handles GET /pixel.png. Whenever a tracking id is present the
// response is the fixed 1x1 GIF: mail clients that fail to load the
// pixel may retry or flag the message as broken, so tracking is
// best-effort side work and the image is the one thing that must not
// break. No partial image bytes are ever written.
func (h *PixelHandler) Serve(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("pixel handler panicked", "error", r)
			if !c.Writer.Written() {
				c.String(http.StatusInternalServerError, "Internal Server Error")
			}
		}
	}()

	emailID := c.Query("emailId")
	if emailID == "" {
		c.String(http.StatusBadRequest, "Missing emailId parameter")
		return
	}
	metrics.PixelRequests.Inc()

	ip := c.ClientIP()
	userAgent := c.GetHeader("User-Agent")
	referer := c.GetHeader("Referer")

	entry := logstore.Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		EmailID:   emailID,
		IP:        ip,
		UserAgent: userAgent,
		Referer:   referer,
		Device:    tracking.DeriveDevice(userAgent),
	}
	if recipientID := c.Query("recipientId"); recipientID != "" {
		entry.RecipientID = &recipientID
	}
	if country := c.GetHeader("CF-IPCountry"); country != "" {
		entry.Country = &country
	}

	// Lookup is store-availability-dependent; a miss classifies as
	// recipient access and the hit is still logged
	record, err := h.emails.FindByTrackingID(emailID)
	if err != nil {
		record = nil
		h.logger.Debug("tracking id lookup failed", "emailId", emailID, "error", err)
	}

	if tracking.IsSenderAccess(record, ip, userAgent, referer) {
		metrics.SenderAccesses.Inc()
		h.logger.Info("sender access, not counting open", "emailId", emailID, "ip", ip)
	} else {
		now := time.Now()
		if err := h.emails.MarkOpened(emailID, services.OpenOptions{IP: ip, UserAgent: userAgent, At: now}); err != nil {
			h.logger.Warn("mark opened failed, retrying simplified update", "emailId", emailID, "error", err)
			if err := h.emails.MarkOpenedSimple(emailID, now); err != nil {
				h.logger.Warn("simplified open update failed", "emailId", emailID, "error", err)
			}
		} else {
			metrics.OpensRecorded.Inc()
		}
	}

	// Logging must not be blocked by, or roll back on, anything above
	if err := h.logs.Append(entry); err != nil {
		h.logger.Error("failed to append access log entry", "emailId", emailID, "error", err)
	}

	c.Header("Content-Length", strconv.Itoa(len(tracking.Pixel)))
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, "image/gif", tracking.Pixel)
}
