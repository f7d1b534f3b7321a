package services

import (
	"errors"
	"log/slog"
	"time"

	"github.com/CodeXGautam/mail-tracker/internal/database/models"
	"github.com/CodeXGautam/mail-tracker/internal/logstore"
	"github.com/CodeXGautam/mail-tracker/internal/metrics"
	"gorm.io/gorm"
)

var (
	// ErrMissingFields indicates a full upsert without the required
	// tracking id, thread id, or tracking-pixel flag
	ErrMissingFields = errors.New("missing tracking id, thread id, or tracking pixel flag")
	// ErrRecordNotFound indicates no email record matched
	ErrRecordNotFound = errors.New("email record not found")
)

// Fallback entry types written to the access log when the database is down
const (
	entryTypeEmailRecord  = "email_record"
	entryTypeStatusUpdate = "status_update"
)

// EmailInput is the full record payload pushed by the extension at send time
type EmailInput struct {
	ThreadID         string     `json:"id"`
	TrackingID       string     `json:"emailId"`
	Subject          string     `json:"subject"`
	To               string     `json:"to"`
	ToName           string     `json:"toName"`
	Body             string     `json:"body"`
	Status           string     `json:"status"`
	HasTrackingPixel bool       `json:"hasTrackingPixel"`
	SentAt           *time.Time `json:"sentTime"`
	LastUpdateAt     *time.Time `json:"lastUpdate"`
	SenderIP         string     `json:"ipAddress"`
	SenderUserAgent  string     `json:"userAgent"`
	CampaignID       string     `json:"campaignId"`
	CampaignName     string     `json:"campaignName"`
}

// OpenOptions carries the request metadata recorded with an open
type OpenOptions struct {
	IP        string
	UserAgent string
	At        time.Time
}

// EmailService is the email record store: CRUD-plus-upsert over tracked
// emails, owner-scoped except where the pixel path requires otherwise.
// With the database down, writes degrade to typed entries in the access
// log and report success: tracking data is non-critical, so "store
// somewhere" beats "reject".
type EmailService struct {
	db     *gorm.DB
	logs   *logstore.Store
	logger *slog.Logger
}

// NewEmailService creates a new EmailService instance
func NewEmailService(db *gorm.DB, logs *logstore.Store, logger *slog.Logger) *EmailService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailService{db: db, logs: logs, logger: logger}
}

// Available reports whether the primary store is reachable
func (s *EmailService) Available() bool {
	return s.db != nil
}

// UpsertFull inserts or fully replaces the owner's record for the given
// tracking id. Rejects payloads missing the tracking id, thread id, or
// tracking-pixel flag; those are only ever stored as raw log fallback.
func (s *EmailService) UpsertFull(ownerID uint, in EmailInput) error {
	if in.TrackingID == "" || in.ThreadID == "" || !in.HasTrackingPixel {
		return ErrMissingFields
	}

	now := time.Now()
	sentAt := now
	if in.SentAt != nil {
		sentAt = *in.SentAt
	}
	lastUpdate := now
	if in.LastUpdateAt != nil {
		lastUpdate = *in.LastUpdateAt
	}
	status := in.Status
	if !models.EmailStatus(status).IsValid() {
		status = string(models.StatusSent)
	}

	if s.db == nil {
		return s.fallback(entryTypeEmailRecord, ownerID, in.TrackingID, map[string]any{
			"record": in,
		})
	}

	var existing models.EmailRecord
	err := s.db.Where("tracking_id = ? AND user_id = ?", in.TrackingID, ownerID).First(&existing).Error
	switch {
	case err == nil:
		existing.ThreadID = in.ThreadID
		existing.Subject = in.Subject
		existing.Recipient = in.To
		existing.RecipientName = in.ToName
		existing.Body = in.Body
		existing.Status = status
		existing.HasTrackingPixel = true
		existing.SentAt = sentAt
		existing.LastUpdateAt = lastUpdate
		existing.SenderIP = in.SenderIP
		existing.SenderUserAgent = in.SenderUserAgent
		existing.CampaignID = in.CampaignID
		existing.CampaignName = in.CampaignName
		if err := s.db.Save(&existing).Error; err != nil {
			return s.fallback(entryTypeEmailRecord, ownerID, in.TrackingID, map[string]any{"record": in})
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		record := models.EmailRecord{
			UserID:           ownerID,
			ThreadID:         in.ThreadID,
			TrackingID:       in.TrackingID,
			Subject:          in.Subject,
			Recipient:        in.To,
			RecipientName:    in.ToName,
			Body:             in.Body,
			Status:           status,
			HasTrackingPixel: true,
			SentAt:           sentAt,
			LastUpdateAt:     lastUpdate,
			SenderIP:         in.SenderIP,
			SenderUserAgent:  in.SenderUserAgent,
			CampaignID:       in.CampaignID,
			CampaignName:     in.CampaignName,
		}
		if err := s.db.Create(&record).Error; err != nil {
			return s.fallback(entryTypeEmailRecord, ownerID, in.TrackingID, map[string]any{"record": in})
		}
		return nil
	default:
		return s.fallback(entryTypeEmailRecord, ownerID, in.TrackingID, map[string]any{"record": in})
	}
}

// UpsertStatus patches only the status and update timestamp on an
// owner-scoped match. Silently no-ops when nothing matches, tolerating
// stale or duplicate client pushes from a previous send.
func (s *EmailService) UpsertStatus(trackingID string, ownerID uint, status string, lastUpdate time.Time) error {
	if s.db == nil {
		return s.fallback(entryTypeStatusUpdate, ownerID, trackingID, map[string]any{
			"status":     status,
			"lastUpdate": lastUpdate.UTC().Format(time.RFC3339),
		})
	}

	updates := map[string]any{
		"status":         status,
		"last_update_at": lastUpdate,
	}
	err := s.db.Model(&models.EmailRecord{}).
		Where("tracking_id = ? AND user_id = ?", trackingID, ownerID).
		Updates(updates).Error
	if err != nil {
		return s.fallback(entryTypeStatusUpdate, ownerID, trackingID, map[string]any{
			"status":     status,
			"lastUpdate": lastUpdate.UTC().Format(time.RFC3339),
		})
	}
	return nil
}

// FindByTrackingID looks a record up by tracking id alone. The pixel
// endpoint carries no caller identity, so this is owner-agnostic.
func (s *EmailService) FindByTrackingID(trackingID string) (*models.EmailRecord, error) {
	if s.db == nil {
		return nil, ErrStoreUnavailable
	}
	var record models.EmailRecord
	if err := s.db.Where("tracking_id = ?", trackingID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindForOwner resolves a record by tracking id within one owner's
// scope. A miss is indistinguishable from a record owned by someone
// else, so existence never leaks across owners.
func (s *EmailService) FindForOwner(trackingID string, ownerID uint) (*models.EmailRecord, error) {
	if s.db == nil {
		return nil, ErrStoreUnavailable
	}
	var record models.EmailRecord
	if err := s.db.Where("tracking_id = ? AND user_id = ?", trackingID, ownerID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

// MarkOpened records a qualifying open: status flips to read unless the
// record already progressed to clicked, the open counter increments,
// and the request metadata is stamped. Owner-agnostic by design, since
// the recipient is never an authenticated party.
func (s *EmailService) MarkOpened(trackingID string, opts OpenOptions) error {
	if s.db == nil {
		return ErrStoreUnavailable
	}
	record, err := s.FindByTrackingID(trackingID)
	if err != nil {
		return err
	}

	at := opts.At
	if at.IsZero() {
		at = time.Now()
	}

	if record.Status != string(models.StatusClicked) {
		record.Status = string(models.StatusRead)
	}
	record.Opens++
	record.LastOpenAt = &at
	record.LastUpdateAt = at
	if record.ReadAt == nil {
		record.ReadAt = &at
	}
	record.LastOpenIP = opts.IP
	record.LastOpenUserAgent = opts.UserAgent

	return s.db.Save(record).Error
}

// MarkOpenedSimple is the one-shot simplified update attempted when
// MarkOpened fails: a direct status/timestamp patch with no counter
// arithmetic. Missing records are not an error here.
func (s *EmailService) MarkOpenedSimple(trackingID string, at time.Time) error {
	if s.db == nil {
		return ErrStoreUnavailable
	}
	return s.db.Model(&models.EmailRecord{}).
		Where("tracking_id = ? AND status <> ?", trackingID, string(models.StatusClicked)).
		Updates(map[string]any{
			"status":         string(models.StatusRead),
			"last_update_at": at,
		}).Error
}

// ListForOwner returns all of one owner's records, newest sent first
func (s *EmailService) ListForOwner(ownerID uint) ([]models.EmailRecord, error) {
	if s.db == nil {
		return nil, ErrStoreUnavailable
	}
	var records []models.EmailRecord
	if err := s.db.Where("user_id = ?", ownerID).Order("sent_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ClearAll bulk-deletes every record, unscoped. The only deletion path.
func (s *EmailService) ClearAll() error {
	if s.db == nil {
		return nil
	}
	return s.db.Where("1 = 1").Delete(&models.EmailRecord{}).Error
}

// fallback diverts a failed or degraded write to the access log and
// reports success to the caller
func (s *EmailService) fallback(entryType string, ownerID uint, trackingID string, payload map[string]any) error {
	entry := map[string]any{
		"type":      entryType,
		"userId":    ownerID,
		"emailId":   trackingID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range payload {
		entry[k] = v
	}
	if err := s.logs.AppendRaw(entry); err != nil {
		s.logger.Error("log fallback failed", "type", entryType, "emailId", trackingID, "error", err)
		return nil
	}
	metrics.StoreFallbacks.Inc()
	s.logger.Warn("record write diverted to log fallback", "type", entryType, "emailId", trackingID)
	return nil
}
