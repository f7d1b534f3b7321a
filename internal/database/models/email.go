package models

import (
	"time"
)

// EmailRecord represents one tracked outgoing message
type EmailRecord struct {
	ID     uint `gorm:"primaryKey" json:"-"`
	UserID uint `gorm:"index;not null" json:"user_id"`

	// ThreadID is the mail client's identifier for the originating
	// message/thread. TrackingID is the token embedded in the pixel URL;
	// it is assigned once at creation and is the only join key the pixel
	// endpoint has.
	ThreadID   string `gorm:"size:255;not null" json:"id"`
	TrackingID string `gorm:"uniqueIndex;size:255;not null" json:"emailId"`

	Subject       string `gorm:"size:500" json:"subject"`
	Recipient     string `gorm:"size:255" json:"to"`
	RecipientName string `gorm:"size:255" json:"toName"`
	Body          string `gorm:"type:text" json:"body"`

	Status           string `gorm:"size:20;default:'sent'" json:"status"`
	HasTrackingPixel bool   `gorm:"default:false" json:"hasTrackingPixel"`

	SentAt       time.Time  `gorm:"index" json:"sentTime"`
	LastUpdateAt time.Time  `json:"lastUpdate"`
	ReadAt       *time.Time `json:"readTime,omitempty"`

	// Engagement counters, advisory rather than exact
	Opens       int        `gorm:"default:0" json:"opens"`
	Clicks      int        `gorm:"default:0" json:"clicks"`
	LastOpenAt  *time.Time `json:"lastOpen,omitempty"`
	LastClickAt *time.Time `json:"lastClick,omitempty"`

	// Captured at send time, consulted by the sender-access classifier
	SenderIP        string `gorm:"size:64" json:"ipAddress"`
	SenderUserAgent string `gorm:"size:500" json:"userAgent"`

	// Captured from the most recent qualifying open
	LastOpenIP        string `gorm:"size:64" json:"lastOpenIp,omitempty"`
	LastOpenUserAgent string `gorm:"size:500" json:"lastOpenUserAgent,omitempty"`

	CampaignID   string `gorm:"size:100" json:"campaignId,omitempty"`
	CampaignName string `gorm:"size:255" json:"campaignName,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EmailStatus represents the delivery/engagement state of a tracked email
type EmailStatus string

const (
	StatusSent      EmailStatus = "sent"
	StatusDelivered EmailStatus = "delivered"
	StatusRead      EmailStatus = "read"
	StatusClicked   EmailStatus = "clicked"
	StatusFailed    EmailStatus = "failed"
)

// IsValid checks if the status is a known state
func (s EmailStatus) IsValid() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead, StatusClicked, StatusFailed:
		return true
	}
	return false
}
