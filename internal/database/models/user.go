package models

import (
	"time"
)

// User represents an account that owns tracked emails
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Email        string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name         string `gorm:"size:100" json:"name"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	// APIKey identifies the extension client. Assigned at creation and
	// replaceable on demand; temp accounts provisioned while the database
	// was down live in the access log instead.
	APIKey          string     `gorm:"uniqueIndex;size:128" json:"api_key,omitempty"`
	IsActive        bool       `gorm:"default:true" json:"is_active"`
	TrackingEnabled bool       `gorm:"default:true" json:"tracking_enabled"`
	NotifyOnOpen    bool       `gorm:"default:true" json:"notify_on_open"`
	DailyReports    bool       `gorm:"default:false" json:"daily_reports"`
	LoginCount      int        `gorm:"default:0" json:"login_count"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// Relations
	Emails []EmailRecord `gorm:"foreignKey:UserID" json:"emails,omitempty"`
}
