package domain

import "time"

// Notification types
const (
	NotificationObituaryPublished    = "obituary_published"
	NotificationObituaryRejected     = "obituary_rejected"
	NotificationObituaryMemorialized = "obituary_memorialized"
	NotificationObituaryArchived     = "obituary_archived"
	NotificationRenewalEligible      = "renewal_eligible"
)

// Notification is an entry in a user's notification queue.
// Delivery channels are handled elsewhere; SentAt is set by the deliverer.
type Notification struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       string     `gorm:"size:64;not null;index" json:"user_id"`
	Type         string     `gorm:"size:50;not null" json:"type"`
	ObituaryID   uint64     `gorm:"index" json:"obituary_id,omitempty"`
	Message      string     `gorm:"type:text" json:"message"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	ReadAt       *time.Time `json:"read_at,omitempty"`
	// DedupeKey makes enqueueing idempotent; nil means no dedupe
	DedupeKey *string   `gorm:"size:200;uniqueIndex" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name
func (Notification) TableName() string {
	return "notifications"
}

// NotificationListResponse represents notification list response
type NotificationListResponse struct {
	Items       []Notification `json:"items"`
	Total       int64          `json:"total"`
	UnreadCount int64          `json:"unread_count"`
	Page        int            `json:"page"`
	Limit       int            `json:"limit"`
}
