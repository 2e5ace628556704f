package domain

import "time"

// AuditLog records one administrative action
type AuditLog struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorID    string    `gorm:"size:64;not null;index" json:"actor_id"`
	Action     string    `gorm:"size:50;not null;index" json:"action"`
	Resource   string    `gorm:"size:50;not null" json:"resource"`
	ResourceID string    `gorm:"size:64" json:"resource_id"`
	Status     int       `json:"status"`
	ClientIP   string    `gorm:"size:64" json:"client_ip"`
	UserAgent  string    `gorm:"size:500" json:"user_agent"`
	RequestID  string    `gorm:"size:64" json:"request_id"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// TableName returns the table name
func (AuditLog) TableName() string {
	return "audit_logs"
}
