package domain

import "time"

// Comment kinds
const (
	CommentKindComment = "comment"
	CommentKindTribute = "tribute"
)

// Comment is a condolence comment or a tribute attached to one obituary.
// Comments are moderated; tributes are visible immediately.
type Comment struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ObituaryID   uint64    `gorm:"not null;index" json:"obituary_id"`
	Kind         string    `gorm:"size:20;not null" json:"kind"`
	AuthorUserID string    `gorm:"size:64" json:"-"`
	AuthorName   string    `gorm:"size:200;not null" json:"author_name"`
	AuthorEmail  string    `gorm:"size:255" json:"-"`
	AuthorPhone  string    `gorm:"size:50" json:"-"`
	Relationship string    `gorm:"size:100" json:"relationship,omitempty"`
	Message      string    `gorm:"type:text;not null" json:"message"`
	Approved     bool      `gorm:"not null;index" json:"approved"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the table name
func (Comment) TableName() string {
	return "obituary_comments"
}

// CreateCommentRequest is the public comment/tribute form
type CreateCommentRequest struct {
	Kind         string `json:"kind" binding:"omitempty,oneof=comment tribute"`
	AuthorName   string `json:"author_name" binding:"required,notblank,max=200"`
	AuthorEmail  string `json:"author_email" binding:"omitempty,email"`
	AuthorPhone  string `json:"author_phone" binding:"max=50"`
	Relationship string `json:"relationship" binding:"max=100"`
	Message      string `json:"message" binding:"required,notblank,max=5000"`
}
