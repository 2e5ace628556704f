package repository

import (
	"context"

	"github.com/remembrance/memorial-backend/internal/domain"
	"gorm.io/gorm"
)

// AuditFilter narrows an audit log listing. Empty fields match everything.
type AuditFilter struct {
	ActorID  string
	Action   string
	Resource string
	Page     int
	Limit    int
}

// AuditRepository stores administrative audit entries
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record writes one entry
func (r *AuditRepository) Record(ctx context.Context, entry *domain.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// List returns entries newest first
func (r *AuditRepository) List(ctx context.Context, filter AuditFilter) ([]domain.AuditLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.AuditLog{})
	if filter.ActorID != "" {
		query = query.Where("actor_id = ?", filter.ActorID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Resource != "" {
		query = query.Where("resource = ?", filter.Resource)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []domain.AuditLog
	err := query.Order("created_at DESC, id DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&logs).Error
	return logs, total, err
}
