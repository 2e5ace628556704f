package repository

import (
	"context"

	"github.com/remembrance/memorial-backend/internal/domain"
	"gorm.io/gorm"
)

// CommentRepository comment/tribute data access
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	FindByID(ctx context.Context, id uint64) (*domain.Comment, error)
	ListApproved(ctx context.Context, obituaryID uint64, offset, limit int) ([]*domain.Comment, int64, error)
	ListPending(ctx context.Context, offset, limit int) ([]*domain.Comment, int64, error)
	Approve(ctx context.Context, id uint64) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *commentRepository) FindByID(ctx context.Context, id uint64) (*domain.Comment, error) {
	var comment domain.Comment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&comment).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) ListApproved(ctx context.Context, obituaryID uint64, offset, limit int) ([]*domain.Comment, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Comment{}).
		Where("obituary_id = ? AND approved = ?", obituaryID, true)
	return r.page(query, "id ASC", offset, limit)
}

func (r *commentRepository) ListPending(ctx context.Context, offset, limit int) ([]*domain.Comment, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Comment{}).
		Where("approved = ?", false)
	return r.page(query, "id ASC", offset, limit)
}

func (r *commentRepository) page(query *gorm.DB, order string, offset, limit int) ([]*domain.Comment, int64, error) {
	var comments []*domain.Comment
	var total int64

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order(order).Offset(offset).Limit(limit).Find(&comments).Error; err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

func (r *commentRepository) Approve(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Model(&domain.Comment{}).
		Where("id = ?", id).
		Update("approved", true).Error
}
