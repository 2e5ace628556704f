package repository

import (
	"context"
	"time"

	"github.com/remembrance/memorial-backend/internal/domain"
	"gorm.io/gorm"
)

// ObituaryFilter narrows list queries
type ObituaryFilter struct {
	OwnerID  string
	Statuses []domain.ObituaryStatus
	Page     int
	Limit    int
}

// ObituaryRepository obituary data access
type ObituaryRepository interface {
	Create(ctx context.Context, obit *domain.Obituary) error
	FindByID(ctx context.Context, id uint64) (*domain.Obituary, error)
	List(ctx context.Context, filter ObituaryFilter) ([]*domain.Obituary, int64, error)
	FindByStatus(ctx context.Context, status domain.ObituaryStatus) ([]*domain.Obituary, error)
	FindRenewalDue(ctx context.Context, cutoff time.Time) ([]*domain.Obituary, error)
	// Transition moves id to `to` only while its status is one of from.
	// It reports whether the row was changed.
	Transition(ctx context.Context, id uint64, from []domain.ObituaryStatus, to domain.ObituaryStatus, fields map[string]interface{}) (bool, error)
	UpdateFields(ctx context.Context, id uint64, fields map[string]interface{}) error
	CountByStatus(ctx context.Context) (map[domain.ObituaryStatus]int64, error)
	CountUnpaid(ctx context.Context) (int64, error)
}

type obituaryRepository struct {
	db *gorm.DB
}

// NewObituaryRepository creates a new ObituaryRepository
func NewObituaryRepository(db *gorm.DB) ObituaryRepository {
	return &obituaryRepository{db: db}
}

func (r *obituaryRepository) Create(ctx context.Context, obit *domain.Obituary) error {
	return r.db.WithContext(ctx).Create(obit).Error
}

func (r *obituaryRepository) FindByID(ctx context.Context, id uint64) (*domain.Obituary, error) {
	var obit domain.Obituary
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&obit).Error; err != nil {
		return nil, err
	}
	return &obit, nil
}

func (r *obituaryRepository) List(ctx context.Context, filter ObituaryFilter) ([]*domain.Obituary, int64, error) {
	var obits []*domain.Obituary
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Obituary{})
	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := query.Order("id DESC").Offset(offset).Limit(filter.Limit).Find(&obits).Error; err != nil {
		return nil, 0, err
	}
	return obits, total, nil
}

func (r *obituaryRepository) FindByStatus(ctx context.Context, status domain.ObituaryStatus) ([]*domain.Obituary, error) {
	var obits []*domain.Obituary
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("id ASC").
		Find(&obits).Error
	return obits, err
}

func (r *obituaryRepository) FindRenewalDue(ctx context.Context, cutoff time.Time) ([]*domain.Obituary, error) {
	var obits []*domain.Obituary
	err := r.db.WithContext(ctx).
		Where("(status = ? AND memorialized_at <= ?) OR (status = ? AND published_at <= ?)",
			domain.StatusMemorialized, cutoff, domain.StatusPublished, cutoff).
		Order("id ASC").
		Find(&obits).Error
	return obits, err
}

func (r *obituaryRepository) Transition(ctx context.Context, id uint64, from []domain.ObituaryStatus, to domain.ObituaryStatus, fields map[string]interface{}) (bool, error) {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to

	result := r.db.WithContext(ctx).Model(&domain.Obituary{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *obituaryRepository) UpdateFields(ctx context.Context, id uint64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&domain.Obituary{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *obituaryRepository) CountByStatus(ctx context.Context) (map[domain.ObituaryStatus]int64, error) {
	var rows []struct {
		Status domain.ObituaryStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&domain.Obituary{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.ObituaryStatus]int64, len(domain.AllStatuses()))
	for _, s := range domain.AllStatuses() {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *obituaryRepository) CountUnpaid(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Obituary{}).
		Where("paid = ? AND status <> ?", false, domain.StatusRejected).
		Count(&count).Error
	return count, err
}
