package service

import (
	"context"
	"errors"
	"time"

	"github.com/remembrance/memorial-backend/internal/common"
	"github.com/remembrance/memorial-backend/internal/domain"
	"github.com/remembrance/memorial-backend/internal/repository"
	"gorm.io/gorm"
)

// NotificationService handles notification business logic
type NotificationService struct {
	repo *repository.NotificationRepository
	now  func() time.Time
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(repo *repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo, now: time.Now}
}

// GetUnreadCount returns the unread notification count for a user
func (s *NotificationService) GetUnreadCount(ctx context.Context, actor domain.Actor) (int64, error) {
	if actor.IsAnonymous() {
		return 0, common.ErrUnauthorized
	}
	return s.repo.GetUnreadCount(ctx, actor.UserID)
}

// GetList returns paginated notifications for a user
func (s *NotificationService) GetList(ctx context.Context, actor domain.Actor, page, limit int) (*domain.NotificationListResponse, error) {
	if actor.IsAnonymous() {
		return nil, common.ErrUnauthorized
	}
	page, limit = normalizePage(page, limit)

	offset := (page - 1) * limit
	notifications, total, err := s.repo.GetList(ctx, actor.UserID, offset, limit)
	if err != nil {
		return nil, err
	}

	unreadCount, err := s.repo.GetUnreadCount(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	return &domain.NotificationListResponse{
		Items:       notifications,
		Total:       total,
		UnreadCount: unreadCount,
		Page:        page,
		Limit:       limit,
	}, nil
}

// MarkAsRead marks a notification as read after ownership check
func (s *NotificationService) MarkAsRead(ctx context.Context, actor domain.Actor, id uint64) error {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	if actor.IsAnonymous() || n.UserID != actor.UserID {
		return common.ErrForbidden
	}
	return s.repo.MarkAsRead(ctx, id, s.now())
}

// MarkAllAsRead marks all notifications as read for a user
func (s *NotificationService) MarkAllAsRead(ctx context.Context, actor domain.Actor) error {
	if actor.IsAnonymous() {
		return common.ErrUnauthorized
	}
	return s.repo.MarkAllAsRead(ctx, actor.UserID, s.now())
}
