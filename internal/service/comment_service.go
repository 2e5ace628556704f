package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/remembrance/memorial-backend/internal/common"
	"github.com/remembrance/memorial-backend/internal/domain"
	"github.com/remembrance/memorial-backend/internal/repository"
	"gorm.io/gorm"
)

// CommentService handles condolence comments and tributes
type CommentService struct {
	comments   repository.CommentRepository
	obituaries repository.ObituaryRepository
	now        func() time.Time
}

// NewCommentService creates a new CommentService
func NewCommentService(comments repository.CommentRepository, obituaries repository.ObituaryRepository) *CommentService {
	return &CommentService{comments: comments, obituaries: obituaries, now: time.Now}
}

// Create adds a comment or tribute. Only live pages accept new entries;
// memorialized pages are read-only. Tributes skip moderation.
func (s *CommentService) Create(ctx context.Context, actor domain.Actor, obituaryID uint64, req *domain.CreateCommentRequest) (*domain.Comment, error) {
	obit, err := loadObituary(ctx, s.obituaries, obituaryID)
	if err != nil {
		return nil, err
	}
	if obit.Status != domain.StatusPublished {
		if !obit.Status.IsPublic() {
			return nil, ErrObituaryNotFound
		}
		return nil, ErrCommentsClosed
	}

	kind := req.Kind
	if kind == "" {
		kind = domain.CommentKindComment
	}
	if kind == domain.CommentKindTribute && !obit.AllowTributes {
		return nil, ErrTributesDisabled
	}

	message := strings.TrimSpace(req.Message)
	name := strings.TrimSpace(req.AuthorName)
	if message == "" || name == "" {
		return nil, fmt.Errorf("%w: author_name and message are required", common.ErrInvalidInput)
	}

	comment := &domain.Comment{
		ObituaryID:   obit.ID,
		Kind:         kind,
		AuthorUserID: actor.UserID,
		AuthorName:   name,
		AuthorEmail:  strings.TrimSpace(req.AuthorEmail),
		AuthorPhone:  strings.TrimSpace(req.AuthorPhone),
		Relationship: strings.TrimSpace(req.Relationship),
		Message:      message,
		Approved:     kind == domain.CommentKindTribute,
		CreatedAt:    s.now(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return comment, nil
}

// ListApproved returns the visible entries of an obituary the actor can see
func (s *CommentService) ListApproved(ctx context.Context, actor domain.Actor, obituaryID uint64, page, limit int) ([]*domain.Comment, *common.Meta, error) {
	obit, err := loadObituary(ctx, s.obituaries, obituaryID)
	if err != nil {
		return nil, nil, err
	}
	if !obit.Status.IsPublic() && !actor.IsAdmin() && !obit.IsOwnedBy(actor.UserID) {
		return nil, nil, ErrObituaryNotFound
	}

	page, limit = normalizePage(page, limit)
	comments, total, err := s.comments.ListApproved(ctx, obituaryID, (page-1)*limit, limit)
	if err != nil {
		return nil, nil, err
	}
	return comments, common.NewMeta(page, limit, total), nil
}

// ListPending returns the moderation queue
func (s *CommentService) ListPending(ctx context.Context, actor domain.Actor, page, limit int) ([]*domain.Comment, *common.Meta, error) {
	if !actor.IsAdmin() {
		return nil, nil, common.ErrForbidden
	}
	page, limit = normalizePage(page, limit)
	comments, total, err := s.comments.ListPending(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, nil, err
	}
	return comments, common.NewMeta(page, limit, total), nil
}

// Approve makes a moderated comment visible
func (s *CommentService) Approve(ctx context.Context, actor domain.Actor, id uint64) (*domain.Comment, error) {
	if !actor.IsAdmin() {
		return nil, common.ErrForbidden
	}
	comment, err := s.comments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	if comment.Approved {
		return comment, nil
	}
	if err := s.comments.Approve(ctx, id); err != nil {
		return nil, fmt.Errorf("approve comment: %w", err)
	}
	comment.Approved = true
	return comment, nil
}

// loadObituary maps a missing row to ErrObituaryNotFound
func loadObituary(ctx context.Context, repo repository.ObituaryRepository, id uint64) (*domain.Obituary, error) {
	obit, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrObituaryNotFound
		}
		return nil, fmt.Errorf("load obituary %d: %w", id, err)
	}
	return obit, nil
}
