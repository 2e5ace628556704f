package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/remembrance/memorial-backend/internal/common"
	"github.com/remembrance/memorial-backend/internal/domain"
	"github.com/remembrance/memorial-backend/internal/repository"
	"github.com/remembrance/memorial-backend/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("obituary")

// NotificationEnqueuer persists notifications for later delivery
type NotificationEnqueuer interface {
	Enqueue(ctx context.Context, notification *domain.Notification) (bool, error)
}

// ObituaryService handles obituary submission, visibility and admin moderation
type ObituaryService struct {
	repo          repository.ObituaryRepository
	notifications NotificationEnqueuer
	cache         *ObituaryCache
	now           func() time.Time
}

// NewObituaryService creates a new ObituaryService. cache may be nil.
func NewObituaryService(repo repository.ObituaryRepository, notifications NotificationEnqueuer, cache *ObituaryCache) *ObituaryService {
	return &ObituaryService{
		repo:          repo,
		notifications: notifications,
		cache:         cache,
		now:           time.Now,
	}
}

// SetClock replaces the time source
func (s *ObituaryService) SetClock(now func() time.Time) {
	s.now = now
}

// Submit stores a new obituary in pending state
func (s *ObituaryService) Submit(ctx context.Context, actor domain.Actor, req *domain.SubmitObituaryRequest) (*domain.Obituary, error) {
	if actor.IsAnonymous() {
		return nil, common.ErrUnauthorized
	}

	obit, err := req.Normalize(actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrInvalidInput, err.Error())
	}
	now := s.now()
	obit.CreatedAt = now
	obit.UpdatedAt = now

	if err := s.repo.Create(ctx, obit); err != nil {
		return nil, fmt.Errorf("create obituary: %w", err)
	}
	return obit, nil
}

// Get returns the record as the actor may see it. Non-public records are reported
// as not found to everyone but the owner and admins.
func (s *ObituaryService) Get(ctx context.Context, actor domain.Actor, id uint64) (*domain.Obituary, error) {
	obit, err := s.cachedLoad(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || obit.IsOwnedBy(actor.UserID) {
		return obit, nil
	}
	if !obit.Status.IsPublic() {
		return nil, ErrObituaryNotFound
	}
	return obit.Public(), nil
}

// ListPublic lists published, memorialized and archived records
func (s *ObituaryService) ListPublic(ctx context.Context, page, limit int) ([]*domain.Obituary, *common.Meta, error) {
	page, limit = normalizePage(page, limit)
	obits, total, err := s.repo.List(ctx, repository.ObituaryFilter{
		Statuses: []domain.ObituaryStatus{domain.StatusPublished, domain.StatusMemorialized, domain.StatusArchived},
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return nil, nil, err
	}
	public := make([]*domain.Obituary, len(obits))
	for i, o := range obits {
		public[i] = o.Public()
	}
	return public, common.NewMeta(page, limit, total), nil
}

// ListMine lists every record the actor submitted
func (s *ObituaryService) ListMine(ctx context.Context, actor domain.Actor, page, limit int) ([]*domain.Obituary, *common.Meta, error) {
	if actor.IsAnonymous() {
		return nil, nil, common.ErrUnauthorized
	}
	page, limit = normalizePage(page, limit)
	obits, total, err := s.repo.List(ctx, repository.ObituaryFilter{OwnerID: actor.UserID, Page: page, Limit: limit})
	if err != nil {
		return nil, nil, err
	}
	return obits, common.NewMeta(page, limit, total), nil
}

// ListAdmin lists records for moderation, optionally filtered by status
func (s *ObituaryService) ListAdmin(ctx context.Context, actor domain.Actor, status string, page, limit int) ([]*domain.Obituary, *common.Meta, error) {
	if !actor.IsAdmin() {
		return nil, nil, common.ErrForbidden
	}
	filter := repository.ObituaryFilter{}
	if status != "" {
		st := domain.ObituaryStatus(strings.ToLower(strings.TrimSpace(status)))
		if !st.Valid() {
			return nil, nil, fmt.Errorf("%w: unknown status %q", common.ErrInvalidInput, status)
		}
		filter.Statuses = []domain.ObituaryStatus{st}
	}
	filter.Page, filter.Limit = normalizePage(page, limit)

	obits, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	return obits, common.NewMeta(filter.Page, filter.Limit, total), nil
}

// Stats counts records per status
func (s *ObituaryService) Stats(ctx context.Context, actor domain.Actor) (*domain.ObituaryStats, error) {
	if !actor.IsAdmin() {
		return nil, common.ErrForbidden
	}
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	unpaid, err := s.repo.CountUnpaid(ctx)
	if err != nil {
		return nil, err
	}
	stats := &domain.ObituaryStats{ByStatus: counts, Unpaid: unpaid}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

// Approve publishes a pending record. Records left in the legacy approved state
// are accepted as well.
func (s *ObituaryService) Approve(ctx context.Context, actor domain.Actor, id uint64) (*domain.Obituary, error) {
	ctx, span := tracer.Start(ctx, "Obituary.Service.Approve")
	defer span.End()
	span.SetAttributes(attribute.Int64("obituary.id", int64(id)))

	if !actor.IsAdmin() {
		return nil, common.ErrForbidden
	}
	now := s.now()
	obit, err := s.transition(ctx, id,
		[]domain.ObituaryStatus{domain.StatusPending, domain.StatusApproved},
		domain.StatusPublished,
		map[string]interface{}{
			"published_at": now,
			"approved_by":  actor.UserID,
			"updated_at":   now,
		})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.notify(ctx, &domain.Notification{
		UserID:     obit.OwnerID,
		Type:       domain.NotificationObituaryPublished,
		ObituaryID: obit.ID,
		Message:    fmt.Sprintf("The obituary for %s has been published.", obit.FullName),
		DedupeKey:  dedupeKey("published:%d", obit.ID),
	})
	return obit, nil
}

// Reject declines a pending record with a reason shown to the owner
func (s *ObituaryService) Reject(ctx context.Context, actor domain.Actor, id uint64, reason string) (*domain.Obituary, error) {
	ctx, span := tracer.Start(ctx, "Obituary.Service.Reject")
	defer span.End()
	span.SetAttributes(attribute.Int64("obituary.id", int64(id)))

	if !actor.IsAdmin() {
		return nil, common.ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	now := s.now()
	obit, err := s.transition(ctx, id,
		[]domain.ObituaryStatus{domain.StatusPending},
		domain.StatusRejected,
		map[string]interface{}{
			"rejected_at":      now,
			"rejection_reason": reason,
			"updated_at":       now,
		})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.notify(ctx, &domain.Notification{
		UserID:     obit.OwnerID,
		Type:       domain.NotificationObituaryRejected,
		ObituaryID: obit.ID,
		Message:    fmt.Sprintf("The obituary for %s was not approved: %s", obit.FullName, reason),
		DedupeKey:  dedupeKey("rejected:%d", obit.ID),
	})
	return obit, nil
}

// Archive closes a memorialized record
func (s *ObituaryService) Archive(ctx context.Context, actor domain.Actor, id uint64) (*domain.Obituary, error) {
	ctx, span := tracer.Start(ctx, "Obituary.Service.Archive")
	defer span.End()
	span.SetAttributes(attribute.Int64("obituary.id", int64(id)))

	if !actor.IsAdmin() {
		return nil, common.ErrForbidden
	}
	now := s.now()
	obit, err := s.transition(ctx, id,
		[]domain.ObituaryStatus{domain.StatusMemorialized},
		domain.StatusArchived,
		map[string]interface{}{
			"archived_at": now,
			"updated_at":  now,
		})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.notify(ctx, &domain.Notification{
		UserID:     obit.OwnerID,
		Type:       domain.NotificationObituaryArchived,
		ObituaryID: obit.ID,
		Message:    fmt.Sprintf("The memorial page for %s has been archived.", obit.FullName),
		DedupeKey:  dedupeKey("archived:%d", obit.ID),
	})
	return obit, nil
}

// SetPayment records the payment state. It does not depend on the lifecycle status.
func (s *ObituaryService) SetPayment(ctx context.Context, actor domain.Actor, id uint64, paid bool, reference string) (*domain.Obituary, error) {
	if !actor.IsAdmin() {
		return nil, common.ErrForbidden
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	err := s.repo.UpdateFields(ctx, id, map[string]interface{}{
		"paid":              paid,
		"payment_reference": strings.TrimSpace(reference),
		"updated_at":        s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("update payment: %w", err)
	}
	s.cache.Remove(id)
	return s.load(ctx, id)
}

// SetAppreciation stores the owner's thank-you note once the page has been live
// for the memorialize window
func (s *ObituaryService) SetAppreciation(ctx context.Context, actor domain.Actor, id uint64, message string) (*domain.Obituary, error) {
	ctx, span := tracer.Start(ctx, "Obituary.Service.SetAppreciation")
	defer span.End()

	obit, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !obit.IsOwnedBy(actor.UserID) {
		return nil, common.ErrForbidden
	}

	now := s.now()
	base := obit.LifecycleBase()
	if !domain.MemorializeDue(base, now) {
		return nil, &EligibilityError{Action: "appreciation message", AvailableAt: base.Add(domain.MemorializeAfter)}
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrMessageRequired
	}
	if utf8.RuneCountInString(message) > MaxAppreciationLength {
		return nil, ErrMessageTooLong
	}

	err = s.repo.UpdateFields(ctx, id, map[string]interface{}{
		"appreciation_message":    message,
		"appreciation_updated_at": now,
		"updated_at":              now,
	})
	if err != nil {
		return nil, fmt.Errorf("update appreciation: %w", err)
	}
	s.cache.Remove(id)
	return s.load(ctx, id)
}

// transition moves id into `to` when its current status is one of from.
// A concurrent writer that got there first surfaces as ErrInvalidTransition.
func (s *ObituaryService) transition(ctx context.Context, id uint64, from []domain.ObituaryStatus, to domain.ObituaryStatus, fields map[string]interface{}) (*domain.Obituary, error) {
	obit, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !containsStatus(from, obit.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, obit.Status, to)
	}

	changed, err := s.repo.Transition(ctx, id, from, to, fields)
	if err != nil {
		return nil, fmt.Errorf("transition obituary %d: %w", id, err)
	}
	s.cache.Remove(id)
	if !changed {
		return nil, fmt.Errorf("%w: %s -> %s (status changed concurrently)", ErrInvalidTransition, obit.Status, to)
	}
	obituaryTransitionsTotal.WithLabelValues(string(to)).Inc()

	return s.load(ctx, id)
}

func (s *ObituaryService) load(ctx context.Context, id uint64) (*domain.Obituary, error) {
	return loadObituary(ctx, s.repo, id)
}

func (s *ObituaryService) cachedLoad(ctx context.Context, id uint64) (*domain.Obituary, error) {
	if obit, ok := s.cache.Get(id); ok {
		return obit, nil
	}
	obit, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(obit)
	return obit, nil
}

// notify enqueues a best-effort owner notification. The transition has already
// been committed, so failures are logged rather than returned.
func (s *ObituaryService) notify(ctx context.Context, n *domain.Notification) {
	if s.notifications == nil || n.UserID == "" {
		return
	}
	n.ScheduledFor = s.now()
	n.CreatedAt = n.ScheduledFor
	if _, err := s.notifications.Enqueue(ctx, n); err != nil {
		logger.GetLogger().Error().Err(err).
			Uint64("obituary_id", n.ObituaryID).
			Str("type", n.Type).
			Msg("failed to enqueue notification")
	}
}

func containsStatus(list []domain.ObituaryStatus, s domain.ObituaryStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func dedupeKey(format string, args ...interface{}) *string {
	key := fmt.Sprintf(format, args...)
	return &key
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
