package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/remembrance/memorial-backend/internal/domain"
	"github.com/remembrance/memorial-backend/internal/repository"
	"github.com/remembrance/memorial-backend/pkg/logger"
	"github.com/remembrance/memorial-backend/pkg/redis"
	"go.opentelemetry.io/otel/attribute"
)

const sweepLockName = "obituary-sweep"

// SweepResult summarizes one sweeper run
type SweepResult struct {
	Memorialized    int `json:"memorializedCount"`
	RenewalNotified int `json:"renewalNotifiedCount"`
}

// SweepLocker excludes overlapping sweeps across instances
type SweepLocker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error)
}

// SweeperService applies the time-driven lifecycle rules
type SweeperService struct {
	repo          repository.ObituaryRepository
	notifications NotificationEnqueuer
	locker        SweepLocker
	lockTTL       time.Duration
	cache         *ObituaryCache
	now           func() time.Time
}

// NewSweeperService creates a new SweeperService. locker and cache may be nil.
func NewSweeperService(repo repository.ObituaryRepository, notifications NotificationEnqueuer, locker SweepLocker, lockTTL time.Duration, cache *ObituaryCache) *SweeperService {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &SweeperService{
		repo:          repo,
		notifications: notifications,
		locker:        locker,
		lockTTL:       lockTTL,
		cache:         cache,
		now:           time.Now,
	}
}

// SetClock replaces the time source
func (s *SweeperService) SetClock(now func() time.Time) {
	s.now = now
}

// Sweep memorializes published pages older than the memorialize window and
// queues one renewal notice per record and base month once the export window opens.
// Running it again with the same clock changes nothing.
func (s *SweeperService) Sweep(ctx context.Context) (*SweepResult, error) {
	ctx, span := tracer.Start(ctx, "Obituary.Service.Sweep")
	defer span.End()

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, sweepLockName, s.lockTTL)
		if err != nil {
			if errors.Is(err, redis.ErrLockHeld) {
				sweepRunsTotal.WithLabelValues("skipped").Inc()
				return nil, ErrSweepInProgress
			}
			sweepRunsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("acquire sweep lock: %w", err)
		}
		defer release()
	}

	start := time.Now()
	now := s.now()
	result := &SweepResult{}

	if err := s.memorialize(ctx, now, result); err != nil {
		span.RecordError(err)
		sweepRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if err := s.notifyRenewals(ctx, now, result); err != nil {
		span.RecordError(err)
		sweepRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	sweepRunsTotal.WithLabelValues("ok").Inc()
	sweepDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("sweep.memorialized", result.Memorialized),
		attribute.Int("sweep.renewal_notified", result.RenewalNotified),
	)
	logger.GetLogger().Info().
		Int("memorialized", result.Memorialized).
		Int("renewal_notified", result.RenewalNotified).
		Dur("elapsed", time.Since(start)).
		Msg("obituary sweep finished")

	return result, nil
}

func (s *SweeperService) memorialize(ctx context.Context, now time.Time, result *SweepResult) error {
	published, err := s.repo.FindByStatus(ctx, domain.StatusPublished)
	if err != nil {
		return fmt.Errorf("load published obituaries: %w", err)
	}

	for _, obit := range published {
		if !domain.MemorializeDue(obit.LifecycleBase(), now) {
			continue
		}

		// The notice goes out before the update so a run that dies in between
		// still delivers exactly one notice on the retry.
		if _, err := s.notifications.Enqueue(ctx, &domain.Notification{
			UserID:       obit.OwnerID,
			Type:         domain.NotificationObituaryMemorialized,
			ObituaryID:   obit.ID,
			Message:      fmt.Sprintf("The page for %s is now a permanent memorial.", obit.FullName),
			ScheduledFor: now,
			CreatedAt:    now,
			DedupeKey:    dedupeKey("memorialized:%d", obit.ID),
		}); err != nil {
			return fmt.Errorf("enqueue memorialized notice for %d: %w", obit.ID, err)
		}

		changed, err := s.repo.Transition(ctx, obit.ID,
			[]domain.ObituaryStatus{domain.StatusPublished},
			domain.StatusMemorialized,
			map[string]interface{}{
				"memorialized_at": now,
				"updated_at":      now,
			})
		if err != nil {
			return fmt.Errorf("memorialize obituary %d: %w", obit.ID, err)
		}
		s.cache.Remove(obit.ID)
		if changed {
			result.Memorialized++
			obituaryTransitionsTotal.WithLabelValues(string(domain.StatusMemorialized)).Inc()
		}
	}
	return nil
}

func (s *SweeperService) notifyRenewals(ctx context.Context, now time.Time, result *SweepResult) error {
	cutoff := now.AddDate(0, -domain.ExportAfterMonths, 0)
	due, err := s.repo.FindRenewalDue(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("load renewal candidates: %w", err)
	}

	for _, obit := range due {
		base := obit.RenewalBase()
		created, err := s.notifications.Enqueue(ctx, &domain.Notification{
			UserID:       obit.OwnerID,
			Type:         domain.NotificationRenewalEligible,
			ObituaryID:   obit.ID,
			Message:      fmt.Sprintf("The memorial archive for %s can now be downloaded or renewed.", obit.FullName),
			ScheduledFor: now,
			CreatedAt:    now,
			DedupeKey:    dedupeKey("renewal_eligible:%s:%d:%s", obit.OwnerID, obit.ID, base.UTC().Format("2006-01")),
		})
		if err != nil {
			return fmt.Errorf("enqueue renewal notice for %d: %w", obit.ID, err)
		}
		if created {
			result.RenewalNotified++
			renewalNotificationsTotal.Inc()
		}
	}
	return nil
}
