package service

import (
	"context"
	"testing"
	"time"

	"github.com/remembrance/memorial-backend/internal/domain"
	"github.com/remembrance/memorial-backend/internal/repository"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// mid-month so calendar arithmetic never hits month-end normalization
var baseNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

var (
	adminActor    = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
	ownerActor    = domain.Actor{UserID: "owner-1", Role: domain.RoleUser}
	strangerActor = domain.Actor{UserID: "stranger-1", Role: domain.RoleUser}
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Set(t time.Time)         { c.now = t }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// MockImageFetcher is a mock implementation of ImageFetcher
type MockImageFetcher struct {
	mock.Mock
}

func (m *MockImageFetcher) Fetch(ctx context.Context, url, storageKey string) ([]byte, error) {
	args := m.Called(url, storageKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockLocker is a mock implementation of SweepLocker
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	args := m.Called(name, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

type fixture struct {
	db            *gorm.DB
	clock         *testClock
	obituaries    repository.ObituaryRepository
	notifications *repository.NotificationRepository
	fetcher       *MockImageFetcher

	obitSvc  *ObituaryService
	sweeper  *SweeperService
	exporter *ExportService
	comments *CommentService
	notifSvc *NotificationService
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.Obituary{}, &domain.Comment{}, &domain.Notification{}))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	f := &fixture{
		db:            db,
		clock:         &testClock{now: baseNow},
		obituaries:    repository.NewObituaryRepository(db),
		notifications: repository.NewNotificationRepository(db),
		fetcher:       &MockImageFetcher{},
	}
	cache := NewObituaryCache(100, time.Minute)

	f.obitSvc = NewObituaryService(f.obituaries, f.notifications, cache)
	f.obitSvc.SetClock(f.clock.Now)
	f.sweeper = NewSweeperService(f.obituaries, f.notifications, nil, time.Minute, cache)
	f.sweeper.SetClock(f.clock.Now)
	f.exporter = NewExportService(f.obituaries, f.fetcher)
	f.exporter.SetClock(f.clock.Now)
	f.comments = NewCommentService(repository.NewCommentRepository(db), f.obituaries)
	f.comments.now = f.clock.Now
	f.notifSvc = NewNotificationService(f.notifications)
	f.notifSvc.now = f.clock.Now
	return f
}

// seed inserts obit with owner-1 defaults
func (f *fixture) seed(t *testing.T, obit *domain.Obituary) *domain.Obituary {
	t.Helper()
	if obit.OwnerID == "" {
		obit.OwnerID = ownerActor.UserID
	}
	if obit.FullName == "" {
		obit.FullName = "Jane Doe"
	}
	if obit.Status == "" {
		obit.Status = domain.StatusPending
	}
	if obit.CreatedAt.IsZero() {
		obit.CreatedAt = f.clock.Now()
	}
	require.NoError(t, f.obituaries.Create(context.Background(), obit))
	return obit
}

func (f *fixture) reload(t *testing.T, id uint64) *domain.Obituary {
	t.Helper()
	obit, err := f.obituaries.FindByID(context.Background(), id)
	require.NoError(t, err)
	return obit
}

func (f *fixture) notificationsOfType(t *testing.T, typ string) []domain.Notification {
	t.Helper()
	var list []domain.Notification
	require.NoError(t, f.db.Where("type = ?", typ).Order("id ASC").Find(&list).Error)
	return list
}

func ptrTime(t time.Time) *time.Time { return &t }
