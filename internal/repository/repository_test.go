package repository

import (
	"context"
	"testing"
	"time"

	"github.com/remembrance/memorial-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every pooled connection would otherwise get its own empty in-memory database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&domain.Obituary{}, &domain.Comment{}, &domain.Notification{}, &domain.AuditLog{}))
	return db
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestObituaryRepository_Transition(t *testing.T) {
	ctx := context.Background()
	repo := NewObituaryRepository(setupTestDB(t))

	obit := &domain.Obituary{OwnerID: "u1", FullName: "A", Status: domain.StatusPending}
	require.NoError(t, repo.Create(ctx, obit))

	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	changed, err := repo.Transition(ctx, obit.ID,
		[]domain.ObituaryStatus{domain.StatusPending}, domain.StatusPublished,
		map[string]interface{}{"published_at": now})
	require.NoError(t, err)
	assert.True(t, changed)

	// second attempt from pending is rejected by the status predicate
	changed, err = repo.Transition(ctx, obit.ID,
		[]domain.ObituaryStatus{domain.StatusPending}, domain.StatusRejected, nil)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := repo.FindByID(ctx, obit.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, got.Status)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, got.PublishedAt.Equal(now))
}

func TestObituaryRepository_FindByIDNotFound(t *testing.T) {
	repo := NewObituaryRepository(setupTestDB(t))
	_, err := repo.FindByID(context.Background(), 404)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestObituaryRepository_GalleryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewObituaryRepository(setupTestDB(t))

	obit := &domain.Obituary{
		OwnerID:  "u1",
		FullName: "A",
		Status:   domain.StatusPending,
		Gallery: []domain.GalleryImage{
			{URL: "https://cdn.example.com/1.jpg", StorageKey: "k1", Role: domain.ImageRoleGallery},
			{URL: "https://cdn.example.com/2.jpg", Role: domain.ImageRoleGallery},
		},
	}
	require.NoError(t, repo.Create(ctx, obit))

	got, err := repo.FindByID(ctx, obit.ID)
	require.NoError(t, err)
	require.Len(t, got.Gallery, 2)
	assert.Equal(t, "k1", got.Gallery[0].StorageKey)
}

func TestObituaryRepository_FindRenewalDue(t *testing.T) {
	ctx := context.Background()
	repo := NewObituaryRepository(setupTestDB(t))

	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	cutoff := now.AddDate(0, -11, 0)

	old := now.AddDate(-1, 0, 0)
	recent := now.AddDate(0, -2, 0)

	fixtures := []*domain.Obituary{
		{OwnerID: "u1", FullName: "old memorialized", Status: domain.StatusMemorialized, PublishedAt: ptrTime(old), MemorializedAt: ptrTime(old)},
		{OwnerID: "u1", FullName: "old published", Status: domain.StatusPublished, PublishedAt: ptrTime(old)},
		{OwnerID: "u1", FullName: "recent memorialized", Status: domain.StatusMemorialized, PublishedAt: ptrTime(old), MemorializedAt: ptrTime(recent)},
		{OwnerID: "u1", FullName: "archived", Status: domain.StatusArchived, PublishedAt: ptrTime(old), MemorializedAt: ptrTime(old)},
		{OwnerID: "u1", FullName: "pending", Status: domain.StatusPending},
	}
	for _, f := range fixtures {
		require.NoError(t, repo.Create(ctx, f))
	}

	due, err := repo.FindRenewalDue(ctx, cutoff)
	require.NoError(t, err)

	var names []string
	for _, o := range due {
		names = append(names, o.FullName)
	}
	assert.ElementsMatch(t, []string{"old memorialized", "old published"}, names)
}

func TestObituaryRepository_ListAndCounts(t *testing.T) {
	ctx := context.Background()
	repo := NewObituaryRepository(setupTestDB(t))

	for i, st := range []domain.ObituaryStatus{domain.StatusPending, domain.StatusPending, domain.StatusPublished, domain.StatusRejected} {
		require.NoError(t, repo.Create(ctx, &domain.Obituary{
			OwnerID:  []string{"u1", "u2"}[i%2],
			FullName: "A",
			Status:   st,
			Paid:     st == domain.StatusPublished,
		}))
	}

	obits, total, err := repo.List(ctx, ObituaryFilter{Statuses: []domain.ObituaryStatus{domain.StatusPending}, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, obits, 2)

	_, total, err = repo.List(ctx, ObituaryFilter{OwnerID: "u1", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[domain.StatusPending])
	assert.Equal(t, int64(0), counts[domain.StatusArchived])

	unpaid, err := repo.CountUnpaid(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unpaid)
}

func TestNotificationRepository_EnqueueDedupe(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)

	key := "renewal_eligible:u1:1:2025-10"
	n1 := &domain.Notification{UserID: "u1", Type: domain.NotificationRenewalEligible, ObituaryID: 1, DedupeKey: &key}
	created, err := repo.Enqueue(ctx, n1)
	require.NoError(t, err)
	assert.True(t, created)

	n2 := &domain.Notification{UserID: "u1", Type: domain.NotificationRenewalEligible, ObituaryID: 1, DedupeKey: &key}
	created, err = repo.Enqueue(ctx, n2)
	require.NoError(t, err)
	assert.False(t, created)

	// notifications without a key never collide
	for i := 0; i < 2; i++ {
		created, err = repo.Enqueue(ctx, &domain.Notification{UserID: "u1", Type: "other"})
		require.NoError(t, err)
		assert.True(t, created)
	}

	var count int64
	db.Model(&domain.Notification{}).Count(&count)
	assert.Equal(t, int64(3), count)
}

func TestNotificationRepository_ReadState(t *testing.T) {
	ctx := context.Background()
	repo := NewNotificationRepository(setupTestDB(t))

	for i := 0; i < 3; i++ {
		_, err := repo.Enqueue(ctx, &domain.Notification{UserID: "u1", Type: "t"})
		require.NoError(t, err)
	}
	unread, err := repo.GetUnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	items, total, err := repo.GetList(ctx, "u1", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 2)

	now := time.Now().UTC()
	require.NoError(t, repo.MarkAsRead(ctx, items[0].ID, now))
	unread, _ = repo.GetUnreadCount(ctx, "u1")
	assert.Equal(t, int64(2), unread)

	require.NoError(t, repo.MarkAllAsRead(ctx, "u1", now))
	unread, _ = repo.GetUnreadCount(ctx, "u1")
	assert.Equal(t, int64(0), unread)
}

func TestCommentRepository_Moderation(t *testing.T) {
	ctx := context.Background()
	repo := NewCommentRepository(setupTestDB(t))

	pending := &domain.Comment{ObituaryID: 1, Kind: domain.CommentKindComment, AuthorName: "A", Message: "m"}
	tribute := &domain.Comment{ObituaryID: 1, Kind: domain.CommentKindTribute, AuthorName: "B", Message: "m", Approved: true}
	require.NoError(t, repo.Create(ctx, pending))
	require.NoError(t, repo.Create(ctx, tribute))

	visible, total, err := repo.ListApproved(ctx, 1, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, tribute.ID, visible[0].ID)

	queue, total, err := repo.ListPending(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, pending.ID, queue[0].ID)

	require.NoError(t, repo.Approve(ctx, pending.ID))
	_, total, _ = repo.ListApproved(ctx, 1, 0, 10)
	assert.Equal(t, int64(2), total)
}

func TestAuditRepository_RecordAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewAuditRepository(setupTestDB(t))
	base := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	entries := []*domain.AuditLog{
		{ActorID: "admin-1", Action: "approve", Resource: "obituary", ResourceID: "1", Status: 200, CreatedAt: base},
		{ActorID: "admin-1", Action: "reject", Resource: "obituary", ResourceID: "2", Status: 200, CreatedAt: base.Add(time.Minute)},
		{ActorID: "admin-2", Action: "approve", Resource: "comment", ResourceID: "7", Status: 200, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		require.NoError(t, repo.Record(ctx, e))
	}

	all, total, err := repo.List(ctx, AuditFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	assert.Equal(t, "7", all[0].ResourceID, "newest first")

	byActor, total, err := repo.List(ctx, AuditFilter{ActorID: "admin-1", Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, byActor, 1)
	assert.Equal(t, "reject", byActor[0].Action)

	approvals, _, err := repo.List(ctx, AuditFilter{Action: "approve", Resource: "obituary", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, "1", approvals[0].ResourceID)
}
