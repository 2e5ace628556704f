package service

import (
	"context"
	"testing"
	"time"

	"github.com/remembrance/memorial-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle_FullScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	f.clock.Set(t0)

	obit, err := f.obitSvc.Submit(ctx, ownerActor, &domain.SubmitObituaryRequest{
		FullName:    "Margaret Hale",
		DateOfDeath: "2025-06-01",
		Gallery: []domain.GalleryImage{
			{URL: "https://cdn.example.com/garden.jpg"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, obit.Status)

	published, err := f.obitSvc.Approve(ctx, adminActor, obit.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, published.Status)

	// day 29: still live
	f.clock.Set(t0.Add(29 * 24 * time.Hour))
	result, err := f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Memorialized)
	_, err = f.obitSvc.SetAppreciation(ctx, ownerActor, obit.ID, "Thank you")
	assert.ErrorIs(t, err, ErrNotEligible)

	// day 30: memorial
	memorializedAt := t0.Add(30 * 24 * time.Hour)
	f.clock.Set(memorializedAt)
	result, err = f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Memorialized)
	assert.Equal(t, domain.StatusMemorialized, f.reload(t, obit.ID).Status)
	assert.Len(t, f.notificationsOfType(t, domain.NotificationObituaryMemorialized), 1)

	_, err = f.obitSvc.SetAppreciation(ctx, ownerActor, obit.ID, "Thank you for every kind word")
	require.NoError(t, err)

	_, err = f.comments.Create(ctx, domain.Actor{}, obit.ID, &domain.CreateCommentRequest{AuthorName: "A", Message: "m"})
	assert.ErrorIs(t, err, ErrCommentsClosed)

	// export opens 11 calendar months after memorialization
	f.clock.Set(memorializedAt.AddDate(0, 10, 29))
	_, err = f.exporter.Export(ctx, ownerActor, obit.ID)
	assert.ErrorIs(t, err, ErrNotEligible)
	result, err = f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.RenewalNotified)

	f.clock.Set(memorializedAt.AddDate(0, 11, 0))
	f.fetcher.On("Fetch", "https://cdn.example.com/garden.jpg", "").Return([]byte("jpeg"), nil)
	archive, err := f.exporter.Export(ctx, ownerActor, obit.ID)
	require.NoError(t, err)
	files := readZip(t, archive.Data)
	assert.Contains(t, files, "metadata.json")
	assert.Contains(t, files, "images/01-garden.jpg")

	result, err = f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RenewalNotified)
	result, err = f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.RenewalNotified)
	assert.Len(t, f.notificationsOfType(t, domain.NotificationRenewalEligible), 1)

	archived, err := f.obitSvc.Archive(ctx, adminActor, obit.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, archived.Status)

	result, err = f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, &SweepResult{}, result)
}
