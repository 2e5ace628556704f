package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/remembrance/memorial-backend/internal/common"
	"github.com/remembrance/memorial-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func readZip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	files := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = body
	}
	return files
}

func seedMemorial(t *testing.T, f *fixture, memorializedAt time.Time, gallery []domain.GalleryImage) *domain.Obituary {
	return f.seed(t, &domain.Obituary{
		Status:         domain.StatusMemorialized,
		CreatedAt:      memorializedAt.Add(-40 * 24 * time.Hour),
		PublishedAt:    ptrTime(memorializedAt.Add(-30 * 24 * time.Hour)),
		MemorializedAt: ptrTime(memorializedAt),
		Gallery:        gallery,
	})
}

func TestExportService_EligibilityBoundary(t *testing.T) {
	f := newFixture(t)
	memorializedAt := baseNow.AddDate(-1, 0, 0)
	obit := seedMemorial(t, f, memorializedAt, nil)

	f.clock.Set(memorializedAt.AddDate(0, 10, 29))
	_, err := f.exporter.Export(context.Background(), ownerActor, obit.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotEligible)
	var elig *EligibilityError
	require.True(t, errors.As(err, &elig))
	assert.True(t, elig.AvailableAt.Equal(memorializedAt.AddDate(0, 11, 0)))

	f.clock.Set(memorializedAt.AddDate(0, 11, 0))
	archive, err := f.exporter.Export(context.Background(), ownerActor, obit.ID)
	require.NoError(t, err)
	assert.Equal(t, "obituary-1-archive.zip", archive.Filename)
}

func TestExportService_ReferenceIsLatestDate(t *testing.T) {
	f := newFixture(t)
	// published recently, so the older memorialized date must not open the window
	obit := f.seed(t, &domain.Obituary{
		Status:         domain.StatusMemorialized,
		CreatedAt:      baseNow.AddDate(-2, 0, 0),
		MemorializedAt: ptrTime(baseNow.AddDate(-1, 0, 0)),
		PublishedAt:    ptrTime(baseNow.AddDate(0, -1, 0)),
	})

	_, err := f.exporter.Export(context.Background(), adminActor, obit.ID)
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestExportService_Access(t *testing.T) {
	f := newFixture(t)
	obit := seedMemorial(t, f, baseNow.AddDate(-1, 0, 0), nil)

	_, err := f.exporter.Export(context.Background(), strangerActor, obit.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)
	_, err = f.exporter.Export(context.Background(), domain.Actor{}, obit.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)

	_, err = f.exporter.Export(context.Background(), adminActor, obit.ID)
	assert.NoError(t, err)

	_, err = f.exporter.Export(context.Background(), adminActor, 999)
	assert.ErrorIs(t, err, ErrObituaryNotFound)
}

func TestExportService_ArchiveContents(t *testing.T) {
	f := newFixture(t)
	obit := seedMemorial(t, f, baseNow.AddDate(-1, 0, 0), []domain.GalleryImage{
		{URL: "https://cdn.example.com/photos/first.jpg", Role: domain.ImageRoleGallery},
		{URL: "https://cdn.example.com/photos/second.png?v=2", StorageKey: "uploads/owner-1/2025/06/second.png", Role: domain.ImageRoleGallery},
		{StorageKey: "uploads/owner-1/2025/06/third photo.webp", Role: domain.ImageRoleGallery},
	})

	f.fetcher.On("Fetch", "https://cdn.example.com/photos/first.jpg", "").Return([]byte("one"), nil).Once()
	f.fetcher.On("Fetch", "https://cdn.example.com/photos/second.png?v=2", "uploads/owner-1/2025/06/second.png").Return([]byte("two"), nil).Once()
	f.fetcher.On("Fetch", "", "uploads/owner-1/2025/06/third photo.webp").Return([]byte("three"), nil).Once()

	archive, err := f.exporter.Export(context.Background(), ownerActor, obit.ID)
	require.NoError(t, err)
	f.fetcher.AssertExpectations(t)

	files := readZip(t, archive.Data)
	assert.Equal(t, []byte("one"), files["images/01-first.jpg"])
	assert.Equal(t, []byte("two"), files["images/02-second.png"])
	assert.Equal(t, []byte("three"), files["images/03-third_photo.webp"])

	var meta struct {
		ExportedAt time.Time       `json:"exported_at"`
		Obituary   domain.Obituary `json:"obituary"`
		Images     []struct {
			File string `json:"file"`
			Size int    `json:"size"`
		} `json:"images"`
	}
	require.NoError(t, json.Unmarshal(files["metadata.json"], &meta))
	assert.Equal(t, obit.ID, meta.Obituary.ID)
	assert.Equal(t, domain.StatusMemorialized, meta.Obituary.Status)
	assert.True(t, meta.ExportedAt.Equal(baseNow))
	require.Len(t, meta.Images, 3)
	assert.Equal(t, 5, meta.Images[2].Size)
}

func TestExportService_FetchFailureAborts(t *testing.T) {
	f := newFixture(t)
	obit := seedMemorial(t, f, baseNow.AddDate(-1, 0, 0), []domain.GalleryImage{
		{URL: "https://cdn.example.com/a.jpg"},
		{URL: "https://cdn.example.com/b.jpg"},
		{URL: "https://cdn.example.com/c.jpg"},
	})

	f.fetcher.On("Fetch", "https://cdn.example.com/a.jpg", mock.Anything).Return([]byte("a"), nil)
	f.fetcher.On("Fetch", "https://cdn.example.com/b.jpg", mock.Anything).Return(nil, errors.New("status 404"))

	archive, err := f.exporter.Export(context.Background(), ownerActor, obit.ID)
	assert.Nil(t, archive)
	assert.ErrorIs(t, err, ErrImageFetch)
	f.fetcher.AssertNotCalled(t, "Fetch", "https://cdn.example.com/c.jpg", mock.Anything)
}

func TestImageBaseName(t *testing.T) {
	tests := []struct {
		img  domain.GalleryImage
		want string
	}{
		{domain.GalleryImage{URL: "https://x.test/a/b/photo.jpg"}, "photo.jpg"},
		{domain.GalleryImage{URL: "https://x.test/"}, "image"},
		{domain.GalleryImage{StorageKey: "k/../evil name.png"}, "evil_name.png"},
		{domain.GalleryImage{}, "image"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, imageBaseName(tt.img))
	}
}

func TestExportService_RefusesForeignImageSources(t *testing.T) {
	tests := []struct {
		name string
		img  domain.GalleryImage
	}{
		{"another user's upload", domain.GalleryImage{StorageKey: "uploads/victim-user/2025/06/private.jpg"}},
		{"non-http url", domain.GalleryImage{URL: "file:///etc/passwd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			obit := seedMemorial(t, f, baseNow.AddDate(-1, 0, 0), []domain.GalleryImage{tt.img})

			_, err := f.exporter.Export(context.Background(), ownerActor, obit.ID)
			assert.ErrorIs(t, err, ErrImageFetch)
			assert.ErrorIs(t, err, domain.ErrImageSource)
			f.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
		})
	}
}
