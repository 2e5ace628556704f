package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"time"

	"github.com/remembrance/memorial-backend/internal/common"
	"github.com/remembrance/memorial-backend/internal/domain"
	"github.com/remembrance/memorial-backend/internal/repository"
	"github.com/remembrance/memorial-backend/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
)

// ImageFetcher loads stored image bytes
type ImageFetcher interface {
	Fetch(ctx context.Context, url, storageKey string) ([]byte, error)
}

// ExportArchive is a finished archive download
type ExportArchive struct {
	Filename string
	Data     []byte
}

// exportMetadata is written to metadata.json
type exportMetadata struct {
	ExportedAt time.Time        `json:"exported_at"`
	Obituary   *domain.Obituary `json:"obituary"`
	Images     []exportedImage  `json:"images"`
}

type exportedImage struct {
	File string `json:"file"`
	URL  string `json:"url,omitempty"`
	Size int    `json:"size"`
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ExportService builds the downloadable archive of an obituary
type ExportService struct {
	repo    repository.ObituaryRepository
	fetcher ImageFetcher
	now     func() time.Time
}

// NewExportService creates a new ExportService
func NewExportService(repo repository.ObituaryRepository, fetcher ImageFetcher) *ExportService {
	return &ExportService{repo: repo, fetcher: fetcher, now: time.Now}
}

// SetClock replaces the time source
func (s *ExportService) SetClock(now func() time.Time) {
	s.now = now
}

// Export returns a ZIP with the record metadata and its gallery images.
// Images are fetched one at a time and any failure aborts the export.
func (s *ExportService) Export(ctx context.Context, actor domain.Actor, id uint64) (*ExportArchive, error) {
	ctx, span := tracer.Start(ctx, "Obituary.Service.Export")
	defer span.End()
	span.SetAttributes(attribute.Int64("obituary.id", int64(id)))

	obit, err := loadObituary(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !obit.IsOwnedBy(actor.UserID) {
		return nil, common.ErrForbidden
	}

	now := s.now()
	availableAt := domain.ExportAvailableAt(obit.ExportReference())
	if now.Before(availableAt) {
		exportsTotal.WithLabelValues("not_eligible").Inc()
		return nil, &EligibilityError{Action: "archive export", AvailableAt: availableAt}
	}

	data, err := s.build(ctx, obit, now)
	if err != nil {
		span.RecordError(err)
		exportsTotal.WithLabelValues("error").Inc()
		logger.GetLogger().Error().Err(err).Uint64("obituary_id", id).Msg("archive export failed")
		return nil, err
	}

	exportsTotal.WithLabelValues("ok").Inc()
	exportSize.Observe(float64(len(data)))
	return &ExportArchive{
		Filename: fmt.Sprintf("obituary-%d-archive.zip", obit.ID),
		Data:     data,
	}, nil
}

func (s *ExportService) build(ctx context.Context, obit *domain.Obituary, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	meta := exportMetadata{ExportedAt: now, Obituary: obit, Images: []exportedImage{}}
	for i, img := range obit.Gallery {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// rows written before submissions were checked may still name foreign sources
		if err := img.CheckSource(obit.OwnerID); err != nil {
			return nil, fmt.Errorf("%w: image %d: %w", ErrImageFetch, i+1, err)
		}
		body, err := s.fetcher.Fetch(ctx, img.URL, img.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("%w: image %d: %v", ErrImageFetch, i+1, err)
		}

		name := fmt.Sprintf("images/%02d-%s", i+1, imageBaseName(img))
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", name, err)
		}
		if _, err := w.Write(body); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		meta.Images = append(meta.Images, exportedImage{File: name, URL: img.URL, Size: len(body)})
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	w, err := zw.Create("metadata.json")
	if err != nil {
		return nil, fmt.Errorf("add metadata: %w", err)
	}
	if _, err := w.Write(metaJSON); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
	}
	return buf.Bytes(), nil
}

// imageBaseName derives a safe file name from the image URL or storage key
func imageBaseName(img domain.GalleryImage) string {
	src := img.StorageKey
	if img.URL != "" {
		if u, err := url.Parse(img.URL); err == nil && u.Path != "" {
			src = u.Path
		}
	}
	name := unsafeFileChars.ReplaceAllString(path.Base(src), "_")
	if name == "" || name == "." || name == "_" || name == "/" {
		return "image"
	}
	return name
}
