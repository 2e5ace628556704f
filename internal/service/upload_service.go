package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif" // GIF decoder for image.DecodeConfig
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/remembrance/memorial-backend/internal/common"
	"github.com/remembrance/memorial-backend/internal/domain"
	pkglogger "github.com/remembrance/memorial-backend/pkg/logger"
	"github.com/remembrance/memorial-backend/pkg/storage"
)

// ObjectUploader stores uploaded bytes
type ObjectUploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string, size int64) (*storage.UploadResult, error)
}

// UploadedImage is what a client puts into portrait_url / gallery on submission
type UploadedImage struct {
	URL         string `json:"url"`
	StorageKey  string `json:"storage_key"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

// DefaultMaxImagePixels bounds width*height of an accepted upload
const DefaultMaxImagePixels = 40_000_000

// ImageUploadService validates, downsizes and stores obituary images
type ImageUploadService struct {
	uploader  ObjectUploader
	maxBytes  int64
	maxWidth  int
	maxPixels int64
	now       func() time.Time
}

// NewImageUploadService creates an ImageUploadService. A nil uploader disables uploads.
func NewImageUploadService(uploader ObjectUploader, maxBytes int64, maxWidth int) *ImageUploadService {
	return &ImageUploadService{
		uploader: uploader,
		maxBytes: maxBytes,
		maxWidth:  maxWidth,
		maxPixels: DefaultMaxImagePixels,
		now:       time.Now,
	}
}

// WithMaxPixels overrides the pixel budget checked before an image is decoded.
// n <= 0 keeps the default.
func (s *ImageUploadService) WithMaxPixels(n int64) *ImageUploadService {
	if n > 0 {
		s.maxPixels = n
	}
	return s
}

// MaxBytes is the largest accepted upload
func (s *ImageUploadService) MaxBytes() int64 {
	return s.maxBytes
}

// UploadImage stores one image for the caller. JPEG and PNG wider than the
// configured width are scaled down and re-encoded; GIF and WebP are stored as sent.
func (s *ImageUploadService) UploadImage(ctx context.Context, actor domain.Actor, filename string, data []byte) (*UploadedImage, error) {
	ctx, span := tracer.Start(ctx, "Obituary.Service.UploadImage")
	defer span.End()

	if s.uploader == nil {
		return nil, ErrStorageDisabled
	}
	if actor.UserID == "" {
		return nil, common.ErrUnauthorized
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", common.ErrInvalidInput)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", common.ErrInvalidInput, s.maxBytes)
	}

	ext := strings.ToLower(path.Ext(filename))
	if !isImageExt(ext) {
		return nil, fmt.Errorf("%w: unsupported image format %q", common.ErrInvalidInput, ext)
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: file is not an image", common.ErrInvalidInput)
	}

	if err := s.checkDimensions(data, contentType); err != nil {
		imageUploadsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	body, width, height, contentType := s.process(data, contentType)
	switch contentType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	}

	key := storage.GenerateKey(strings.TrimSuffix(domain.UploadKeyPrefix(actor.UserID), "/"), "image"+ext, s.now())
	res, err := s.uploader.Upload(ctx, key, bytes.NewReader(body), contentType, int64(len(body)))
	if err != nil {
		span.RecordError(err)
		imageUploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("store image: %w", err)
	}
	imageUploadsTotal.WithLabelValues("ok").Inc()

	pkglogger.GetLogger().Info().
		Str("user_id", actor.UserID).
		Str("key", res.Key).
		Int("size", len(body)).
		Msg("obituary image uploaded")

	return &UploadedImage{
		URL:         res.URL,
		StorageKey:  key,
		ContentType: contentType,
		Size:        int64(len(body)),
		Width:       width,
		Height:      height,
	}, nil
}

// checkDimensions reads only the image header, so a small file declaring a huge
// canvas is refused before any pixel buffer is allocated. JPEG and PNG must have a
// readable header since they are decoded afterwards.
func (s *ImageUploadService) checkDimensions(data []byte, contentType string) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if contentType == "image/jpeg" || contentType == "image/png" {
			return fmt.Errorf("%w: unreadable image: %v", common.ErrInvalidInput, err)
		}
		return nil
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: image has no pixels", common.ErrInvalidInput)
	}
	if s.maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > s.maxPixels {
		return fmt.Errorf("%w: image is %dx%d pixels, limit is %d", common.ErrInvalidInput, cfg.Width, cfg.Height, s.maxPixels)
	}
	return nil
}

// process decodes JPEG/PNG, downsizes when needed and re-encodes. Anything it
// cannot decode is returned unchanged.
func (s *ImageUploadService) process(data []byte, contentType string) ([]byte, int, int, string) {
	if contentType != "image/jpeg" && contentType != "image/png" {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return data, 0, 0, contentType
		}
		return data, cfg.Width, cfg.Height, contentType
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, 0, 0, contentType
	}
	bounds := img.Bounds()
	if s.maxWidth <= 0 || bounds.Dx() <= s.maxWidth {
		return data, bounds.Dx(), bounds.Dy(), contentType
	}

	img = resizeImage(img, s.maxWidth)
	var buf bytes.Buffer
	if format == "png" {
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return data, bounds.Dx(), bounds.Dy(), contentType
	}
	b := img.Bounds()
	return buf.Bytes(), b.Dx(), b.Dy(), contentType
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}

// resizeImage scales img down to maxWidth with nearest-neighbour sampling
func resizeImage(img image.Image, maxWidth int) image.Image {
	bounds := img.Bounds()
	origWidth := bounds.Dx()
	origHeight := bounds.Dy()

	newWidth := maxWidth
	newHeight := origHeight * newWidth / origWidth
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	for y := 0; y < newHeight; y++ {
		for x := 0; x < newWidth; x++ {
			srcX := x * origWidth / newWidth
			srcY := y * origHeight / newHeight
			dst.Set(x, y, img.At(bounds.Min.X+srcX, bounds.Min.Y+srcY))
		}
	}
	return dst
}
