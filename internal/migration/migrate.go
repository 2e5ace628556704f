package migration

import (
	"fmt"
	"strings"

	"github.com/remembrance/memorial-backend/internal/domain"
	pkglogger "github.com/remembrance/memorial-backend/pkg/logger"
	"gorm.io/gorm"
)

// Run creates or updates the obituary tables. Existing columns are never dropped.
func Run(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.Obituary{},
		&domain.Comment{},
		&domain.Notification{},
		&domain.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Report summarizes what NormalizeLegacy changed (or would change in dry-run mode)
type Report struct {
	GalleryFixed           int64    `json:"gallery_fixed"`
	StatusFixed            int64    `json:"status_fixed"`
	PublishedBackfilled    int64    `json:"published_backfilled"`
	MemorializedBackfilled int64    `json:"memorialized_backfilled"`
	UnknownStatusIDs       []uint64 `json:"unknown_status_ids,omitempty"`
}

// Changed reports whether any row needed rewriting
func (r *Report) Changed() bool {
	return r.GalleryFixed+r.StatusFixed+r.PublishedBackfilled+r.MemorializedBackfilled > 0
}

// NormalizeLegacy rewrites rows imported from the previous system so the lifecycle
// engine can handle them:
//   - a NULL or JSON null gallery becomes an empty list
//   - status values are trimmed and lower-cased; values that are still unknown are reported, not touched
//   - published or later rows without published_at take created_at
//   - memorialized or archived rows without memorialized_at take updated_at
//
// With dryRun set nothing is written and the report holds the number of matching rows.
func NormalizeLegacy(db *gorm.DB, dryRun bool) (*Report, error) {
	report := &Report{}

	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		if report.GalleryFixed, err = fixGallery(tx, dryRun); err != nil {
			return fmt.Errorf("gallery: %w", err)
		}
		if err := fixStatus(tx, dryRun, report); err != nil {
			return fmt.Errorf("status: %w", err)
		}
		if report.PublishedBackfilled, err = backfill(tx, dryRun, "published_at", "created_at",
			domain.StatusPublished, domain.StatusMemorialized, domain.StatusArchived); err != nil {
			return fmt.Errorf("published_at: %w", err)
		}
		if report.MemorializedBackfilled, err = backfill(tx, dryRun, "memorialized_at", "updated_at",
			domain.StatusMemorialized, domain.StatusArchived); err != nil {
			return fmt.Errorf("memorialized_at: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	pkglogger.GetLogger().Info().
		Bool("dry_run", dryRun).
		Int64("gallery_fixed", report.GalleryFixed).
		Int64("status_fixed", report.StatusFixed).
		Int64("published_backfilled", report.PublishedBackfilled).
		Int64("memorialized_backfilled", report.MemorializedBackfilled).
		Int("unknown_status", len(report.UnknownStatusIDs)).
		Msg("legacy normalization finished")

	return report, nil
}

func fixGallery(tx *gorm.DB, dryRun bool) (int64, error) {
	// MySQL stores the column as JSON, where a JSON null is not equal to the string 'null'
	nullGallery := "gallery IS NULL OR gallery = 'null' OR gallery = ''"
	if tx.Dialector.Name() == "mysql" {
		nullGallery = "gallery IS NULL OR JSON_TYPE(gallery) = 'NULL'"
	}

	q := tx.Model(&domain.Obituary{}).Where(nullGallery)
	if dryRun {
		var n int64
		err := q.Count(&n).Error
		return n, err
	}
	res := q.UpdateColumn("gallery", "[]")
	return res.RowsAffected, res.Error
}

// fixStatus compares statuses in Go. MySQL's default collations are case-insensitive,
// so a SQL filter like status NOT IN (...) would skip 'Published'.
func fixStatus(tx *gorm.DB, dryRun bool, report *Report) error {
	type statusRow struct {
		ID     uint64
		Status string
	}
	var rows []statusRow
	fixes := map[uint64]domain.ObituaryStatus{}

	err := tx.Model(&domain.Obituary{}).
		Select("id", "status").
		FindInBatches(&rows, 500, func(_ *gorm.DB, _ int) error {
			for _, row := range rows {
				if domain.ObituaryStatus(row.Status).Valid() {
					continue
				}
				normalized := domain.ObituaryStatus(strings.ToLower(strings.TrimSpace(row.Status)))
				if !normalized.Valid() {
					report.UnknownStatusIDs = append(report.UnknownStatusIDs, row.ID)
					pkglogger.GetLogger().Warn().
						Uint64("obituary_id", row.ID).
						Str("status", row.Status).
						Msg("unknown legacy status left unchanged")
					continue
				}
				fixes[row.ID] = normalized
			}
			return nil
		}).Error
	if err != nil {
		return err
	}

	report.StatusFixed = int64(len(fixes))
	if dryRun {
		return nil
	}
	for id, status := range fixes {
		if err := tx.Model(&domain.Obituary{}).
			Where("id = ?", id).
			UpdateColumn("status", status).Error; err != nil {
			return err
		}
	}
	return nil
}

// backfill copies source into an empty column for rows in one of statuses
func backfill(tx *gorm.DB, dryRun bool, column, source string, statuses ...domain.ObituaryStatus) (int64, error) {
	q := tx.Model(&domain.Obituary{}).
		Where("status IN ?", statuses).
		Where(column + " IS NULL")
	if dryRun {
		var n int64
		err := q.Count(&n).Error
		return n, err
	}
	res := q.UpdateColumn(column, gorm.Expr(source))
	return res.RowsAffected, res.Error
}
