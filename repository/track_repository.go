package repository

import (
	"context"
	"errors"
	"fmt"

	"hlsladder/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogRepository records published manifests against track identifiers.
type CatalogRepository interface {
	// UpsertManifest inserts or updates the record; calling it repeatedly with
	// the same arguments leaves the row unchanged.
	UpsertManifest(ctx context.Context, rec *model.TrackManifest) error
	GetManifest(ctx context.Context, trackID string) (*model.TrackManifest, error)
}

// gormCatalogRepository implements CatalogRepository with GORM.
type gormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository creates a repository over db.
func NewGormCatalogRepository(db *gorm.DB) CatalogRepository {
	return &gormCatalogRepository{db: db}
}

func (r *gormCatalogRepository) UpsertManifest(ctx context.Context, rec *model.TrackManifest) error {
	if rec.TrackID == "" {
		return fmt.Errorf("upsert manifest: empty track id")
	}

	columns := []string{"manifest_url", "published_at", "updated_at"}
	if rec.DurationSeconds > 0 {
		columns = append(columns, "duration_seconds")
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "track_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to upsert manifest for track %s: %w", rec.TrackID, err)
	}
	return nil
}

func (r *gormCatalogRepository) GetManifest(ctx context.Context, trackID string) (*model.TrackManifest, error) {
	var rec model.TrackManifest
	err := r.db.WithContext(ctx).Where("track_id = ?", trackID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get manifest for track %s: %w", trackID, err)
	}
	return &rec, nil
}
