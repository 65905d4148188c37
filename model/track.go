package model

import "time"

// TrackManifest is the catalog record of a published HLS ladder, one row per track.
type TrackManifest struct {
	TrackID         string    `gorm:"column:track_id;primaryKey;size:191" json:"trackId"`
	ManifestURL     string    `gorm:"column:manifest_url;size:1024;not null" json:"manifestUrl"`
	DurationSeconds float64   `gorm:"column:duration_seconds" json:"durationSeconds"` // 0 when unknown
	PublishedAt     time.Time `gorm:"column:published_at;not null" json:"publishedAt"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt       time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName pins the table name used by the catalog.
func (TrackManifest) TableName() string {
	return "track_manifests"
}
