package repository

import (
	"context"
	"time"

	"github.com/anime-shed/street-inspector-go/internal/storage"
)

// ImageRepository fetches remote images for analysis
type ImageRepository interface {
	// FetchImage downloads an image and reports its content type
	FetchImage(ctx context.Context, imageURL string) (*storage.FetchedImage, error)

	// ValidateImageURL validates if the provided URL is acceptable
	ValidateImageURL(imageURL string) error
}

// AnalysisRepository stores the outcome of each analysis
type AnalysisRepository interface {
	// SaveAnalysis stores a record
	SaveAnalysis(ctx context.Context, record *AnalysisRecord) error

	// GetAnalysis retrieves a stored record by id
	GetAnalysis(ctx context.Context, id string) (*AnalysisRecord, error)

	// ListRecent returns the newest records first
	ListRecent(ctx context.Context, limit int) ([]AnalysisRecord, error)
}

// AnalysisRecord is one persisted analysis. Annotated images are not kept.
type AnalysisRecord struct {
	ID                string    `gorm:"column:id;primaryKey;size:36" json:"id"`
	Source            string    `gorm:"column:source;size:16" json:"source"`
	ImageURL          string    `gorm:"column:image_url;type:text" json:"image_url"`
	ClassLabel        string    `gorm:"column:class_label;size:16;index" json:"class_label"`
	Confidence        float64   `gorm:"column:confidence" json:"confidence"`
	Notification      string    `gorm:"column:notification;size:16" json:"notification"`
	NotificationError string    `gorm:"column:notification_error;type:text" json:"notification_error,omitempty"`
	AnnotationError   string    `gorm:"column:annotation_error;type:text" json:"annotation_error,omitempty"`
	ProcessingTimeMS  int64     `gorm:"column:processing_time_ms" json:"processing_time_ms"`
	CreatedAt         time.Time `gorm:"column:created_at;index" json:"created_at"`
}

// TableName overrides the default table name.
func (AnalysisRecord) TableName() string {
	return "analyses"
}
