package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Media represents a media item in the catalog. The scheduling engine only
// reads display metadata from it when materializing guide programs; ingest and
// probing live outside this service.
type Media struct {
	ID         uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	Title      string    `json:"title" gorm:"type:text;not null;column:title" validate:"required"`
	ShowName   *string   `json:"show_name,omitempty" gorm:"type:text;column:show_name"`
	Season     *int      `json:"season,omitempty" gorm:"type:integer;column:season"`
	Episode    *int      `json:"episode,omitempty" gorm:"type:integer;column:episode"`
	DurationMs int64     `json:"duration_ms" gorm:"type:integer;not null;column:duration_ms" validate:"required,gt=0"`
	CreatedAt  time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// NewMedia creates a new Media with generated UUID and timestamp
func NewMedia(title string, durationMs int64) *Media {
	return &Media{
		ID:         uuid.New(),
		Title:      title,
		DurationMs: durationMs,
		CreatedAt:  time.Now().UTC(),
	}
}

// DurationString returns the duration in HH:MM:SS format
func (m *Media) DurationString() string {
	seconds := m.DurationMs / 1000
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
