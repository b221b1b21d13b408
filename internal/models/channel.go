package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel represents a virtual TV channel entity
type Channel struct {
	ID     uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	Number int       `json:"number" gorm:"type:integer;not null;uniqueIndex;column:number" validate:"required,gt=0"`
	Name   string    `json:"name" gorm:"type:text;not null;column:name" validate:"required,min=1,max=255"`
	Icon   *string   `json:"icon,omitempty" gorm:"type:text;column:icon"`

	// StartTimeMs is the epoch millisecond at which cycle 0 of the lineup begins.
	// The lineup conceptually repeats every DurationMs thereafter.
	StartTimeMs int64 `json:"start_time_ms" gorm:"type:integer;not null;column:start_time_ms"`

	// DurationMs is the total duration of one lineup cycle, denormalized from the
	// lineup's offset table on every lineup save.
	DurationMs int64 `json:"duration_ms" gorm:"type:integer;not null;default:0;column:duration_ms"`

	// GuideMinimumDurationMs is the per-channel threshold at or below which a
	// guide program is treated as filler and melded into adjacent flex blocks.
	GuideMinimumDurationMs int64 `json:"guide_minimum_duration_ms" gorm:"type:integer;not null;default:0;column:guide_minimum_duration_ms"`

	// Stealth channels are excluded from the published guide but remain
	// resolvable for playback and redirects.
	Stealth bool `json:"stealth" gorm:"type:integer;not null;default:0;column:stealth"`

	// OnDemand channels advance via an explicit pause/resume cursor instead of
	// continuous wall-clock time.
	OnDemand bool `json:"on_demand" gorm:"type:integer;not null;default:0;column:on_demand"`

	CreatedAt time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`
}

// NewChannel creates a new Channel with generated UUID and timestamps
func NewChannel(number int, name string, startTimeMs int64) *Channel {
	now := time.Now().UTC()
	return &Channel{
		ID:          uuid.New(),
		Number:      number,
		Name:        name,
		StartTimeMs: startTimeMs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// StartTime returns the channel start as a UTC time.Time
func (c *Channel) StartTime() time.Time {
	return time.UnixMilli(c.StartTimeMs).UTC()
}
