package models

import (
	"github.com/google/uuid"
)

// ProgramKind classifies a resolved guide program
type ProgramKind string

const (
	// ProgramKindContent is a program backed by a media item
	ProgramKindContent ProgramKind = "content"
	// ProgramKindFlex is filler time (offline items, pre-start gaps, melded runs)
	ProgramKindFlex ProgramKind = "flex"
	// ProgramKindRedirect is a program resolved through another channel
	ProgramKindRedirect ProgramKind = "redirect"
	// ProgramKindCustom is a content program belonging to a custom rotation show
	ProgramKindCustom ProgramKind = "custom"
)

// GuideProgram is a resolved, guide-facing projection of a lineup slice.
// Produced only by the guide window builder and never persisted; it is a
// read-only cache value.
type GuideProgram struct {
	StartMs int64       `json:"start_ms"`
	StopMs  int64       `json:"stop_ms"`
	Kind    ProgramKind `json:"kind"`

	// Payload fields, populated from the media catalog for content programs.
	Title     string     `json:"title,omitempty"`
	ContentID *uuid.UUID `json:"content_id,omitempty"`
	Season    *int       `json:"season,omitempty"`
	Episode   *int       `json:"episode,omitempty"`

	// RedirectChannelID is the channel the program was resolved through, for
	// redirect-derived entries.
	RedirectChannelID *uuid.UUID `json:"redirect_channel_id,omitempty"`
}

// DurationMs returns the program length in milliseconds
func (p GuideProgram) DurationMs() int64 {
	return p.StopMs - p.StartMs
}

// ChannelGuide is one channel's slice of the published guide
type ChannelGuide struct {
	Channel  *Channel       `json:"channel"`
	Programs []GuideProgram `json:"programs"`
}

// CachedGuide is the atomically published guide snapshot. It is rebuilt
// wholesale on every refresh and never mutated in place.
type CachedGuide struct {
	Channels    map[uuid.UUID]*ChannelGuide `json:"channels"`
	BuiltAtMs   int64                       `json:"built_at_ms"`
	WindowEndMs int64                       `json:"window_end_ms"`
}
