package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CurrentLineupVersion is the schema version new and migrated lineups are
// persisted at.
const CurrentLineupVersion = 2

// ItemKind discriminates the lineup item variants
type ItemKind string

const (
	// ItemKindContent references a playable media item
	ItemKindContent ItemKind = "content"
	// ItemKindOffline is flex filler with no backing content
	ItemKindOffline ItemKind = "offline"
	// ItemKindRedirect plays whatever is airing on another channel
	ItemKindRedirect ItemKind = "redirect"
)

// LineupItem is one scheduled unit on a channel. The variant set is closed:
// ContentItem, OfflineItem and RedirectItem are the only implementations, so
// type switches over LineupItem can be exhaustive.
type LineupItem interface {
	Kind() ItemKind
	// ItemDurationMs returns the scheduled duration of this item in
	// milliseconds. Always > 0 for a valid lineup.
	ItemDurationMs() int64
}

// ContentItem references a playable media item
type ContentItem struct {
	DurationMs int64
	ContentID  uuid.UUID
	// CustomShowID optionally ties the item to a rotation show for ordering
	// metadata.
	CustomShowID *uuid.UUID
}

// Kind implements LineupItem
func (i ContentItem) Kind() ItemKind { return ItemKindContent }

// ItemDurationMs implements LineupItem
func (i ContentItem) ItemDurationMs() int64 { return i.DurationMs }

// OfflineItem is flex filler time with no backing content
type OfflineItem struct {
	DurationMs int64
}

// Kind implements LineupItem
func (i OfflineItem) Kind() ItemKind { return ItemKindOffline }

// ItemDurationMs implements LineupItem
func (i OfflineItem) ItemDurationMs() int64 { return i.DurationMs }

// RedirectItem defers to another channel's current program for its duration
type RedirectItem struct {
	DurationMs      int64
	TargetChannelID uuid.UUID
}

// Kind implements LineupItem
func (i RedirectItem) Kind() ItemKind { return ItemKindRedirect }

// ItemDurationMs implements LineupItem
func (i RedirectItem) ItemDurationMs() int64 { return i.DurationMs }

// OnDemandPlayState enumerates the on-demand cursor states
type OnDemandPlayState string

const (
	// OnDemandPlaying means the channel cursor advances with wall-clock time
	OnDemandPlaying OnDemandPlayState = "playing"
	// OnDemandPaused means the channel cursor is frozen
	OnDemandPaused OnDemandPlayState = "paused"
)

// OnDemandState holds the pause/resume cursor for an on-demand channel.
// CursorMs is elapsed lineup time, not wall-clock time, and is always kept in
// [0, channel.DurationMs).
type OnDemandState struct {
	State    OnDemandPlayState `json:"state"`
	CursorMs int64             `json:"cursor_ms"`
	// LastPausedMs and LastResumedMs are epoch milliseconds; zero means never.
	LastPausedMs  int64 `json:"last_paused_ms,omitempty"`
	LastResumedMs int64 `json:"last_resumed_ms,omitempty"`
}

// Lineup is the ordered, repeating sequence of items that defines what a
// channel plays, together with its cumulative-duration offset table.
type Lineup struct {
	Items []LineupItem

	// Offsets is a running-sum array of length len(Items)+1: Offsets[0] == 0
	// and Offsets[i+1] == Offsets[i] + Items[i].ItemDurationMs(). Recomputed by
	// the lineup store on every save; callers never hand-edit it.
	Offsets []int64

	Version     int
	LastUpdated time.Time
	OnDemand    *OnDemandState
}

// NewLineup creates an empty lineup at the current schema version
func NewLineup() *Lineup {
	return &Lineup{
		Items:       []LineupItem{},
		Offsets:     []int64{0},
		Version:     CurrentLineupVersion,
		LastUpdated: time.Now().UTC(),
	}
}

// TotalDurationMs returns the duration of one full lineup cycle
func (l *Lineup) TotalDurationMs() int64 {
	if len(l.Offsets) == 0 {
		return 0
	}
	return l.Offsets[len(l.Offsets)-1]
}

// RecomputeOffsets rebuilds the offset table from the item durations
func (l *Lineup) RecomputeOffsets() {
	offsets := make([]int64, len(l.Items)+1)
	for i, item := range l.Items {
		offsets[i+1] = offsets[i] + item.ItemDurationMs()
	}
	l.Offsets = offsets
}

// lineupItemEnvelope is the persisted wire form of a LineupItem
type lineupItemEnvelope struct {
	Kind            ItemKind   `json:"kind"`
	DurationMs      int64      `json:"duration_ms"`
	ContentID       *uuid.UUID `json:"content_id,omitempty"`
	CustomShowID    *uuid.UUID `json:"custom_show_id,omitempty"`
	TargetChannelID *uuid.UUID `json:"target_channel_id,omitempty"`
}

// lineupJSON is the persisted wire form of a Lineup
type lineupJSON struct {
	Items       []lineupItemEnvelope `json:"items"`
	Offsets     []int64              `json:"offsets"`
	Version     int                  `json:"version"`
	LastUpdated time.Time            `json:"last_updated"`
	OnDemand    *OnDemandState       `json:"on_demand,omitempty"`
}

// MarshalJSON encodes the lineup with tagged item envelopes
func (l *Lineup) MarshalJSON() ([]byte, error) {
	out := lineupJSON{
		Items:       make([]lineupItemEnvelope, 0, len(l.Items)),
		Offsets:     l.Offsets,
		Version:     l.Version,
		LastUpdated: l.LastUpdated,
		OnDemand:    l.OnDemand,
	}
	for _, item := range l.Items {
		env := lineupItemEnvelope{Kind: item.Kind(), DurationMs: item.ItemDurationMs()}
		switch it := item.(type) {
		case ContentItem:
			id := it.ContentID
			env.ContentID = &id
			env.CustomShowID = it.CustomShowID
		case OfflineItem:
			// duration only
		case RedirectItem:
			id := it.TargetChannelID
			env.TargetChannelID = &id
		default:
			return nil, fmt.Errorf("unknown lineup item kind %q", item.Kind())
		}
		out.Items = append(out.Items, env)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the lineup from its tagged item envelopes
func (l *Lineup) UnmarshalJSON(data []byte) error {
	var raw lineupJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	items := make([]LineupItem, 0, len(raw.Items))
	for i, env := range raw.Items {
		item, err := env.toItem()
		if err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, item)
	}
	l.Items = items
	l.Offsets = raw.Offsets
	l.Version = raw.Version
	l.LastUpdated = raw.LastUpdated
	l.OnDemand = raw.OnDemand
	return nil
}

// toItem converts a persisted envelope back into its closed variant
func (e lineupItemEnvelope) toItem() (LineupItem, error) {
	switch e.Kind {
	case ItemKindContent:
		if e.ContentID == nil {
			return nil, fmt.Errorf("content item missing content_id")
		}
		return ContentItem{DurationMs: e.DurationMs, ContentID: *e.ContentID, CustomShowID: e.CustomShowID}, nil
	case ItemKindOffline:
		return OfflineItem{DurationMs: e.DurationMs}, nil
	case ItemKindRedirect:
		if e.TargetChannelID == nil {
			return nil, fmt.Errorf("redirect item missing target_channel_id")
		}
		return RedirectItem{DurationMs: e.DurationMs, TargetChannelID: *e.TargetChannelID}, nil
	default:
		return nil, fmt.Errorf("unknown lineup item kind %q", e.Kind)
	}
}
