// Package resolver answers "what is airing on this channel at this instant",
// creating the illusion of a continuously broadcasting television channel from
// an ordered, repeating lineup.
package resolver

import (
	"fmt"
	"sort"

	"github.com/stwalsh4118/airwave/internal/models"
)

// syntheticFlexMs is the span of the flex item synthesized for a channel with
// an empty lineup: one month, long enough that any realistic guide window fits
// inside a single degenerate program.
const syntheticFlexMs int64 = 30 * 24 * 60 * 60 * 1000

// Position is the resolved playback position of a channel at one instant
type Position struct {
	// Index is the lineup item index, or -1 for a synthesized item (pre-start
	// gap or empty lineup).
	Index int

	// Item is the airing lineup item. For synthesized positions this is an
	// OfflineItem not present in the lineup.
	Item models.LineupItem

	// StartMs is the absolute epoch millisecond the item started airing.
	StartMs int64
}

// Synthetic reports whether the position was synthesized rather than resolved
// from the lineup.
func (p *Position) Synthetic() bool {
	return p.Index < 0
}

// Resolve computes the item airing on a channel at atMs.
//
// Before the channel's start time it synthesizes a flex item spanning the gap
// up to the start. An empty lineup yields a month-long synthetic flex item
// starting at atMs. Otherwise the position is found by binary search over the
// cumulative offset table: progress within the current cycle falls in exactly
// one half-open interval [Offsets[i], Offsets[i+1]), and a progress exactly on
// a boundary resolves to the item that starts there.
func Resolve(ch *models.Channel, lu *models.Lineup, atMs int64) (*Position, error) {
	if atMs < ch.StartTimeMs {
		return &Position{
			Index:   -1,
			Item:    models.OfflineItem{DurationMs: ch.StartTimeMs - atMs},
			StartMs: atMs,
		}, nil
	}

	if len(lu.Items) == 0 {
		return &Position{
			Index:   -1,
			Item:    models.OfflineItem{DurationMs: syntheticFlexMs},
			StartMs: atMs,
		}, nil
	}

	if len(lu.Offsets) != len(lu.Items)+1 {
		return nil, fmt.Errorf("channel %s: offsets len %d for %d items: %w",
			ch.ID, len(lu.Offsets), len(lu.Items), ErrOffsetDesync)
	}

	total := lu.TotalDurationMs()
	if total <= 0 {
		return nil, fmt.Errorf("channel %s: total duration %d: %w", ch.ID, total, ErrInvalidCycleDuration)
	}

	progress := (atMs - ch.StartTimeMs) % total
	cycleStart := atMs - progress

	// Greatest i with Offsets[i] <= progress < Offsets[i+1]
	i := sort.Search(len(lu.Items), func(i int) bool {
		return lu.Offsets[i+1] > progress
	})

	if i >= len(lu.Items) || lu.Offsets[i] > progress {
		return nil, fmt.Errorf("channel %s: search for progress %d landed at %d: %w",
			ch.ID, progress, i, ErrOffsetDesync)
	}

	return &Position{
		Index:   i,
		Item:    lu.Items[i],
		StartMs: cycleStart + lu.Offsets[i],
	}, nil
}

// Advance resolves the position at atMs, taking the sequential fast path when
// atMs is exactly where the previously resolved item ends: the next item (mod
// lineup length) starts there, no search needed. This is the common case
// during guide building and produces results identical to a fresh Resolve.
func Advance(ch *models.Channel, lu *models.Lineup, prev *Position, atMs int64) (*Position, error) {
	if prev != nil && !prev.Synthetic() && prev.Index < len(lu.Items) {
		dur := prev.Item.ItemDurationMs()
		if dur == lu.Items[prev.Index].ItemDurationMs() && prev.StartMs+dur == atMs {
			next := (prev.Index + 1) % len(lu.Items)
			return &Position{
				Index:   next,
				Item:    lu.Items[next],
				StartMs: atMs,
			}, nil
		}
	}

	return Resolve(ch, lu, atMs)
}
