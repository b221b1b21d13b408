// Package guide builds and caches the rolling program guide: a windowed
// forecast of what every channel airs between now and a configured horizon.
package guide

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/catalog"
	"github.com/stwalsh4118/airwave/internal/logger"
	"github.com/stwalsh4118/airwave/internal/models"
	"github.com/stwalsh4118/airwave/internal/resolver"
)

// LiveTimestamper translates wall-clock time into the virtual time an
// on-demand channel should be resolved at. Regular channels pass through.
type LiveTimestamper interface {
	LiveTimestamp(ctx context.Context, channelID uuid.UUID, wallClockMs int64) (int64, error)
}

// BuilderOptions holds the guide shaping thresholds
type BuilderOptions struct {
	// DefaultGuideMinimumMs is used for channels whose own
	// GuideMinimumDurationMs is unset.
	DefaultGuideMinimumMs int64
	// MaxMeldMs caps the accumulated padding melded into one flex run.
	MaxMeldMs int64
	// MaxFlexMs caps any single emitted flex block.
	MaxFlexMs int64
}

// Builder produces one channel's guide programs for a time window
type Builder struct {
	resolver *resolver.RedirectResolver
	catalog  catalog.Lookup
	clock    LiveTimestamper
	opts     BuilderOptions
}

// NewBuilder creates a guide window builder. clock may be nil when no
// on-demand translation is needed.
func NewBuilder(res *resolver.RedirectResolver, cat catalog.Lookup, clock LiveTimestamper, opts BuilderOptions) *Builder {
	return &Builder{
		resolver: res,
		catalog:  cat,
		clock:    clock,
		opts:     opts,
	}
}

// BuildChannel walks the resolver forward from windowStartMs to windowEndMs
// and returns the channel's guide programs: resolved, clamped to the window
// start, melded, and with over-long flex blocks split. Corruption surfaced by
// the resolver aborts this channel's build only.
func (b *Builder) BuildChannel(ctx context.Context, ch *models.Channel, lu *models.Lineup, windowStartMs, windowEndMs int64) ([]models.GuideProgram, error) {
	buildStart := windowStartMs
	var shift int64

	if ch.OnDemand && b.clock != nil {
		virtual, err := b.clock.LiveTimestamp(ctx, ch.ID, windowStartMs)
		if err != nil {
			logger.Log.Warn().
				Err(err).
				Str("channel_id", ch.ID.String()).
				Msg("Failed to get on-demand timestamp; building with wall clock")
		} else {
			shift = windowStartMs - virtual
			buildStart = virtual
		}
	}
	buildEnd := buildStart + (windowEndMs - windowStartMs)

	programs, err := b.walkWindow(ctx, ch, lu, buildStart, buildEnd, shift)
	if err != nil {
		return nil, err
	}

	if err := b.attachPayloads(ctx, programs); err != nil {
		// Metadata is cosmetic; a failed catalog batch degrades to untitled
		// programs rather than failing the channel.
		logger.Log.Warn().
			Err(err).
			Str("channel_id", ch.ID.String()).
			Msg("Failed to attach catalog metadata to guide programs")
	}

	guideMin := ch.GuideMinimumDurationMs
	if guideMin <= 0 {
		guideMin = b.opts.DefaultGuideMinimumMs
	}

	programs = meldPrograms(programs, guideMin, b.opts.MaxMeldMs)
	programs = splitLongFlex(programs, b.opts.MaxFlexMs)

	return programs, nil
}

// walkWindow emits the raw resolved program sequence covering the window
func (b *Builder) walkWindow(ctx context.Context, ch *models.Channel, lu *models.Lineup, startMs, endMs, shift int64) ([]models.GuideProgram, error) {
	var programs []models.GuideProgram
	var hint *resolver.Position

	cur := startMs
	for cur < endMs {
		prog, pos, err := b.resolver.ResolvePlaying(ctx, ch, lu, cur, hint)
		if err != nil {
			return nil, fmt.Errorf("channel %s at %d: %w", ch.ID, cur, err)
		}
		hint = pos

		progStart := prog.StartMs
		progDur := prog.DurationMs
		if progStart < cur {
			// The program straddles the window start; emit only the remainder.
			progDur -= cur - progStart
			progStart = cur
		}
		if progDur <= 0 {
			return nil, fmt.Errorf("channel %s at %d: duration %d: %w",
				ch.ID, cur, progDur, ErrNonPositiveProgram)
		}

		programs = append(programs, b.toGuideProgram(prog, progStart+shift, progStart+progDur+shift))
		cur = progStart + progDur
	}

	return programs, nil
}

// toGuideProgram projects a resolved program onto its guide-facing form
func (b *Builder) toGuideProgram(prog *resolver.ResolvedProgram, startMs, stopMs int64) models.GuideProgram {
	out := models.GuideProgram{
		StartMs: startMs,
		StopMs:  stopMs,
	}

	switch item := prog.Item.(type) {
	case models.ContentItem:
		id := item.ContentID
		out.ContentID = &id
		switch {
		case prog.Redirected:
			out.Kind = models.ProgramKindRedirect
			targetID := prog.Channel.ID
			out.RedirectChannelID = &targetID
		case item.CustomShowID != nil:
			out.Kind = models.ProgramKindCustom
		default:
			out.Kind = models.ProgramKindContent
		}
	case models.OfflineItem:
		out.Kind = models.ProgramKindFlex
		if prog.Redirected {
			targetID := prog.Channel.ID
			out.RedirectChannelID = &targetID
		}
	case models.RedirectItem:
		// A redirect item only survives resolution in degraded form.
		out.Kind = models.ProgramKindFlex
	}

	return out
}

// attachPayloads fills display metadata from the catalog in one batched lookup
func (b *Builder) attachPayloads(ctx context.Context, programs []models.GuideProgram) error {
	if b.catalog == nil {
		return nil
	}

	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for i := range programs {
		if programs[i].ContentID == nil {
			continue
		}
		id := *programs[i].ContentID
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	entries, err := b.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to batch lookup catalog entries: %w", err)
	}

	for i := range programs {
		if programs[i].ContentID == nil {
			continue
		}
		if media, ok := entries[*programs[i].ContentID]; ok {
			programs[i].Title = media.Title
			programs[i].Season = media.Season
			programs[i].Episode = media.Episode
		}
	}
	return nil
}
