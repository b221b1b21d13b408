package resolver

import (
	"context"

	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/logger"
	"github.com/stwalsh4118/airwave/internal/models"
)

// ChannelSource loads other channels and their lineups while following
// redirects. During guide builds this is backed by the refresh snapshot so a
// whole build pass sees one consistent view.
type ChannelSource interface {
	Channel(ctx context.Context, id uuid.UUID) (*models.Channel, error)
	Lineup(ctx context.Context, id uuid.UUID) (*models.Lineup, error)
}

// ResolvedProgram is the final airing program after redirect resolution
type ResolvedProgram struct {
	// Channel is the channel whose item ultimately airs; for degraded
	// redirects it is the redirecting channel itself.
	Channel *models.Channel

	Item       models.LineupItem
	StartMs    int64
	DurationMs int64

	// Redirected is true when the program was reached through (or degraded
	// from) a RedirectItem. The guide treats redirected programs as flex-like
	// for melding.
	Redirected bool
}

// EndMs returns the absolute end of the program's effective window
func (p *ResolvedProgram) EndMs() int64 {
	return p.StartMs + p.DurationMs
}

// RedirectResolver wraps position resolution with channel-to-channel redirect
// following, cycle detection, and window intersection across the chain.
type RedirectResolver struct {
	source ChannelSource
}

// NewRedirectResolver creates a redirect resolver over a channel source
func NewRedirectResolver(source ChannelSource) *RedirectResolver {
	return &RedirectResolver{source: source}
}

// ResolvePlaying resolves the program airing on a channel at atMs, following
// redirects. prev is an optional fast-path hint from the previous sequential
// resolution of the same channel; the returned Position is the new hint.
//
// Redirect loops and dangling targets degrade to the redirecting item's own
// offline representation rather than failing; only corruption of the starting
// channel's lineup is returned as an error.
func (r *RedirectResolver) ResolvePlaying(ctx context.Context, ch *models.Channel, lu *models.Lineup, atMs int64, prev *Position) (*ResolvedProgram, *Position, error) {
	pos, err := Advance(ch, lu, prev, atMs)
	if err != nil {
		return nil, nil, err
	}

	dur := pos.Item.ItemDurationMs()

	redirect, ok := pos.Item.(models.RedirectItem)
	if !ok {
		return &ResolvedProgram{
			Channel:    ch,
			Item:       pos.Item,
			StartMs:    pos.StartMs,
			DurationMs: dur,
		}, pos, nil
	}

	visited := map[uuid.UUID]struct{}{ch.ID: {}}
	resolved := r.followRedirect(ctx, ch, redirect, pos.StartMs, dur, atMs, visited)
	return resolved, pos, nil
}

// followRedirect resolves one RedirectItem into the target channel's airing
// program, intersecting the redirecting window [startMs, startMs+durMs) with
// the target's own window. visited accumulates the channel IDs already on the
// chain; each recursion level passes down a fresh copy so concurrent
// resolutions never share mutable state.
func (r *RedirectResolver) followRedirect(ctx context.Context, origin *models.Channel, item models.RedirectItem, startMs, durMs, atMs int64, visited map[uuid.UUID]struct{}) *ResolvedProgram {
	fallback := &ResolvedProgram{
		Channel:    origin,
		Item:       models.OfflineItem{DurationMs: durMs},
		StartMs:    startMs,
		DurationMs: durMs,
		Redirected: true,
	}

	if _, seen := visited[item.TargetChannelID]; seen {
		logger.Log.Warn().
			Str("channel_id", origin.ID.String()).
			Str("target_channel_id", item.TargetChannelID.String()).
			Int("chain_length", len(visited)).
			Msg("Redirect loop detected; degrading to offline")
		return fallback
	}

	target, err := r.source.Channel(ctx, item.TargetChannelID)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("channel_id", origin.ID.String()).
			Str("target_channel_id", item.TargetChannelID.String()).
			Msg("Dangling redirect target; degrading to offline")
		return fallback
	}

	targetLineup, err := r.source.Lineup(ctx, target.ID)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("channel_id", origin.ID.String()).
			Str("target_channel_id", target.ID.String()).
			Msg("Failed to load redirect target lineup; degrading to offline")
		return fallback
	}

	pos, err := Resolve(target, targetLineup, atMs)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("channel_id", origin.ID.String()).
			Str("target_channel_id", target.ID.String()).
			Msg("Failed to resolve redirect target; degrading to offline")
		return fallback
	}

	inner := &ResolvedProgram{
		Channel:    target,
		Item:       pos.Item,
		StartMs:    pos.StartMs,
		DurationMs: pos.Item.ItemDurationMs(),
		Redirected: true,
	}

	if nested, ok := pos.Item.(models.RedirectItem); ok {
		next := make(map[uuid.UUID]struct{}, len(visited)+1)
		for id := range visited {
			next[id] = struct{}{}
		}
		next[target.ID] = struct{}{}
		inner = r.followRedirect(ctx, target, nested, pos.StartMs, inner.DurationMs, atMs, next)
	}

	// A redirect never reports a longer program than either channel's own
	// scheduling allows: intersect the two windows.
	start := startMs
	if inner.StartMs > start {
		start = inner.StartMs
	}
	end := startMs + durMs
	if inner.EndMs() < end {
		end = inner.EndMs()
	}

	if end <= start {
		logger.Log.Warn().
			Str("channel_id", origin.ID.String()).
			Str("target_channel_id", item.TargetChannelID.String()).
			Int64("at_ms", atMs).
			Msg("Redirect windows do not intersect; degrading to offline")
		return fallback
	}

	return &ResolvedProgram{
		Channel:    inner.Channel,
		Item:       inner.Item,
		StartMs:    start,
		DurationMs: end - start,
		Redirected: true,
	}
}
