// Package ondemand implements the pause/resume cursor for on-demand channels.
// Instead of advancing with wall-clock time, an on-demand channel's playhead
// is a virtual elapsed cursor that freezes while paused; the cursor is
// translated back into a virtual timestamp so the same position resolver
// serves both regular and on-demand channels uniformly.
package ondemand

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/db"
	"github.com/stwalsh4118/airwave/internal/lineup"
	"github.com/stwalsh4118/airwave/internal/logger"
	"github.com/stwalsh4118/airwave/internal/models"
)

// Service handles pause/resume state transitions for on-demand channels
type Service struct {
	store    *lineup.Store
	channels *db.ChannelRepository
}

// NewService creates a new on-demand cursor service
func NewService(store *lineup.Store, channels *db.ChannelRepository) *Service {
	return &Service{
		store:    store,
		channels: channels,
	}
}

// Pause freezes the channel's cursor at atMs. The elapsed play time since the
// last resume is folded into the cursor modulo the cycle duration; if the
// lineup's programming changed while playing, the stale resume point is
// discarded and the cursor resets to zero.
func (s *Service) Pause(ctx context.Context, channelID uuid.UUID, atMs int64) error {
	ch, lu, err := s.loadOnDemand(ctx, channelID)
	if err != nil {
		return err
	}

	state := lu.OnDemand
	if state == nil {
		state = &models.OnDemandState{State: models.OnDemandPlaying}
	}

	if state.State == models.OnDemandPaused {
		logger.Log.Debug().
			Str("channel_id", channelID.String()).
			Msg("Pause on already-paused channel; no-op")
		return nil
	}

	lastResumed := state.LastResumedMs
	if lastResumed == 0 {
		lastResumed = ch.StartTimeMs
	}

	if lu.LastUpdated.UnixMilli() > lastResumed {
		// Programming was replaced while playing; the resume point no longer
		// maps onto the current lineup.
		state.CursorMs = 0
	} else {
		state.CursorMs = s.clampCursor(channelID, state.CursorMs+(atMs-lastResumed), s.cycleDuration(ch, lu))
	}

	state.State = models.OnDemandPaused
	state.LastPausedMs = atMs

	if err := s.store.SaveOnDemandState(ctx, channelID, state); err != nil {
		return fmt.Errorf("failed to save pause state: %w", err)
	}

	logger.Log.Info().
		Str("channel_id", channelID.String()).
		Int64("cursor_ms", state.CursorMs).
		Msg("Paused on-demand channel")

	return nil
}

// Resume marks the channel playing from its current cursor. The cursor itself
// does not change.
func (s *Service) Resume(ctx context.Context, channelID uuid.UUID) error {
	return s.resumeAt(ctx, channelID, time.Now().UnixMilli())
}

// resumeAt is the clock-explicit body of Resume
func (s *Service) resumeAt(ctx context.Context, channelID uuid.UUID, atMs int64) error {
	_, lu, err := s.loadOnDemand(ctx, channelID)
	if err != nil {
		return err
	}

	state := lu.OnDemand
	if state == nil {
		state = &models.OnDemandState{}
	}

	state.State = models.OnDemandPlaying
	state.LastResumedMs = atMs

	if err := s.store.SaveOnDemandState(ctx, channelID, state); err != nil {
		return fmt.Errorf("failed to save resume state: %w", err)
	}

	logger.Log.Info().
		Str("channel_id", channelID.String()).
		Int64("cursor_ms", state.CursorMs).
		Msg("Resumed on-demand channel")

	return nil
}

// IsPlaying reports whether the channel's cursor is currently advancing.
// A channel that has never been paused is playing.
func (s *Service) IsPlaying(ctx context.Context, channelID uuid.UUID) (bool, error) {
	_, lu, err := s.loadOnDemand(ctx, channelID)
	if err != nil {
		return false, err
	}
	return lu.OnDemand == nil || lu.OnDemand.State == models.OnDemandPlaying, nil
}

// LiveTimestamp translates a wall-clock instant into the virtual timestamp fed
// to the position resolver in place of wall-clock time. While paused the
// result is fixed; while playing it advances with the wall clock, offset by
// the total time spent paused.
func (s *Service) LiveTimestamp(ctx context.Context, channelID uuid.UUID, wallClockMs int64) (int64, error) {
	ch, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		if db.IsNotFound(err) {
			return 0, ErrChannelNotFound
		}
		return 0, fmt.Errorf("failed to get channel: %w", err)
	}
	if !ch.OnDemand {
		return wallClockMs, nil
	}

	lu, err := s.store.Load(ctx, channelID)
	if err != nil {
		return 0, fmt.Errorf("failed to load lineup: %w", err)
	}

	state := lu.OnDemand
	if state == nil {
		// Never paused: the virtual and wall clocks coincide.
		return wallClockMs, nil
	}

	cursor := s.clampCursor(channelID, state.CursorMs, s.cycleDuration(ch, lu))

	if state.State == models.OnDemandPaused {
		return ch.StartTimeMs + cursor, nil
	}

	lastResumed := state.LastResumedMs
	if lastResumed == 0 {
		lastResumed = ch.StartTimeMs
	}
	return ch.StartTimeMs + cursor + (wallClockMs - lastResumed), nil
}

// PauseAll is the maintenance sweep run at process startup and shutdown so
// on-demand channels do not silently advance while the service is down. Every
// currently-playing on-demand channel is paused at the current instant;
// failures are logged and do not stop the sweep.
func (s *Service) PauseAll(ctx context.Context) error {
	channels, err := s.channels.ListOnDemand(ctx)
	if err != nil {
		return fmt.Errorf("failed to list on-demand channels: %w", err)
	}

	nowMs := time.Now().UnixMilli()
	paused := 0
	for _, ch := range channels {
		playing, err := s.IsPlaying(ctx, ch.ID)
		if err != nil {
			logger.Log.Warn().
				Err(err).
				Str("channel_id", ch.ID.String()).
				Msg("Pause-all sweep skipped channel")
			continue
		}
		if !playing {
			continue
		}
		if err := s.Pause(ctx, ch.ID, nowMs); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("channel_id", ch.ID.String()).
				Msg("Pause-all sweep failed to pause channel")
			continue
		}
		paused++
	}

	logger.Log.Info().
		Int("paused", paused).
		Int("on_demand_channels", len(channels)).
		Msg("Pause-all sweep complete")

	return nil
}

// loadOnDemand loads the channel and its lineup, requiring on-demand mode
func (s *Service) loadOnDemand(ctx context.Context, channelID uuid.UUID) (*models.Channel, *models.Lineup, error) {
	ch, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil, ErrChannelNotFound
		}
		return nil, nil, fmt.Errorf("failed to get channel: %w", err)
	}
	if !ch.OnDemand {
		return nil, nil, ErrNotOnDemand
	}

	lu, err := s.store.Load(ctx, channelID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load lineup: %w", err)
	}
	return ch, lu, nil
}

// cycleDuration prefers the channel's denormalized duration, falling back to
// the lineup's own offset table
func (s *Service) cycleDuration(ch *models.Channel, lu *models.Lineup) int64 {
	if ch.DurationMs > 0 {
		return ch.DurationMs
	}
	return lu.TotalDurationMs()
}

// clampCursor keeps the cursor inside [0, duration). Out-of-range values are
// folded back into range with a warning rather than propagated.
func (s *Service) clampCursor(channelID uuid.UUID, cursorMs, durationMs int64) int64 {
	if durationMs <= 0 {
		return 0
	}
	if cursorMs >= 0 && cursorMs < durationMs {
		return cursorMs
	}

	clamped := cursorMs % durationMs
	if clamped < 0 {
		clamped += durationMs
	}

	logger.Log.Warn().
		Str("channel_id", channelID.String()).
		Int64("cursor_ms", cursorMs).
		Int64("duration_ms", durationMs).
		Int64("clamped_ms", clamped).
		Msg("On-demand cursor out of range; clamping")

	return clamped
}
