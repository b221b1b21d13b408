// Package channel provides business logic for channel and lineup operations.
package channel

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/db"
	"github.com/stwalsh4118/airwave/internal/lineup"
	"github.com/stwalsh4118/airwave/internal/logger"
	"github.com/stwalsh4118/airwave/internal/models"
)

// ChannelService handles business logic for channel operations
type ChannelService struct {
	repos *db.Repositories
	store *lineup.Store
}

// NewChannelService creates a new channel service instance
func NewChannelService(repos *db.Repositories, store *lineup.Store) *ChannelService {
	return &ChannelService{
		repos: repos,
		store: store,
	}
}

// CreateChannel creates a new channel with an empty lineup
func (s *ChannelService) CreateChannel(ctx context.Context, ch *models.Channel) error {
	if ch.Number <= 0 {
		return fmt.Errorf("failed to create channel: %w", ErrInvalidChannelNumber)
	}

	if err := s.repos.Channels.Create(ctx, ch); err != nil {
		if db.IsDuplicate(err) {
			logger.Log.Warn().
				Int("number", ch.Number).
				Msg("Channel creation failed: duplicate number")
			return fmt.Errorf("failed to create channel: %w", ErrDuplicateChannelNumber)
		}
		logger.Log.Error().
			Err(err).
			Str("name", ch.Name).
			Msg("Failed to create channel in database")
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if _, err := s.store.Create(ctx, ch.ID); err != nil {
		return fmt.Errorf("failed to create lineup for channel: %w", err)
	}

	logger.Log.Info().
		Str("channel_id", ch.ID.String()).
		Int("number", ch.Number).
		Str("name", ch.Name).
		Msg("Channel created")

	return nil
}

// GetByID retrieves a channel by its ID
func (s *ChannelService) GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	ch, err := s.repos.Channels.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrChannelNotFound
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return ch, nil
}

// List retrieves all channels ordered by channel number
func (s *ChannelService) List(ctx context.Context) ([]*models.Channel, error) {
	channels, err := s.repos.Channels.List(ctx)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to list channels")
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	return channels, nil
}

// UpdateChannel updates channel metadata
func (s *ChannelService) UpdateChannel(ctx context.Context, ch *models.Channel) error {
	if ch.Number <= 0 {
		return fmt.Errorf("failed to update channel: %w", ErrInvalidChannelNumber)
	}

	if err := s.repos.Channels.Update(ctx, ch); err != nil {
		if db.IsNotFound(err) {
			return ErrChannelNotFound
		}
		if db.IsDuplicate(err) {
			return fmt.Errorf("failed to update channel: %w", ErrDuplicateChannelNumber)
		}
		logger.Log.Error().
			Err(err).
			Str("channel_id", ch.ID.String()).
			Msg("Failed to update channel")
		return fmt.Errorf("failed to update channel: %w", err)
	}

	logger.Log.Info().
		Str("channel_id", ch.ID.String()).
		Msg("Channel updated")

	return nil
}

// DeleteChannel removes a channel. The lineup blob is tombstoned first so a
// failed database delete can restore it; on success the tombstone is purged
// and a detached background sweep converts redirects pointing at the deleted
// channel into offline filler. The sweep is never awaited by the caller; done,
// when non-nil, is invoked with the number of converted items once it
// finishes, which lets tests observe completion.
func (s *ChannelService) DeleteChannel(ctx context.Context, id uuid.UUID, done func(converted int)) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	tombstoned := true
	if err := s.store.Tombstone(id); err != nil {
		if !lineup.IsNotFound(err) {
			return fmt.Errorf("failed to tombstone lineup: %w", err)
		}
		// A channel without a lineup blob can still be deleted.
		tombstoned = false
	}

	if err := s.repos.Channels.Delete(ctx, id); err != nil {
		if tombstoned {
			if restoreErr := s.store.Restore(id); restoreErr != nil {
				logger.Log.Error().
					Err(restoreErr).
					Str("channel_id", id.String()).
					Msg("Failed to restore tombstoned lineup after delete failure")
			}
		}
		if db.IsNotFound(err) {
			return ErrChannelNotFound
		}
		return fmt.Errorf("failed to delete channel: %w", err)
	}

	if tombstoned {
		if err := s.store.Purge(id); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("channel_id", id.String()).
				Msg("Failed to purge tombstoned lineup")
		}
	}

	logger.Log.Info().
		Str("channel_id", id.String()).
		Msg("Channel deleted; starting redirect reference sweep")

	go s.sweepRedirects(id, done)

	return nil
}

// sweepRedirects runs the best-effort redirect cleanup in the background
func (s *ChannelService) sweepRedirects(id uuid.UUID, done func(converted int)) {
	converted, err := s.store.SweepRedirectReferences(context.Background(), id)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("target_channel_id", id.String()).
			Msg("Redirect reference sweep ended early")
	}
	logger.Log.Info().
		Str("target_channel_id", id.String()).
		Int("converted_items", converted).
		Msg("Redirect reference sweep finished")

	if done != nil {
		done(converted)
	}
}

// GetLineup loads a channel's lineup
func (s *ChannelService) GetLineup(ctx context.Context, id uuid.UUID) (*models.Lineup, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	lu, err := s.store.Load(ctx, id)
	if err != nil {
		if lineup.IsNotFound(err) {
			return models.NewLineup(), nil
		}
		return nil, fmt.Errorf("failed to load lineup: %w", err)
	}
	return lu, nil
}

// ReplaceLineup replaces a channel's programming wholesale. Items are
// validated, the offset table is recomputed on save, and the channel's
// denormalized cycle duration is updated to match.
func (s *ChannelService) ReplaceLineup(ctx context.Context, id uuid.UUID, items []models.LineupItem) (*models.Lineup, error) {
	ch, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.validateItems(ch, items); err != nil {
		return nil, fmt.Errorf("failed to replace lineup: %w", err)
	}

	lu, err := s.store.Load(ctx, id)
	if err != nil {
		if !lineup.IsNotFound(err) {
			return nil, fmt.Errorf("failed to load lineup: %w", err)
		}
		lu = models.NewLineup()
	}

	lu.Items = items
	if err := s.store.Save(ctx, id, lu); err != nil {
		return nil, fmt.Errorf("failed to save lineup: %w", err)
	}

	if err := s.repos.Channels.UpdateDuration(ctx, id, lu.TotalDurationMs()); err != nil {
		logger.Log.Error().
			Err(err).
			Str("channel_id", id.String()).
			Msg("Failed to update denormalized channel duration")
	}

	logger.Log.Info().
		Str("channel_id", id.String()).
		Int("items", len(items)).
		Int64("total_duration_ms", lu.TotalDurationMs()).
		Msg("Lineup replaced")

	return lu, nil
}

// RemovePrograms replaces content items referencing the given media with
// equal-duration offline filler, preserving the channel's total duration
func (s *ChannelService) RemovePrograms(ctx context.Context, id uuid.UUID, contentIDs []uuid.UUID) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return s.store.RemovePrograms(ctx, id, contentIDs)
}

// validateItems rejects lineups that would corrupt offset arithmetic
func (s *ChannelService) validateItems(ch *models.Channel, items []models.LineupItem) error {
	for i, item := range items {
		if item.ItemDurationMs() <= 0 {
			return fmt.Errorf("item %d: %w", i, ErrInvalidItemDuration)
		}
		if redirect, ok := item.(models.RedirectItem); ok && redirect.TargetChannelID == ch.ID {
			return fmt.Errorf("item %d: %w", i, ErrRedirectToSelf)
		}
	}
	return nil
}
