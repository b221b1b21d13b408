package guide

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/db"
	"github.com/stwalsh4118/airwave/internal/lineup"
	"github.com/stwalsh4118/airwave/internal/models"
)

// snapshot is an immutable channel+lineup view captured at the start of a
// refresh. Every channel built in the same pass, and every redirect followed
// during it, resolves against this one view, so a concurrent lineup edit
// cannot produce a torn guide.
type snapshot struct {
	channels map[uuid.UUID]*models.Channel
	lineups  map[uuid.UUID]*models.Lineup
}

// takeSnapshot loads every channel and its lineup. Channels without a lineup
// blob get an empty in-memory lineup; the resolver degrades those to flex.
func takeSnapshot(ctx context.Context, repos *db.Repositories, store *lineup.Store) ([]*models.Channel, *snapshot, error) {
	channels, err := repos.Channels.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list channels: %w", err)
	}

	snap := &snapshot{
		channels: make(map[uuid.UUID]*models.Channel, len(channels)),
		lineups:  make(map[uuid.UUID]*models.Lineup, len(channels)),
	}
	for _, ch := range channels {
		lu, err := store.Load(ctx, ch.ID)
		if err != nil {
			if lineup.IsNotFound(err) {
				lu = models.NewLineup()
			} else {
				return nil, nil, fmt.Errorf("failed to load lineup for channel %s: %w", ch.ID, err)
			}
		}
		snap.channels[ch.ID] = ch
		snap.lineups[ch.ID] = lu
	}

	return channels, snap, nil
}

// Channel implements resolver.ChannelSource
func (s *snapshot) Channel(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	ch, ok := s.channels[id]
	if !ok {
		return nil, ErrChannelNotFound
	}
	return ch, nil
}

// Lineup implements resolver.ChannelSource
func (s *snapshot) Lineup(ctx context.Context, id uuid.UUID) (*models.Lineup, error) {
	lu, ok := s.lineups[id]
	if !ok {
		return nil, ErrChannelNotFound
	}
	return lu, nil
}

// liveSource resolves channels and lineups directly from the repositories and
// lineup store, for one-off window builds outside the cached refresh cycle.
type liveSource struct {
	repos *db.Repositories
	store *lineup.Store
}

// Channel implements resolver.ChannelSource
func (s *liveSource) Channel(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	ch, err := s.repos.Channels.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	return ch, nil
}

// Lineup implements resolver.ChannelSource
func (s *liveSource) Lineup(ctx context.Context, id uuid.UUID) (*models.Lineup, error) {
	lu, err := s.store.Load(ctx, id)
	if err != nil {
		if lineup.IsNotFound(err) {
			return models.NewLineup(), nil
		}
		return nil, err
	}
	return lu, nil
}
