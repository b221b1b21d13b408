// Package lineup owns per-channel lineup persistence: the ordered item list,
// its cumulative-duration offset table, forward schema migrations, and the
// rename-based tombstone primitives used during channel deletion.
package lineup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/logger"
	"github.com/stwalsh4118/airwave/internal/models"
)

const (
	lineupFileExt  = ".json"
	tombstoneExt   = ".json.deleted"
	lineupFileMode = 0o644
)

// Store persists one lineup blob per channel under a data directory. Each
// channel has its own lazily-created mutex: readers and writers of the same
// channel's lineup serialize through it, while different channels proceed
// fully in parallel.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewStore creates a lineup store rooted at dir, creating it if needed
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lineup data directory: %w", err)
	}
	return &Store{
		dir:   dir,
		locks: make(map[uuid.UUID]*sync.Mutex),
	}, nil
}

// lock returns the per-channel mutex, creating it under the map-level lock on
// first access. The same mutex instance is reused for the channel's lifetime.
func (s *Store) lock(channelID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[channelID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[channelID] = l
	}
	return l
}

func (s *Store) path(channelID uuid.UUID) string {
	return filepath.Join(s.dir, channelID.String()+lineupFileExt)
}

func (s *Store) tombstonePath(channelID uuid.UUID) string {
	return filepath.Join(s.dir, channelID.String()+tombstoneExt)
}

// Create persists an empty lineup for a newly created channel
func (s *Store) Create(ctx context.Context, channelID uuid.UUID) (*models.Lineup, error) {
	l := s.lock(channelID)
	l.Lock()
	defer l.Unlock()

	if _, err := os.Stat(s.path(channelID)); err == nil {
		return nil, fmt.Errorf("failed to create lineup for channel %s: %w", channelID, ErrLineupExists)
	}

	lu := models.NewLineup()
	if err := s.saveLocked(channelID, lu); err != nil {
		return nil, err
	}

	logger.Log.Info().
		Str("channel_id", channelID.String()).
		Msg("Created empty lineup")

	return lu, nil
}

// Load materializes a channel's lineup from its persisted form, applying any
// pending forward migrations. A fully migrated blob is persisted back; a blob
// with no migration path is served unmigrated and left unsaved.
func (s *Store) Load(ctx context.Context, channelID uuid.UUID) (*models.Lineup, error) {
	l := s.lock(channelID)
	l.Lock()
	defer l.Unlock()

	return s.loadLocked(channelID)
}

// loadLocked reads and migrates a lineup; the per-channel lock must be held
func (s *Store) loadLocked(channelID uuid.UUID) (*models.Lineup, error) {
	data, err := os.ReadFile(s.path(channelID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("channel %s: %w", channelID, ErrLineupNotFound)
		}
		return nil, fmt.Errorf("failed to read lineup for channel %s: %w", channelID, err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse lineup for channel %s: %w", channelID, err)
	}

	migrated := applyMigrations(channelID.String(), raw)
	if migrated {
		if data, err = json.Marshal(raw); err != nil {
			return nil, fmt.Errorf("failed to re-encode migrated lineup for channel %s: %w", channelID, err)
		}
	}

	var lu models.Lineup
	if err := json.Unmarshal(data, &lu); err != nil {
		return nil, fmt.Errorf("failed to decode lineup for channel %s: %w", channelID, err)
	}

	if migrated {
		if err := s.writeLocked(channelID, &lu); err != nil {
			// The migrated form still serves this load; persisting it again is
			// retried on the next save.
			logger.Log.Warn().
				Err(err).
				Str("channel_id", channelID.String()).
				Msg("Failed to persist migrated lineup")
		} else {
			logger.Log.Info().
				Str("channel_id", channelID.String()).
				Int("version", lu.Version).
				Msg("Migrated lineup to current version")
		}
	}

	return &lu, nil
}

// Save validates and persists a lineup, recomputing the offset table and
// stamping LastUpdated. Callers never hand-edit offsets.
func (s *Store) Save(ctx context.Context, channelID uuid.UUID, lu *models.Lineup) error {
	l := s.lock(channelID)
	l.Lock()
	defer l.Unlock()

	return s.saveLocked(channelID, lu)
}

// saveLocked persists a lineup; the per-channel lock must be held
func (s *Store) saveLocked(channelID uuid.UUID, lu *models.Lineup) error {
	for i, item := range lu.Items {
		if item.ItemDurationMs() <= 0 {
			return fmt.Errorf("channel %s item %d: %w", channelID, i, ErrInvalidItemDuration)
		}
	}

	lu.RecomputeOffsets()
	lu.Version = models.CurrentLineupVersion
	lu.LastUpdated = time.Now().UTC()

	return s.writeLocked(channelID, lu)
}

// writeLocked writes the blob atomically without touching version or offsets
func (s *Store) writeLocked(channelID uuid.UUID, lu *models.Lineup) error {
	data, err := json.MarshalIndent(lu, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode lineup for channel %s: %w", channelID, err)
	}

	if err := renameio.WriteFile(s.path(channelID), data, lineupFileMode); err != nil {
		return fmt.Errorf("failed to write lineup for channel %s: %w", channelID, err)
	}
	return nil
}

// SaveOnDemandState persists only the on-demand cursor state, deliberately
// without stamping LastUpdated: cursor bookkeeping is not a programming
// change, and the pause/resume stale-cursor check relies on LastUpdated
// moving only when the lineup's items are actually replaced.
func (s *Store) SaveOnDemandState(ctx context.Context, channelID uuid.UUID, state *models.OnDemandState) error {
	l := s.lock(channelID)
	l.Lock()
	defer l.Unlock()

	lu, err := s.loadLocked(channelID)
	if err != nil {
		return err
	}

	lu.OnDemand = state
	return s.writeLocked(channelID, lu)
}

// RemovePrograms replaces every ContentItem referencing one of the given media
// IDs with an equal-duration OfflineItem, preserving total duration and all
// offsets.
func (s *Store) RemovePrograms(ctx context.Context, channelID uuid.UUID, contentIDs []uuid.UUID) error {
	if len(contentIDs) == 0 {
		return nil
	}

	removed := make(map[uuid.UUID]struct{}, len(contentIDs))
	for _, id := range contentIDs {
		removed[id] = struct{}{}
	}

	l := s.lock(channelID)
	l.Lock()
	defer l.Unlock()

	lu, err := s.loadLocked(channelID)
	if err != nil {
		return err
	}

	changed := 0
	for i, item := range lu.Items {
		content, ok := item.(models.ContentItem)
		if !ok {
			continue
		}
		if _, gone := removed[content.ContentID]; gone {
			lu.Items[i] = models.OfflineItem{DurationMs: content.DurationMs}
			changed++
		}
	}

	if changed == 0 {
		return nil
	}

	if err := s.saveLocked(channelID, lu); err != nil {
		return err
	}

	logger.Log.Info().
		Str("channel_id", channelID.String()).
		Int("replaced_items", changed).
		Msg("Replaced removed programs with offline filler")

	return nil
}

// SweepRedirectReferences scans every other channel's lineup and converts
// RedirectItems pointing at the deleted target channel into equal-duration
// OfflineItems. The sweep is best-effort: channels it can no longer read are
// logged and skipped rather than failing the whole pass. It returns the number
// of redirect items converted.
func (s *Store) SweepRedirectReferences(ctx context.Context, targetChannelID uuid.UUID) (int, error) {
	ids, err := s.ListChannelIDs()
	if err != nil {
		return 0, err
	}

	converted := 0
	for _, id := range ids {
		if id == targetChannelID {
			continue
		}
		if err := ctx.Err(); err != nil {
			return converted, err
		}

		n, err := s.convertRedirects(id, targetChannelID)
		if err != nil {
			logger.Log.Warn().
				Err(err).
				Str("channel_id", id.String()).
				Str("target_channel_id", targetChannelID.String()).
				Msg("Redirect reference sweep skipped channel")
			continue
		}
		converted += n
	}

	return converted, nil
}

// convertRedirects rewrites one channel's redirects at the given target
func (s *Store) convertRedirects(channelID, targetChannelID uuid.UUID) (int, error) {
	l := s.lock(channelID)
	l.Lock()
	defer l.Unlock()

	lu, err := s.loadLocked(channelID)
	if err != nil {
		return 0, err
	}

	changed := 0
	for i, item := range lu.Items {
		redirect, ok := item.(models.RedirectItem)
		if !ok || redirect.TargetChannelID != targetChannelID {
			continue
		}
		lu.Items[i] = models.OfflineItem{DurationMs: redirect.DurationMs}
		changed++
	}

	if changed == 0 {
		return 0, nil
	}
	if err := s.saveLocked(channelID, lu); err != nil {
		return 0, err
	}
	return changed, nil
}

// ListChannelIDs returns the IDs of all channels with a live (non-tombstoned)
// lineup blob
func (s *Store) ListChannelIDs() ([]uuid.UUID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read lineup data directory: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, lineupFileExt) || strings.HasSuffix(name, tombstoneExt) {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(name, lineupFileExt))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Tombstone renames a channel's lineup blob aside instead of unlinking it, so
// a failed downstream delete can restore it
func (s *Store) Tombstone(channelID uuid.UUID) error {
	l := s.lock(channelID)
	l.Lock()
	defer l.Unlock()

	if err := os.Rename(s.path(channelID), s.tombstonePath(channelID)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("channel %s: %w", channelID, ErrLineupNotFound)
		}
		return fmt.Errorf("failed to tombstone lineup for channel %s: %w", channelID, err)
	}
	return nil
}

// Restore undoes a tombstone rename
func (s *Store) Restore(channelID uuid.UUID) error {
	l := s.lock(channelID)
	l.Lock()
	defer l.Unlock()

	if err := os.Rename(s.tombstonePath(channelID), s.path(channelID)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("channel %s: %w", channelID, ErrLineupNotFound)
		}
		return fmt.Errorf("failed to restore lineup for channel %s: %w", channelID, err)
	}
	return nil
}

// Purge removes a tombstoned blob permanently. Missing tombstones are not an
// error; the sweep that follows channel deletion may run more than once.
func (s *Store) Purge(channelID uuid.UUID) error {
	l := s.lock(channelID)
	l.Lock()
	defer l.Unlock()

	if err := os.Remove(s.tombstonePath(channelID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to purge lineup for channel %s: %w", channelID, err)
	}
	return nil
}
