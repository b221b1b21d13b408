package lineup

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/airwave/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func contentItem(durMs int64) models.ContentItem {
	return models.ContentItem{DurationMs: durMs, ContentID: uuid.New()}
}

func TestStore_CreateAndLoad(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	channelID := uuid.New()

	created, err := store.Create(ctx, channelID)
	require.NoError(t, err)
	assert.Empty(t, created.Items)
	assert.Equal(t, models.CurrentLineupVersion, created.Version)

	loaded, err := store.Load(ctx, channelID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Items)
	assert.Equal(t, []int64{0}, loaded.Offsets)
}

func TestStore_CreateTwiceFails(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	channelID := uuid.New()

	_, err := store.Create(ctx, channelID)
	require.NoError(t, err)

	_, err = store.Create(ctx, channelID)
	assert.ErrorIs(t, err, ErrLineupExists)
}

func TestStore_LoadMissing(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Load(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrLineupNotFound)
	assert.True(t, IsNotFound(err))
}

func TestStore_SaveRecomputesOffsets(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	channelID := uuid.New()

	lu := models.NewLineup()
	lu.Items = []models.LineupItem{
		contentItem(1000),
		models.OfflineItem{DurationMs: 500},
		contentItem(2500),
	}
	// Hand the store a deliberately wrong offset table; Save must rebuild it.
	lu.Offsets = []int64{99}

	require.NoError(t, store.Save(ctx, channelID, lu))

	loaded, err := store.Load(ctx, channelID)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1000, 1500, 4000}, loaded.Offsets)
	assert.Equal(t, int64(4000), loaded.TotalDurationMs())
	assert.Equal(t, models.CurrentLineupVersion, loaded.Version)
	assert.False(t, loaded.LastUpdated.IsZero())
}

func TestStore_SaveRejectsNonPositiveDuration(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	lu := models.NewLineup()
	lu.Items = []models.LineupItem{contentItem(1000), models.OfflineItem{DurationMs: 0}}

	err := store.Save(ctx, uuid.New(), lu)
	assert.ErrorIs(t, err, ErrInvalidItemDuration)
}

func TestStore_RoundTripPreservesItemKinds(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	channelID := uuid.New()
	target := uuid.New()
	showID := uuid.New()

	lu := models.NewLineup()
	lu.Items = []models.LineupItem{
		models.ContentItem{DurationMs: 1000, ContentID: uuid.New(), CustomShowID: &showID},
		models.OfflineItem{DurationMs: 2000},
		models.RedirectItem{DurationMs: 3000, TargetChannelID: target},
	}
	require.NoError(t, store.Save(ctx, channelID, lu))

	loaded, err := store.Load(ctx, channelID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 3)

	content, ok := loaded.Items[0].(models.ContentItem)
	require.True(t, ok)
	require.NotNil(t, content.CustomShowID)
	assert.Equal(t, showID, *content.CustomShowID)

	assert.IsType(t, models.OfflineItem{}, loaded.Items[1])

	redirect, ok := loaded.Items[2].(models.RedirectItem)
	require.True(t, ok)
	assert.Equal(t, target, redirect.TargetChannelID)
}

func TestStore_SaveOnDemandStateKeepsLastUpdated(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	channelID := uuid.New()

	lu := models.NewLineup()
	lu.Items = []models.LineupItem{contentItem(1000)}
	require.NoError(t, store.Save(ctx, channelID, lu))

	before, err := store.Load(ctx, channelID)
	require.NoError(t, err)

	state := &models.OnDemandState{State: models.OnDemandPaused, CursorMs: 250}
	require.NoError(t, store.SaveOnDemandState(ctx, channelID, state))

	after, err := store.Load(ctx, channelID)
	require.NoError(t, err)
	require.NotNil(t, after.OnDemand)
	assert.Equal(t, int64(250), after.OnDemand.CursorMs)
	// Cursor bookkeeping is not a programming change.
	assert.True(t, after.LastUpdated.Equal(before.LastUpdated))
}

func TestStore_RemovePrograms(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	channelID := uuid.New()

	removedID := uuid.New()
	keptID := uuid.New()

	lu := models.NewLineup()
	lu.Items = []models.LineupItem{
		models.ContentItem{DurationMs: 1000, ContentID: removedID},
		models.ContentItem{DurationMs: 2000, ContentID: keptID},
		models.ContentItem{DurationMs: 3000, ContentID: removedID},
	}
	require.NoError(t, store.Save(ctx, channelID, lu))
	totalBefore := lu.TotalDurationMs()

	require.NoError(t, store.RemovePrograms(ctx, channelID, []uuid.UUID{removedID}))

	loaded, err := store.Load(ctx, channelID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 3)

	assert.IsType(t, models.OfflineItem{}, loaded.Items[0])
	assert.IsType(t, models.ContentItem{}, loaded.Items[1])
	assert.IsType(t, models.OfflineItem{}, loaded.Items[2])

	// Filler inherits the removed item's duration, so offsets never move.
	assert.Equal(t, int64(1000), loaded.Items[0].ItemDurationMs())
	assert.Equal(t, totalBefore, loaded.TotalDurationMs())
}

func TestStore_RemoveProgramsNoMatch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	channelID := uuid.New()

	lu := models.NewLineup()
	lu.Items = []models.LineupItem{contentItem(1000)}
	require.NoError(t, store.Save(ctx, channelID, lu))

	before, err := store.Load(ctx, channelID)
	require.NoError(t, err)

	require.NoError(t, store.RemovePrograms(ctx, channelID, []uuid.UUID{uuid.New()}))

	after, err := store.Load(ctx, channelID)
	require.NoError(t, err)
	assert.True(t, after.LastUpdated.Equal(before.LastUpdated))
}

func TestStore_MigratesVersion1Blob(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	channelID := uuid.New()

	// A version 1 blob has items but no offsets field.
	v1 := map[string]interface{}{
		"version": 1,
		"items": []map[string]interface{}{
			{"kind": "content", "duration_ms": 1000, "content_id": uuid.New().String()},
			{"kind": "offline", "duration_ms": 500},
		},
		"last_updated": time.Now().UTC().Format(time.RFC3339Nano),
	}
	writeRawLineup(t, store, channelID, v1)

	loaded, err := store.Load(ctx, channelID)
	require.NoError(t, err)
	assert.Equal(t, models.CurrentLineupVersion, loaded.Version)
	assert.Equal(t, []int64{0, 1000, 1500}, loaded.Offsets)

	// The migrated form was persisted; a second load sees version 2 directly.
	reloaded, err := store.Load(ctx, channelID)
	require.NoError(t, err)
	assert.Equal(t, models.CurrentLineupVersion, reloaded.Version)
}

func TestStore_MissingVersionTreatedAsVersion1(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	channelID := uuid.New()

	raw := map[string]interface{}{
		"items": []map[string]interface{}{
			{"kind": "offline", "duration_ms": 750},
		},
		"last_updated": time.Now().UTC().Format(time.RFC3339Nano),
	}
	writeRawLineup(t, store, channelID, raw)

	loaded, err := store.Load(ctx, channelID)
	require.NoError(t, err)
	assert.Equal(t, models.CurrentLineupVersion, loaded.Version)
	assert.Equal(t, []int64{0, 750}, loaded.Offsets)
}

func TestStore_UnknownFutureVersionServedAsIs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	channelID := uuid.New()

	raw := map[string]interface{}{
		"version":      99,
		"items":        []map[string]interface{}{{"kind": "offline", "duration_ms": 500}},
		"offsets":      []int64{0, 500},
		"last_updated": time.Now().UTC().Format(time.RFC3339Nano),
	}
	writeRawLineup(t, store, channelID, raw)

	loaded, err := store.Load(ctx, channelID)
	require.NoError(t, err)
	assert.Equal(t, 99, loaded.Version)
}

func TestStore_TombstoneRestorePurge(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	channelID := uuid.New()

	lu := models.NewLineup()
	lu.Items = []models.LineupItem{contentItem(1000)}
	require.NoError(t, store.Save(ctx, channelID, lu))

	require.NoError(t, store.Tombstone(channelID))
	_, err := store.Load(ctx, channelID)
	assert.True(t, IsNotFound(err))

	require.NoError(t, store.Restore(channelID))
	restored, err := store.Load(ctx, channelID)
	require.NoError(t, err)
	assert.Len(t, restored.Items, 1)

	require.NoError(t, store.Tombstone(channelID))
	require.NoError(t, store.Purge(channelID))
	assert.ErrorIs(t, store.Restore(channelID), ErrLineupNotFound)

	// Purging an already-purged channel is not an error.
	assert.NoError(t, store.Purge(channelID))
}

func TestStore_TombstoneMissing(t *testing.T) {
	store := setupTestStore(t)
	assert.ErrorIs(t, store.Tombstone(uuid.New()), ErrLineupNotFound)
}

func TestStore_ListChannelIDsSkipsTombstones(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	live := uuid.New()
	dead := uuid.New()

	require.NoError(t, store.Save(ctx, live, models.NewLineup()))
	require.NoError(t, store.Save(ctx, dead, models.NewLineup()))
	require.NoError(t, store.Tombstone(dead))

	ids, err := store.ListChannelIDs()
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{live}, ids)
}

func TestStore_SweepRedirectReferences(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	deleted := uuid.New()
	other := uuid.New()

	a := uuid.New()
	aLineup := models.NewLineup()
	aLineup.Items = []models.LineupItem{
		models.RedirectItem{DurationMs: 1000, TargetChannelID: deleted},
		contentItem(2000),
		models.RedirectItem{DurationMs: 3000, TargetChannelID: other},
	}
	require.NoError(t, store.Save(ctx, a, aLineup))

	b := uuid.New()
	bLineup := models.NewLineup()
	bLineup.Items = []models.LineupItem{
		models.RedirectItem{DurationMs: 500, TargetChannelID: deleted},
	}
	require.NoError(t, store.Save(ctx, b, bLineup))

	converted, err := store.SweepRedirectReferences(ctx, deleted)
	require.NoError(t, err)
	assert.Equal(t, 2, converted)

	aAfter, err := store.Load(ctx, a)
	require.NoError(t, err)
	assert.IsType(t, models.OfflineItem{}, aAfter.Items[0])
	assert.Equal(t, int64(1000), aAfter.Items[0].ItemDurationMs())
	// Redirects at other channels are untouched.
	assert.IsType(t, models.RedirectItem{}, aAfter.Items[2])

	bAfter, err := store.Load(ctx, b)
	require.NoError(t, err)
	assert.IsType(t, models.OfflineItem{}, bAfter.Items[0])
}

func TestStore_SweepHonorsContextCancellation(t *testing.T) {
	store := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	for i := 0; i < 3; i++ {
		lu := models.NewLineup()
		lu.Items = []models.LineupItem{contentItem(1000)}
		require.NoError(t, store.Save(context.Background(), uuid.New(), lu))
	}
	cancel()

	_, err := store.SweepRedirectReferences(ctx, uuid.New())
	assert.ErrorIs(t, err, context.Canceled)
}

// writeRawLineup persists an arbitrary raw blob as a channel's lineup file
func writeRawLineup(t *testing.T, store *Store, channelID uuid.UUID, raw map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.path(channelID), data, 0o644))
}
