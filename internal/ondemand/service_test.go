package ondemand

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/airwave/internal/db"
	"github.com/stwalsh4118/airwave/internal/lineup"
	"github.com/stwalsh4118/airwave/internal/models"
)

const minute = int64(60 * 1000)

// setupTestService creates a service backed by a test database and store
func setupTestService(t *testing.T) (*Service, *db.Repositories, *lineup.Store) {
	tmpFile := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(tmpFile)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB, "file://../../migrations"))

	store, err := lineup.NewStore(t.TempDir())
	require.NoError(t, err)

	repos := db.NewRepositories(database)
	return NewService(store, repos.Channels), repos, store
}

// futureStart returns a channel start time safely after the lineup save that
// follows, so the first pause is never treated as stale
func futureStart() int64 {
	return time.Now().UnixMilli() + minute
}

// createOnDemandChannel persists an on-demand channel with a simple lineup
func createOnDemandChannel(t *testing.T, repos *db.Repositories, store *lineup.Store, startMs int64, durations ...int64) *models.Channel {
	t.Helper()
	ctx := context.Background()

	ch := models.NewChannel(nextChannelNumber(), "On Demand", startMs)
	ch.OnDemand = true
	require.NoError(t, repos.Channels.Create(ctx, ch))

	lu := models.NewLineup()
	for _, d := range durations {
		lu.Items = append(lu.Items, models.ContentItem{DurationMs: d, ContentID: uuid.New()})
	}
	require.NoError(t, store.Save(ctx, ch.ID, lu))

	ch.DurationMs = lu.TotalDurationMs()
	require.NoError(t, repos.Channels.Update(ctx, ch))

	return ch
}

var channelNumberSeq int

func nextChannelNumber() int {
	channelNumberSeq++
	return channelNumberSeq
}

func TestPause_BanksElapsedTime(t *testing.T) {
	service, repos, store := setupTestService(t)
	ctx := context.Background()

	start := futureStart()
	ch := createOnDemandChannel(t, repos, store, start, 30*minute, 30*minute)

	// Never resumed: play began at channel start. Pausing 10 minutes in banks
	// a 10 minute cursor.
	require.NoError(t, service.Pause(ctx, ch.ID, start+10*minute))

	lu, err := store.Load(ctx, ch.ID)
	require.NoError(t, err)
	require.NotNil(t, lu.OnDemand)
	assert.Equal(t, models.OnDemandPaused, lu.OnDemand.State)
	assert.Equal(t, 10*minute, lu.OnDemand.CursorMs)
	assert.Equal(t, start+10*minute, lu.OnDemand.LastPausedMs)
}

func TestPause_AlreadyPausedIsNoOp(t *testing.T) {
	service, repos, store := setupTestService(t)
	ctx := context.Background()

	start := futureStart()
	ch := createOnDemandChannel(t, repos, store, start, 30*minute)

	require.NoError(t, service.Pause(ctx, ch.ID, start+5*minute))
	require.NoError(t, service.Pause(ctx, ch.ID, start+20*minute))

	lu, err := store.Load(ctx, ch.ID)
	require.NoError(t, err)
	// The second pause did not move the cursor.
	assert.Equal(t, 5*minute, lu.OnDemand.CursorMs)
	assert.Equal(t, start+5*minute, lu.OnDemand.LastPausedMs)
}

func TestPauseResume_CursorSurvivesPause(t *testing.T) {
	service, repos, store := setupTestService(t)
	ctx := context.Background()

	start := futureStart()
	ch := createOnDemandChannel(t, repos, store, start, 30*minute, 30*minute)

	// Play 10 minutes, pause for a long time, resume, play 5 more, pause.
	require.NoError(t, service.Pause(ctx, ch.ID, start+10*minute))
	resumeAt := start + 500*minute
	require.NoError(t, service.resumeAt(ctx, ch.ID, resumeAt))
	require.NoError(t, service.Pause(ctx, ch.ID, resumeAt+5*minute))

	lu, err := store.Load(ctx, ch.ID)
	require.NoError(t, err)
	// Time spent paused never reaches the cursor.
	assert.Equal(t, 15*minute, lu.OnDemand.CursorMs)
}

func TestPause_CursorWrapsCycle(t *testing.T) {
	service, repos, store := setupTestService(t)
	ctx := context.Background()

	start := futureStart()
	ch := createOnDemandChannel(t, repos, store, start, 10*minute, 10*minute)

	// Playing for 45 minutes on a 20 minute cycle wraps the cursor.
	require.NoError(t, service.Pause(ctx, ch.ID, start+45*minute))

	lu, err := store.Load(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 5*minute, lu.OnDemand.CursorMs)
}

func TestPause_StaleResumeResetsCursor(t *testing.T) {
	service, repos, store := setupTestService(t)
	ctx := context.Background()

	start := time.Now().UnixMilli() - 60*minute
	ch := createOnDemandChannel(t, repos, store, start, 30*minute)

	// The channel was resumed 40 minutes ago with a banked cursor.
	seed := &models.OnDemandState{
		State:         models.OnDemandPlaying,
		CursorMs:      10 * minute,
		LastResumedMs: time.Now().UnixMilli() - 40*minute,
	}
	require.NoError(t, store.SaveOnDemandState(ctx, ch.ID, seed))

	// Replace the programming while playing. Save stamps LastUpdated after the
	// resume point, invalidating the cursor.
	lu, err := store.Load(ctx, ch.ID)
	require.NoError(t, err)
	lu.Items = []models.LineupItem{models.ContentItem{DurationMs: 60 * minute, ContentID: uuid.New()}}
	require.NoError(t, store.Save(ctx, ch.ID, lu))

	require.NoError(t, service.Pause(ctx, ch.ID, time.Now().UnixMilli()))

	after, err := store.Load(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), after.OnDemand.CursorMs)
	assert.Equal(t, models.OnDemandPaused, after.OnDemand.State)
}

func TestPause_NotOnDemandChannel(t *testing.T) {
	service, repos, store := setupTestService(t)
	ctx := context.Background()

	ch := models.NewChannel(nextChannelNumber(), "Regular", 0)
	require.NoError(t, repos.Channels.Create(ctx, ch))
	require.NoError(t, store.Save(ctx, ch.ID, models.NewLineup()))

	err := service.Pause(ctx, ch.ID, time.Now().UnixMilli())
	assert.ErrorIs(t, err, ErrNotOnDemand)
	assert.True(t, IsNotOnDemand(err))
}

func TestPause_UnknownChannel(t *testing.T) {
	service, _, _ := setupTestService(t)

	err := service.Pause(context.Background(), uuid.New(), time.Now().UnixMilli())
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestIsPlaying_DefaultsToPlaying(t *testing.T) {
	service, repos, store := setupTestService(t)
	ctx := context.Background()

	start := futureStart()
	ch := createOnDemandChannel(t, repos, store, start, 30*minute)

	playing, err := service.IsPlaying(ctx, ch.ID)
	require.NoError(t, err)
	assert.True(t, playing)

	require.NoError(t, service.Pause(ctx, ch.ID, start+10*minute))
	playing, err = service.IsPlaying(ctx, ch.ID)
	require.NoError(t, err)
	assert.False(t, playing)
}

func TestLiveTimestamp_RegularChannelPassesThrough(t *testing.T) {
	service, repos, store := setupTestService(t)
	ctx := context.Background()

	ch := models.NewChannel(nextChannelNumber(), "Regular", 0)
	require.NoError(t, repos.Channels.Create(ctx, ch))
	require.NoError(t, store.Save(ctx, ch.ID, models.NewLineup()))

	wall := time.Now().UnixMilli()
	virtual, err := service.LiveTimestamp(ctx, ch.ID, wall)
	require.NoError(t, err)
	assert.Equal(t, wall, virtual)
}

func TestLiveTimestamp_NeverPausedPassesThrough(t *testing.T) {
	service, repos, store := setupTestService(t)
	ctx := context.Background()

	start := futureStart()
	ch := createOnDemandChannel(t, repos, store, start, 30*minute)

	wall := start + 100*minute
	virtual, err := service.LiveTimestamp(ctx, ch.ID, wall)
	require.NoError(t, err)
	assert.Equal(t, wall, virtual)
}

func TestLiveTimestamp_PausedIsFrozen(t *testing.T) {
	service, repos, store := setupTestService(t)
	ctx := context.Background()

	start := futureStart()
	ch := createOnDemandChannel(t, repos, store, start, 30*minute, 30*minute)

	require.NoError(t, service.Pause(ctx, ch.ID, start+12*minute))

	// Whatever the wall clock says, a paused channel resolves at start+cursor.
	for _, wall := range []int64{start, start + 100*minute, start + 10000*minute} {
		virtual, err := service.LiveTimestamp(ctx, ch.ID, wall)
		require.NoError(t, err)
		assert.Equal(t, start+12*minute, virtual)
	}
}

func TestLiveTimestamp_PlayingAdvancesFromCursor(t *testing.T) {
	service, repos, store := setupTestService(t)
	ctx := context.Background()

	start := futureStart()
	ch := createOnDemandChannel(t, repos, store, start, 30*minute, 30*minute)

	require.NoError(t, service.Pause(ctx, ch.ID, start+12*minute))
	resumeAt := start + 300*minute
	require.NoError(t, service.resumeAt(ctx, ch.ID, resumeAt))

	// 3 minutes after resuming, the virtual clock reads cursor+3m past start.
	virtual, err := service.LiveTimestamp(ctx, ch.ID, resumeAt+3*minute)
	require.NoError(t, err)
	assert.Equal(t, start+15*minute, virtual)
}

func TestPauseAll_PausesOnlyPlayingChannels(t *testing.T) {
	service, repos, store := setupTestService(t)
	ctx := context.Background()

	start := time.Now().UnixMilli() - 10*minute
	playing := createOnDemandChannel(t, repos, store, start, 30*minute)
	paused := createOnDemandChannel(t, repos, store, start, 30*minute)

	// Seed explicit states: one channel resumed just now, one already paused
	// with a banked cursor.
	require.NoError(t, store.SaveOnDemandState(ctx, playing.ID, &models.OnDemandState{
		State:         models.OnDemandPlaying,
		LastResumedMs: time.Now().UnixMilli(),
	}))
	require.NoError(t, store.SaveOnDemandState(ctx, paused.ID, &models.OnDemandState{
		State:    models.OnDemandPaused,
		CursorMs: 5 * minute,
	}))

	regular := models.NewChannel(nextChannelNumber(), "Regular", start)
	require.NoError(t, repos.Channels.Create(ctx, regular))
	require.NoError(t, store.Save(ctx, regular.ID, models.NewLineup()))

	require.NoError(t, service.PauseAll(ctx))

	playingAfter, err := service.IsPlaying(ctx, playing.ID)
	require.NoError(t, err)
	assert.False(t, playingAfter)

	// The already-paused channel's cursor is untouched.
	lu, err := store.Load(ctx, paused.ID)
	require.NoError(t, err)
	assert.Equal(t, 5*minute, lu.OnDemand.CursorMs)
}
