package resolver

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/airwave/internal/models"
)

// fakeSource is an in-memory ChannelSource for redirect tests
type fakeSource struct {
	channels map[uuid.UUID]*models.Channel
	lineups  map[uuid.UUID]*models.Lineup
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		channels: make(map[uuid.UUID]*models.Channel),
		lineups:  make(map[uuid.UUID]*models.Lineup),
	}
}

func (f *fakeSource) add(ch *models.Channel, lu *models.Lineup) {
	f.channels[ch.ID] = ch
	f.lineups[ch.ID] = lu
}

func (f *fakeSource) Channel(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	ch, ok := f.channels[id]
	if !ok {
		return nil, ErrOffsetDesync // any error; the resolver only logs it
	}
	return ch, nil
}

func (f *fakeSource) Lineup(ctx context.Context, id uuid.UUID) (*models.Lineup, error) {
	lu, ok := f.lineups[id]
	if !ok {
		return nil, ErrOffsetDesync
	}
	return lu, nil
}

func redirectLineup(durMs int64, target uuid.UUID) *models.Lineup {
	lu := models.NewLineup()
	lu.Items = []models.LineupItem{models.RedirectItem{DurationMs: durMs, TargetChannelID: target}}
	lu.RecomputeOffsets()
	return lu
}

func TestResolvePlaying_NonRedirectPassesThrough(t *testing.T) {
	source := newFakeSource()
	r := NewRedirectResolver(source)

	ch := newTestChannel(0)
	lu := newTestLineup(30 * minute)

	prog, pos, err := r.ResolvePlaying(context.Background(), ch, lu, 10*minute, nil)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.False(t, prog.Redirected)
	assert.Equal(t, ch, prog.Channel)
	assert.Equal(t, int64(0), prog.StartMs)
	assert.Equal(t, int64(30*minute), prog.DurationMs)
}

func TestResolvePlaying_RedirectIntersectsWindows(t *testing.T) {
	// Channel A redirects for 60m starting at t=0. Channel B airs 45m programs
	// starting at t=0, so at t=50m B is 5 minutes into its second program. The
	// effective window is the intersection: [45m, 60m).
	source := newFakeSource()
	r := NewRedirectResolver(source)

	target := newTestChannel(0)
	target.ID = uuid.New()
	targetContent := uuid.New()
	targetLineup := models.NewLineup()
	targetLineup.Items = []models.LineupItem{
		models.ContentItem{DurationMs: 45 * minute, ContentID: targetContent},
		models.ContentItem{DurationMs: 45 * minute, ContentID: uuid.New()},
	}
	targetLineup.RecomputeOffsets()
	source.add(target, targetLineup)

	origin := newTestChannel(0)
	origin.ID = uuid.New()
	originLineup := redirectLineup(60*minute, target.ID)
	source.add(origin, originLineup)

	prog, _, err := r.ResolvePlaying(context.Background(), origin, originLineup, 50*minute, nil)
	require.NoError(t, err)
	assert.True(t, prog.Redirected)
	assert.Equal(t, target.ID, prog.Channel.ID)
	assert.Equal(t, int64(45*minute), prog.StartMs)
	assert.Equal(t, int64(15*minute), prog.DurationMs)

	content, ok := prog.Item.(models.ContentItem)
	require.True(t, ok)
	assert.NotEqual(t, targetContent, content.ContentID)
}

func TestResolvePlaying_RedirectClampedByOwnWindow(t *testing.T) {
	// The target's program outlives the redirecting item; the redirect window
	// wins and the program is clamped to the redirect item's end.
	source := newFakeSource()
	r := NewRedirectResolver(source)

	target := newTestChannel(0)
	target.ID = uuid.New()
	targetLineup := models.NewLineup()
	targetLineup.Items = []models.LineupItem{models.ContentItem{DurationMs: 3 * hour, ContentID: uuid.New()}}
	targetLineup.RecomputeOffsets()
	source.add(target, targetLineup)

	origin := newTestChannel(0)
	origin.ID = uuid.New()
	originLineup := redirectLineup(30*minute, target.ID)
	source.add(origin, originLineup)

	prog, _, err := r.ResolvePlaying(context.Background(), origin, originLineup, 10*minute, nil)
	require.NoError(t, err)
	assert.True(t, prog.Redirected)
	assert.Equal(t, int64(0), prog.StartMs)
	assert.Equal(t, int64(30*minute), prog.DurationMs)
}

func TestResolvePlaying_RedirectLoopDegradesToOffline(t *testing.T) {
	// A -> B -> A. The chain revisits A and must degrade instead of recursing.
	source := newFakeSource()
	r := NewRedirectResolver(source)

	a := newTestChannel(0)
	a.ID = uuid.New()
	b := newTestChannel(0)
	b.ID = uuid.New()

	aLineup := redirectLineup(30*minute, b.ID)
	bLineup := redirectLineup(30*minute, a.ID)
	source.add(a, aLineup)
	source.add(b, bLineup)

	prog, _, err := r.ResolvePlaying(context.Background(), a, aLineup, 10*minute, nil)
	require.NoError(t, err)
	assert.True(t, prog.Redirected)
	assert.Equal(t, models.ItemKindOffline, prog.Item.Kind())
	assert.Equal(t, int64(30*minute), prog.DurationMs)
}

func TestResolvePlaying_SelfRedirectDegradesToOffline(t *testing.T) {
	source := newFakeSource()
	r := NewRedirectResolver(source)

	ch := newTestChannel(0)
	ch.ID = uuid.New()
	lu := redirectLineup(30*minute, ch.ID)
	source.add(ch, lu)

	prog, _, err := r.ResolvePlaying(context.Background(), ch, lu, 10*minute, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ItemKindOffline, prog.Item.Kind())
	assert.Equal(t, ch.ID, prog.Channel.ID)
}

func TestResolvePlaying_DanglingTargetDegradesToOffline(t *testing.T) {
	source := newFakeSource()
	r := NewRedirectResolver(source)

	origin := newTestChannel(0)
	origin.ID = uuid.New()
	lu := redirectLineup(30*minute, uuid.New()) // target never registered
	source.add(origin, lu)

	prog, _, err := r.ResolvePlaying(context.Background(), origin, lu, 10*minute, nil)
	require.NoError(t, err)
	assert.True(t, prog.Redirected)
	assert.Equal(t, models.ItemKindOffline, prog.Item.Kind())
	assert.Equal(t, int64(0), prog.StartMs)
	assert.Equal(t, int64(30*minute), prog.DurationMs)
}

func TestResolvePlaying_NestedRedirectChain(t *testing.T) {
	// A -> B -> C where C airs real content; the chain terminates at C and the
	// result window is the intersection of all three.
	source := newFakeSource()
	r := NewRedirectResolver(source)

	c := newTestChannel(0)
	c.ID = uuid.New()
	cLineup := models.NewLineup()
	cLineup.Items = []models.LineupItem{models.ContentItem{DurationMs: 20 * minute, ContentID: uuid.New()}}
	cLineup.RecomputeOffsets()
	source.add(c, cLineup)

	b := newTestChannel(0)
	b.ID = uuid.New()
	bLineup := redirectLineup(40*minute, c.ID)
	source.add(b, bLineup)

	a := newTestChannel(0)
	a.ID = uuid.New()
	aLineup := redirectLineup(60*minute, b.ID)
	source.add(a, aLineup)

	prog, _, err := r.ResolvePlaying(context.Background(), a, aLineup, 10*minute, nil)
	require.NoError(t, err)
	assert.True(t, prog.Redirected)
	assert.Equal(t, c.ID, prog.Channel.ID)
	assert.Equal(t, int64(0), prog.StartMs)
	assert.Equal(t, int64(20*minute), prog.DurationMs)
}

func TestResolvePlaying_CorruptOriginLineupFails(t *testing.T) {
	source := newFakeSource()
	r := NewRedirectResolver(source)

	ch := newTestChannel(0)
	lu := newTestLineup(10 * minute)
	lu.Offsets = []int64{0} // corrupt

	_, _, err := r.ResolvePlaying(context.Background(), ch, lu, 5*minute, nil)
	require.Error(t, err)
	assert.True(t, IsCorruption(err))
}

func TestResolvePlaying_CorruptTargetDegradesToOffline(t *testing.T) {
	// Corruption in a redirect target is the target's problem; the origin's
	// guide degrades instead of failing.
	source := newFakeSource()
	r := NewRedirectResolver(source)

	target := newTestChannel(0)
	target.ID = uuid.New()
	targetLineup := newTestLineup(10 * minute)
	targetLineup.Offsets = []int64{0}
	source.add(target, targetLineup)

	origin := newTestChannel(0)
	origin.ID = uuid.New()
	lu := redirectLineup(30*minute, target.ID)
	source.add(origin, lu)

	prog, _, err := r.ResolvePlaying(context.Background(), origin, lu, 10*minute, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ItemKindOffline, prog.Item.Kind())
}
