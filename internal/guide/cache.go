package guide

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/catalog"
	"github.com/stwalsh4118/airwave/internal/config"
	"github.com/stwalsh4118/airwave/internal/db"
	"github.com/stwalsh4118/airwave/internal/lineup"
	"github.com/stwalsh4118/airwave/internal/logger"
	"github.com/stwalsh4118/airwave/internal/models"
	"github.com/stwalsh4118/airwave/internal/resolver"
	"golang.org/x/sync/errgroup"
)

const (
	// getPollInterval and getMaxPolls bound how long Get waits for the first
	// successful build before giving up.
	getPollInterval = 250 * time.Millisecond
	getMaxPolls     = 40
)

// Service owns the cached guide and its refresh lifecycle. At most one rebuild
// is in flight at a time; readers always see a stable, immutable snapshot, and
// the swap to a newly built guide is a single atomic pointer replace.
type Service struct {
	repos   *db.Repositories
	store   *lineup.Store
	catalog catalog.Lookup
	clock   LiveTimestamper
	cfg     config.GuideConfig

	published     atomic.Pointer[models.CachedGuide]
	building      atomic.Bool
	buildsStarted atomic.Int64
	lastUpdateMs  atomic.Int64
	lastEndMs     atomic.Int64

	// onPublish is invoked after every successful swap; the transport layer
	// hangs its guide export regeneration off it.
	onPublish func(*models.CachedGuide)
}

// NewService creates the guide cache service
func NewService(repos *db.Repositories, store *lineup.Store, cat catalog.Lookup, clock LiveTimestamper, cfg config.GuideConfig) *Service {
	return &Service{
		repos:   repos,
		store:   store,
		catalog: cat,
		clock:   clock,
		cfg:     cfg,
	}
}

// SetOnPublish registers the lifecycle hook fired after each successful publish
func (s *Service) SetOnPublish(fn func(*models.CachedGuide)) {
	s.onPublish = fn
}

// BuildsStarted returns the monotonically increasing count of refresh passes
// that actually started building (collapsed duplicates excluded)
func (s *Service) BuildsStarted() int64 {
	return s.buildsStarted.Load()
}

// LastUpdateMs returns when the published guide was last swapped, zero if never
func (s *Service) LastUpdateMs() int64 {
	return s.lastUpdateMs.Load()
}

// Refresh rebuilds the guide covering [now, now+window) and atomically
// publishes it. Concurrent calls collapse into the in-flight rebuild and
// return immediately. Transient failures are retried with exponential backoff
// up to the configured attempt count; if every attempt fails the previous
// guide keeps serving.
func (s *Service) Refresh(ctx context.Context, window time.Duration) error {
	if !s.building.CompareAndSwap(false, true) {
		logger.Log.Debug().Msg("Guide refresh already in flight; collapsing")
		return nil
	}
	defer s.building.Store(false)

	s.buildsStarted.Add(1)

	attempts := s.cfg.MaxBuildRetries + 1
	backoff := s.cfg.RetryBackoffBase
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			logger.Log.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying guide refresh")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}

		built, err := s.buildOnce(ctx, window)
		if err != nil {
			lastErr = err
			logger.Log.Error().
				Err(err).
				Int("attempt", attempt).
				Msg("Guide refresh attempt failed")
			continue
		}

		s.published.Store(built)
		s.lastUpdateMs.Store(built.BuiltAtMs)
		s.lastEndMs.Store(built.WindowEndMs)

		logger.Log.Info().
			Int("channels", len(built.Channels)).
			Int64("window_end_ms", built.WindowEndMs).
			Int("attempt", attempt).
			Msg("Guide published")

		if s.onPublish != nil {
			s.onPublish(built)
		}
		return nil
	}

	// Exhausted: the previous guide, if any, stays published.
	logger.Log.Error().
		Err(lastErr).
		Int("attempts", attempts).
		Msg("Guide refresh exhausted retries; serving previous guide")

	return fmt.Errorf("guide refresh failed after %d attempts: %w", attempts, lastErr)
}

// buildOnce performs one full rebuild pass over a consistent snapshot
func (s *Service) buildOnce(ctx context.Context, window time.Duration) (*models.CachedGuide, error) {
	nowMs := time.Now().UnixMilli()
	endMs := nowMs + window.Milliseconds()

	channels, snap, err := takeSnapshot(ctx, s.repos, s.store)
	if err != nil {
		return nil, err
	}

	if len(channels) == 0 {
		return s.placeholderGuide(nowMs, endMs), nil
	}

	builder := NewBuilder(resolver.NewRedirectResolver(snap), s.catalog, s.clock, s.builderOptions())

	results := make([]*models.ChannelGuide, len(channels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BuildParallelism)

	for i, ch := range channels {
		i, ch := i, ch
		if ch.Stealth {
			// Stealth channels stay out of the published guide but remain in
			// the snapshot as redirect targets.
			continue
		}
		g.Go(func() error {
			programs, err := builder.BuildChannel(gctx, ch, snap.lineups[ch.ID], nowMs, endMs)
			if err != nil {
				if resolver.IsCorruption(err) || isNonPositiveProgram(err) {
					// Corruption is fatal to this channel only; the rest of
					// the refresh pass continues.
					logger.Log.Error().
						Err(err).
						Str("channel_id", ch.ID.String()).
						Msg("Channel guide build aborted by lineup corruption")
					return nil
				}
				return fmt.Errorf("channel %s: %w", ch.ID, err)
			}
			results[i] = &models.ChannelGuide{Channel: ch, Programs: programs}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	built := &models.CachedGuide{
		Channels:    make(map[uuid.UUID]*models.ChannelGuide, len(channels)),
		BuiltAtMs:   nowMs,
		WindowEndMs: endMs,
	}
	for _, cg := range results {
		if cg != nil {
			built.Channels[cg.Channel.ID] = cg
		}
	}

	return built, nil
}

// placeholderGuide is published when the system has zero channels so guide
// consumers degrade gracefully instead of seeing a hard failure
func (s *Service) placeholderGuide(nowMs, endMs int64) *models.CachedGuide {
	placeholder := &models.Channel{
		ID:     uuid.Nil,
		Number: 1,
		Name:   "No channels configured",
	}
	return &models.CachedGuide{
		Channels: map[uuid.UUID]*models.ChannelGuide{
			uuid.Nil: {
				Channel: placeholder,
				Programs: []models.GuideProgram{{
					StartMs: nowMs,
					StopMs:  endMs,
					Kind:    models.ProgramKindFlex,
					Title:   "No channels configured",
				}},
			},
		},
		BuiltAtMs:   nowMs,
		WindowEndMs: endMs,
	}
}

// Get returns the published guide, polling for a bounded interval if the
// first build has not completed yet. Readers never receive a nil guide while
// a build could still publish one.
func (s *Service) Get(ctx context.Context) (*models.CachedGuide, error) {
	for poll := 0; poll < getMaxPolls; poll++ {
		if g := s.published.Load(); g != nil {
			return g, nil
		}
		select {
		case <-time.After(getPollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, ErrGuideNotReady
}

// ChannelLineup builds a one-off guide window for a single channel directly
// from its stored lineup, bypassing the cache. Stealth channels are allowed:
// they are resolvable even though the published guide excludes them.
func (s *Service) ChannelLineup(ctx context.Context, channelID uuid.UUID, fromMs, toMs int64) ([]models.GuideProgram, error) {
	source := &liveSource{repos: s.repos, store: s.store}

	ch, err := source.Channel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	lu, err := source.Lineup(ctx, channelID)
	if err != nil {
		return nil, err
	}

	builder := NewBuilder(resolver.NewRedirectResolver(source), s.catalog, s.clock, s.builderOptions())
	return builder.BuildChannel(ctx, ch, lu, fromMs, toMs)
}

// builderOptions derives the builder thresholds from configuration
func (s *Service) builderOptions() BuilderOptions {
	return BuilderOptions{
		DefaultGuideMinimumMs: s.cfg.DefaultGuideMinimum.Milliseconds(),
		MaxMeldMs:             s.cfg.MaxMeldDuration.Milliseconds(),
		MaxFlexMs:             s.cfg.MaxFlexDuration.Milliseconds(),
	}
}

// isNonPositiveProgram checks for the builder's own corruption sentinel
func isNonPositiveProgram(err error) bool {
	return errors.Is(err, ErrNonPositiveProgram)
}
