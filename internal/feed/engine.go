// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package feed

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/personafeed/internal/cache"
	"github.com/tomtom215/personafeed/internal/metrics"
)

const (
	userLockStripes = 64
	readMarkTTL     = time.Minute
)

// errPrefsChanged signals that a run must be discarded and restarted.
var errPrefsChanged = errors.New("preferences changed during generation")

// Engine generates, serves and records feedback on per-user feeds.
// It is safe for concurrent use.
type Engine struct {
	cfg      *Config
	logger   zerolog.Logger
	store    Store
	agg      *aggregator
	sink     EventSink
	notifier Notifier
	now      func() time.Time

	prefsCache *cache.TTL[*Preferences] // nil when disabled
	readMarks  *cache.TTL[struct{}]

	flight   singleflight.Group
	mu       sync.Mutex
	inflight map[string]*run
	closed   bool

	// userLocks serialize the snapshot swap against preference updates and
	// user deletion for the same user.
	userLocks [userLockStripes]sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup

	executions atomic.Int64
}

// run is the bookkeeping for one in-flight generation.
type run struct {
	id           string
	startedAt    time.Time
	categories   []string // run-level filter, nil for a full feed
	prefsChanged atomic.Bool
	deleted      atomic.Bool
}

// Option configures optional collaborators.
type Option func(*Engine)

// WithEventSink sets where interaction and generation events go.
func WithEventSink(s EventSink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithNotifier sets who is told about new snapshots.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine over store with the given candidate sources.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, store Store, sources []Provider, logger zerolog.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:       cfg.Clone(),
		logger:    logger.With().Str("component", "feed-engine").Logger(),
		store:     store,
		sink:      nopSink{},
		notifier:  nopNotifier{},
		now:       time.Now,
		readMarks: cache.NewTTL[struct{}](readMarkTTL),
		inflight:  make(map[string]*run),
		ctx:       ctx,
		cancel:    cancel,
	}
	if cfg.PreferencesCacheTTL > 0 {
		e.prefsCache = cache.NewTTL[*Preferences](cfg.PreferencesCacheTTL)
	}
	e.agg = newAggregator(sources, e.cfg, e.logger)
	for _, opt := range opts {
		opt(e)
	}

	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, string(s.Name()))
	}
	e.logger.Info().
		Strs("sources", names).
		Str("normalization", cfg.Normalization.String()).
		Str("concurrency_policy", cfg.ConcurrencyPolicy.String()).
		Dur("dismiss_cooldown", cfg.DismissCooldown).
		Msg("feed engine initialized")
	return e, nil
}

// Close stops background refreshes and waits for in-flight runs to finish.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.bg.Wait()
	e.readMarks.Close()
	if e.prefsCache != nil {
		e.prefsCache.Close()
	}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *Config {
	return e.cfg.Clone()
}

// Executions returns how many generation runs have executed the pipeline.
func (e *Engine) Executions() int64 {
	return e.executions.Load()
}

// BreakerStates reports each source's circuit breaker state.
func (e *Engine) BreakerStates() map[Source]string {
	return e.agg.breakerStates()
}

// track reserves a slot in the background wait group. It fails once the
// engine is closed.
func (e *Engine) track() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.bg.Add(1)
	return true
}

func (e *Engine) userLock(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &e.userLocks[h.Sum32()%userLockStripes]
}

// GetPreferences returns the user's preferences, creating defaults on first use.
func (e *Engine) GetPreferences(ctx context.Context, userID string) (*Preferences, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if e.prefsCache != nil {
		if p, ok := e.prefsCache.Get(userID); ok {
			metrics.RecordPreferencesCache(true)
			return p.Clone(), nil
		}
		metrics.RecordPreferencesCache(false)
	}
	p, err := e.loadPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if e.prefsCache != nil {
		e.prefsCache.Set(userID, p.Clone())
	}
	return p, nil
}

// loadPreferences reads through to the store.
func (e *Engine) loadPreferences(ctx context.Context, userID string) (*Preferences, error) {
	p, err := e.store.GetPreferences(ctx, userID)
	if errors.Is(err, ErrPreferencesNotFound) {
		p, err = e.store.EnsurePreferences(ctx, DefaultPreferences(userID, e.cfg))
	}
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	return p, nil
}

// UpdatePreferences validates and stores p. A run in flight for the user is
// discarded and restarted; otherwise an existing feed is refreshed in the
// background so the change shows up without waiting for the interval.
func (e *Engine) UpdatePreferences(ctx context.Context, p *Preferences) (*Preferences, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: missing body", ErrInvalidPreferences)
	}
	p = p.Clone()
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	lock := e.userLock(p.UserID)
	lock.Lock()
	stored, err := e.store.UpdatePreferences(ctx, p)
	if err == nil {
		if e.prefsCache != nil {
			e.prefsCache.Delete(p.UserID)
		}
		if r := e.inFlight(p.UserID); r != nil {
			r.prefsChanged.Store(true)
		}
	}
	lock.Unlock()
	if err != nil {
		return nil, fmt.Errorf("update preferences: %w", err)
	}

	e.logger.Info().
		Str("user_id", stored.UserID).
		Int64("version", stored.Version).
		Msg("feed preferences updated")

	if meta, merr := e.store.ActiveSnapshot(ctx, stored.UserID); merr == nil && meta != nil {
		e.refreshAsync(stored.UserID)
	}
	return stored, nil
}

func (e *Engine) isStale(meta *SnapshotMeta, prefs *Preferences) bool {
	return e.now().Sub(meta.GeneratedAt) >= prefs.RefreshInterval
}

func (e *Engine) pageSize(limit int) int {
	switch {
	case limit <= 0:
		return e.cfg.DefaultPageSize
	case limit > e.cfg.MaxPageSize:
		return e.cfg.MaxPageSize
	}
	return limit
}

// GetFeed returns one page of the user's active snapshot. It never waits for
// generation: a missing feed yields an empty StateGenerating page and a stale
// one is served while a refresh runs in the background. A cursor from an
// earlier page keeps reading the snapshot it was issued for.
func (e *Engine) GetFeed(ctx context.Context, userID string, limit int, cursorToken string) (*Page, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	limit = e.pageSize(limit)

	var cur cursor
	if cursorToken != "" {
		c, err := decodeCursor(cursorToken)
		if err != nil {
			return nil, err
		}
		cur = c
	}

	prefs, err := e.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	meta, err := e.store.ActiveSnapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	e.markRead(ctx, userID)

	refreshing := e.inFlight(userID) != nil
	page := &Page{UserID: userID, Items: []FeedItem{}, Refreshing: refreshing}

	if meta == nil {
		if cursorToken != "" {
			return nil, ErrCursorExpired
		}
		e.refreshAsync(userID)
		page.State = StateGenerating
		page.Refreshing = true
		metrics.RecordFeedRead(page.State.String())
		return page, nil
	}

	page.State = StateReady
	if e.isStale(meta, prefs) {
		page.State = StateStale
		e.refreshAsync(userID)
		page.Refreshing = true
	}

	version := meta.Version
	if cursorToken != "" {
		version = cur.Version
	}
	items, total, err := e.store.ListItems(ctx, userID, version, cur.Offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list feed items: %w", err)
	}
	if version != meta.Version && total == 0 {
		return nil, ErrCursorExpired
	}

	page.Version = version
	page.Total = total
	page.Items = items
	if version == meta.Version {
		at := meta.GeneratedAt
		page.GeneratedAt = &at
	} else if len(items) > 0 {
		at := items[0].GeneratedAt
		page.GeneratedAt = &at
	}
	if next := cur.Offset + len(items); len(items) > 0 && next < total {
		page.NextCursor = cursor{Version: version, Offset: next}.encode()
	}

	metrics.RecordFeedRead(page.State.String())
	return page, nil
}

// markRead records feed activity at most once per readMarkTTL per user.
func (e *Engine) markRead(ctx context.Context, userID string) {
	if _, ok := e.readMarks.Get(userID); ok {
		return
	}
	e.readMarks.Set(userID, struct{}{})
	if err := e.store.TouchRead(ctx, userID, e.now()); err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to record feed read")
	}
}

// Status reports where the user's feed is in its lifecycle.
func (e *Engine) Status(ctx context.Context, userID string) (*Status, error) {
	prefs, err := e.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	meta, err := e.store.ActiveSnapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	st := &Status{
		UserID:          userID,
		RefreshInterval: prefs.RefreshInterval,
		InFlight:        e.inFlight(userID) != nil,
	}
	switch {
	case st.InFlight:
		st.State = StateGenerating
	case meta == nil:
		st.State = StateNotRequested
	case e.isStale(meta, prefs):
		st.State = StateStale
	default:
		st.State = StateReady
	}
	if meta != nil {
		at := meta.GeneratedAt
		st.GeneratedAt = &at
		st.Version = meta.Version
		st.ItemCount = meta.ItemCount
	}
	return st, nil
}

// DeleteUser removes everything stored for the user. A run in flight for the
// user finishes but its result is dropped.
func (e *Engine) DeleteUser(ctx context.Context, userID string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if r := e.inFlight(userID); r != nil {
		r.deleted.Store(true)
	}
	if err := e.store.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete user feed data: %w", err)
	}
	if e.prefsCache != nil {
		e.prefsCache.Delete(userID)
	}
	e.readMarks.Delete(userID)

	e.logger.Info().Str("user_id", userID).Msg("user feed data deleted")
	return nil
}

// DueForRefresh lists users active within activeWindow whose feed is stale.
func (e *Engine) DueForRefresh(ctx context.Context, activeWindow time.Duration, limit int) ([]string, error) {
	now := e.now()
	return e.store.UsersDueForRefresh(ctx, now.Add(-activeWindow), now, limit)
}

// PruneRetired deletes snapshots retired longer than the retention window.
func (e *Engine) PruneRetired(ctx context.Context) (int64, error) {
	n, err := e.store.PruneRetired(ctx, e.now().Add(-e.cfg.RetiredRetention))
	if err != nil {
		return 0, fmt.Errorf("prune retired feed items: %w", err)
	}
	if n > 0 {
		metrics.RetiredItemsPruned.Add(float64(n))
		e.logger.Debug().Int64("items", n).Msg("pruned retired feed items")
	}
	return n, nil
}
