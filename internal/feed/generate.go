// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package feed

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/personafeed/internal/metrics"
)

type runOutcome struct {
	result *GenerateResult
	err    error
}

// GenerateFeed runs the generation pipeline for the user, or returns the
// current snapshot when it is still fresh and neither a refresh nor a
// category filter was requested.
//
// Under ConcurrencyJoin a caller that finds a run in flight waits for it and
// receives its result with Joined set. Under ConcurrencyReject it gets
// ErrGenerationInProgress. The run itself is detached from ctx: cancelling
// ctx stops the wait, not the run.
//
//nolint:gocritic // hugeParam: opts passed by value for immutability
func (e *Engine) GenerateFeed(ctx context.Context, userID string, opts GenerateOptions) (*GenerateResult, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	categories := normalizeCategories(opts.Categories)

	if !opts.RefreshExisting && len(categories) == 0 {
		res, err := e.currentIfFresh(ctx, userID)
		if err != nil || res != nil {
			return res, err
		}
	}

	if e.cfg.ConcurrencyPolicy == ConcurrencyReject {
		r, ok := e.tryRegister(userID, categories)
		if !ok {
			metrics.RecordConcurrentGeneration(false)
			return nil, ErrGenerationInProgress
		}
		if !e.track() {
			e.unregister(userID, r)
			return nil, ErrEngineClosed
		}
		done := make(chan runOutcome, 1)
		go func() {
			defer e.bg.Done()
			defer e.unregister(userID, r)
			res, err := e.execute(r, userID)
			done <- runOutcome{res, err}
		}()
		return e.await(ctx, done)
	}

	return e.join(ctx, userID, categories)
}

// join shares one run per user between concurrent callers that asked for the
// same category filter. A caller whose filter differs from the run in flight
// gets ErrGenerationInProgress instead of a feed built for other options.
func (e *Engine) join(ctx context.Context, userID string, categories []string) (*GenerateResult, error) {
	leader := false
	ch := e.flight.DoChan(flightKey(userID, categories), func() (interface{}, error) {
		leader = true
		if !e.track() {
			return nil, ErrEngineClosed
		}
		defer e.bg.Done()
		r, ok := e.tryRegister(userID, categories)
		if !ok {
			metrics.RecordConcurrentGeneration(false)
			return nil, ErrGenerationInProgress
		}
		defer e.unregister(userID, r)
		return e.execute(r, userID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		out, _ := res.Val.(*GenerateResult)
		if out == nil {
			return nil, fmt.Errorf("generation returned no result")
		}
		if !leader {
			metrics.RecordConcurrentGeneration(true)
			cp := *out
			cp.Joined = true
			return &cp, nil
		}
		return out, nil
	}
}

func (e *Engine) await(ctx context.Context, done <-chan runOutcome) (*GenerateResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		return o.result, o.err
	}
}

// currentIfFresh returns the active snapshot when it is Ready, nil otherwise.
func (e *Engine) currentIfFresh(ctx context.Context, userID string) (*GenerateResult, error) {
	prefs, err := e.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	meta, err := e.store.ActiveSnapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if meta == nil || e.isStale(meta, prefs) {
		return nil, nil
	}
	items, _, err := e.store.ListItems(ctx, userID, meta.Version, 0, MaxItemsLimit)
	if err != nil {
		return nil, fmt.Errorf("list feed items: %w", err)
	}
	return &GenerateResult{
		UserID:      userID,
		State:       StateReady,
		Version:     meta.Version,
		GeneratedAt: meta.GeneratedAt,
		Items:       items,
		Reused:      true,
	}, nil
}

// flightKey identifies runs that callers may share: same user, same
// category filter in any order.
func flightKey(userID string, categories []string) string {
	if len(categories) == 0 {
		return userID
	}
	return userID + "\x00" + strings.Join(slices.Sorted(slices.Values(categories)), ",")
}

func (e *Engine) tryRegister(userID string, categories []string) (*run, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[userID]; busy {
		return nil, false
	}
	r := &run{id: uuid.NewString()[:8], startedAt: e.now(), categories: categories}
	e.inflight[userID] = r
	metrics.FeedGenerationsInFlight.Inc()
	return r, true
}

func (e *Engine) unregister(userID string, r *run) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight[userID] == r {
		delete(e.inflight, userID)
		metrics.FeedGenerationsInFlight.Dec()
	}
}

func (e *Engine) inFlight(userID string) *run {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inflight[userID]
}

// refreshAsync starts a background run unless one is already in flight.
func (e *Engine) refreshAsync(userID string) {
	if e.inFlight(userID) != nil || !e.track() {
		return
	}
	go func() {
		defer e.bg.Done()
		ctx, cancel := context.WithTimeout(e.ctx, e.cfg.GenerationTimeout)
		defer cancel()
		_, err := e.GenerateFeed(ctx, userID, GenerateOptions{RefreshExisting: true})
		switch {
		case err == nil,
			errors.Is(err, ErrGenerationInProgress),
			errors.Is(err, ErrEngineClosed),
			errors.Is(err, ErrUserDeleted),
			errors.Is(err, context.Canceled):
		default:
			e.logger.Warn().Err(err).Str("user_id", userID).Msg("background feed refresh failed")
		}
	}()
}

// execute runs the pipeline, restarting when preferences change mid-run.
func (e *Engine) execute(r *run, userID string) (*GenerateResult, error) {
	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.GenerationTimeout)
	defer cancel()

	logger := e.logger.With().Str("user_id", userID).Str("run_id", r.id).Strs("categories", r.categories).Logger()
	for attempt := 0; ; attempt++ {
		res, err := e.generateOnce(ctx, r, userID, r.categories)
		if !errors.Is(err, errPrefsChanged) {
			return res, err
		}
		if attempt >= e.cfg.MaxRestarts {
			logger.Warn().Int("attempts", attempt+1).Msg("preferences kept changing, giving up on this run")
			return nil, fmt.Errorf("%w: preferences changed repeatedly", ErrGenerationInProgress)
		}
		logger.Info().Msg("preferences changed during generation, restarting")
		r.prefsChanged.Store(false)
	}
}

// generateOnce is one aggregate, filter, score, merge and persist pass.
func (e *Engine) generateOnce(ctx context.Context, r *run, userID string, categories []string) (*GenerateResult, error) {
	start := time.Now()
	e.executions.Add(1)

	prefs, err := e.loadPreferences(ctx, userID)
	if err != nil {
		metrics.RecordGeneration("failed", time.Since(start), 0)
		return nil, err
	}
	now := e.now()

	var dismissed map[string]struct{}
	if e.cfg.DismissCooldown > 0 {
		dismissed, err = e.store.DismissedKeys(ctx, userID, now.Add(-e.cfg.DismissCooldown))
		if err != nil {
			metrics.RecordGeneration("failed", time.Since(start), 0)
			return nil, fmt.Errorf("load dismissed items: %w", err)
		}
	}

	enabled := prefs.EnabledSources(e.cfg.TrendingFallback)
	fallback := e.cfg.TrendingFallback && prefs.TrendingFallbackActive()
	if fallback && prefs.Weights.Trending == 0 {
		// A user who switched everything off and zeroed trending still gets
		// a meaningful order out of the fallback.
		prefs = prefs.Clone()
		prefs.Weights.Trending = 1
	}

	req := SourceRequest{
		UserID:      userID,
		Limit:       prefs.MaxItems * e.cfg.PerSourceMultiplier,
		Preferences: prefs,
		Categories:  categories,
	}
	candidates, stats := e.agg.collect(ctx, enabled, req)

	kept, dropped := newFilterSpec(prefs, categories, dismissed).apply(candidates)
	for reason, n := range dropped {
		metrics.RecordFiltered(reason, n)
	}

	ranked := merge(scoreCandidates(kept, prefs, e.cfg.Normalization, e.cfg.PreferredCategoryBoost), prefs.MaxItems)
	snap := &Snapshot{
		UserID:      userID,
		GeneratedAt: now,
		Items:       buildItems(userID, ranked, now),
	}

	meta, err := e.commit(ctx, r, prefs.Version, snap)
	if err != nil {
		outcome := "failed"
		if errors.Is(err, errPrefsChanged) || errors.Is(err, ErrUserDeleted) {
			outcome = "discarded"
		}
		metrics.RecordGeneration(outcome, time.Since(start), len(snap.Items))
		return nil, err
	}

	outcome := "persisted"
	if len(snap.Items) == 0 {
		outcome = "empty"
	}
	metrics.RecordGeneration(outcome, time.Since(start), len(snap.Items))

	e.logger.Info().
		Str("user_id", userID).
		Str("run_id", r.id).
		Int64("version", meta.Version).
		Int("candidates", len(candidates)).
		Int("kept", len(kept)).
		Int("items", len(snap.Items)).
		Bool("trending_fallback", fallback).
		Dur("duration", time.Since(start)).
		Msg("feed generated")

	evt := &GeneratedEvent{
		EventID:     uuid.NewString(),
		UserID:      userID,
		Version:     meta.Version,
		ItemCount:   len(snap.Items),
		SourceStats: stats,
		Fallback:    fallback,
		DurationMs:  time.Since(start).Milliseconds(),
		GeneratedAt: now,
	}
	if err := e.sink.FeedGenerated(ctx, evt); err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to emit feed generated event")
	}
	e.notifier.FeedReady(userID, meta.Version, len(snap.Items))

	return &GenerateResult{
		UserID:      userID,
		State:       StateReady,
		Version:     meta.Version,
		GeneratedAt: now,
		Items:       snap.Items,
		SourceStats: stats,
	}, nil
}

// commit swaps the snapshot in unless the run was invalidated. It holds the
// user's lock so a concurrent preference update or deletion is either fully
// before or fully after the swap.
func (e *Engine) commit(ctx context.Context, r *run, prefsVersion int64, snap *Snapshot) (*SnapshotMeta, error) {
	lock := e.userLock(snap.UserID)
	lock.Lock()
	defer lock.Unlock()

	if r.deleted.Load() {
		return nil, ErrUserDeleted
	}
	if r.prefsChanged.Load() {
		return nil, errPrefsChanged
	}
	// Catches updates made by another instance sharing the database.
	if cur, err := e.store.GetPreferences(ctx, snap.UserID); err == nil && cur.Version != prefsVersion {
		return nil, errPrefsChanged
	} else if errors.Is(err, ErrPreferencesNotFound) {
		return nil, ErrUserDeleted
	}

	meta, err := e.store.SwapSnapshot(ctx, snap)
	if err != nil {
		e.logger.Error().Err(err).Str("user_id", snap.UserID).Msg("snapshot swap failed, previous feed stays active")
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return meta, nil
}

func buildItems(userID string, ranked []scored, at time.Time) []FeedItem {
	items := make([]FeedItem, len(ranked))
	for i := range ranked {
		s := &ranked[i]
		items[i] = FeedItem{
			UserID:      userID,
			Type:        s.Type,
			PersonaID:   s.PersonaID,
			CreatorID:   s.CreatorID,
			Source:      s.Source,
			Sources:     s.Sources,
			Relevance:   s.Relevance,
			Position:    i,
			Promoted:    s.Promoted,
			Trending:    s.Trending,
			Payload:     s.Payload,
			GeneratedAt: at,
		}
	}
	return items
}
