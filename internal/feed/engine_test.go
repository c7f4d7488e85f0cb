// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestEngine(t *testing.T, store Store, sources []Provider, mutate func(*Config), opts ...Option) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SourceTimeout = 500 * time.Millisecond
	cfg.GenerationTimeout = 5 * time.Second
	cfg.PreferencesCacheTTL = 0
	if mutate != nil {
		mutate(cfg)
	}
	e, err := NewEngine(cfg, store, sources, zerolog.Nop(), opts...)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func trendingBatch(ids ...int64) []Candidate {
	out := make([]Candidate, len(ids))
	for i, id := range ids {
		out[i] = persona(SourceTrending, id, float64(len(ids)-i))
	}
	return out
}

func TestEngine_ExampleScenario(t *testing.T) {
	t.Parallel()

	trending := &mockSource{name: SourceTrending}
	for i, raw := range []float64{0.9, 0.8, 0.7, 0.6, 0.5} {
		trending.cands = append(trending.cands, persona(SourceTrending, int64(i+1), raw))
	}
	personalized := &mockSource{name: SourcePersonalized}
	for i, raw := range []float64{0.95, 0.85, 0.75, 0.65, 0.55} {
		personalized.cands = append(personalized.cands, persona(SourcePersonalized, int64(i+6), raw))
	}

	store := newMemStore()
	e := newTestEngine(t, store, []Provider{trending, personalized}, nil)
	ctx := context.Background()

	prefs, err := e.GetPreferences(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetPreferences() error = %v", err)
	}
	prefs.MaxItems = 10
	if _, err := e.UpdatePreferences(ctx, prefs); err != nil {
		t.Fatalf("UpdatePreferences() error = %v", err)
	}

	res, err := e.GenerateFeed(ctx, "user-1", GenerateOptions{})
	if err != nil {
		t.Fatalf("GenerateFeed() error = %v", err)
	}
	if len(res.Items) != 10 {
		t.Fatalf("got %d items, want 10", len(res.Items))
	}

	seen := make(map[string]bool)
	posOf := make(map[int64]int)
	for i, it := range res.Items {
		if it.Position != i {
			t.Errorf("item %d has position %d", i, it.Position)
		}
		if seen[it.Key()] {
			t.Errorf("duplicate %s", it.Key())
		}
		seen[it.Key()] = true
		posOf[it.PersonaID] = it.Position
		if i > 0 && it.Relevance > res.Items[i-1].Relevance {
			t.Errorf("relevance increases at position %d", i)
		}
	}
	// Same raw rank: personalized (weight 0.4) above trending (weight 0.3).
	for rank := int64(0); rank < 4; rank++ {
		if posOf[6+rank] > posOf[1+rank] {
			t.Errorf("rank %d: personalized at %d below trending at %d", rank, posOf[6+rank], posOf[1+rank])
		}
	}
	if res.SourceStats[SourceTrending] != 5 || res.SourceStats[SourcePersonalized] != 5 {
		t.Errorf("SourceStats = %v", res.SourceStats)
	}
}

func TestEngine_GetFeedBeforeGeneration(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	src := &mockSource{name: SourceTrending, cands: trendingBatch(1, 2, 3)}
	e := newTestEngine(t, store, []Provider{src}, nil)
	ctx := context.Background()

	page, err := e.GetFeed(ctx, "user-1", 0, "")
	if err != nil {
		t.Fatalf("GetFeed() error = %v", err)
	}
	if page.State != StateGenerating || len(page.Items) != 0 {
		t.Fatalf("first read = %s with %d items, want generating and empty", page.State, len(page.Items))
	}

	waitFor(t, "background generation", func() bool {
		meta, _ := store.ActiveSnapshot(ctx, "user-1")
		return meta != nil
	})

	page, err = e.GetFeed(ctx, "user-1", 0, "")
	if err != nil {
		t.Fatalf("GetFeed() error = %v", err)
	}
	if page.State != StateReady || len(page.Items) != 3 {
		t.Errorf("second read = %s with %d items, want ready with 3", page.State, len(page.Items))
	}
}

func TestEngine_ConcurrentGenerateJoins(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	src := &mockSource{name: SourceTrending, cands: trendingBatch(1, 2, 3), gate: gate}
	store := newMemStore()
	e := newTestEngine(t, store, []Provider{src}, nil)
	ctx := context.Background()

	const callers = 5
	results := make([]*GenerateResult, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = e.GenerateFeed(ctx, "user-1", GenerateOptions{RefreshExisting: true})
		}(i)
	}

	waitFor(t, "source call", func() bool { return src.calls.Load() == 1 })
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	var joined int
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if results[i].Version != 1 {
			t.Errorf("caller %d got version %d, want 1", i, results[i].Version)
		}
		if results[i].Joined {
			joined++
		}
	}
	if joined != callers-1 {
		t.Errorf("joined = %d, want %d", joined, callers-1)
	}
	if got := e.Executions(); got != 1 {
		t.Errorf("Executions() = %d, want 1", got)
	}
	if got := store.swapCalls.Load(); got != 1 {
		t.Errorf("swap calls = %d, want 1", got)
	}
}

func TestEngine_ConcurrentGenerateRejects(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	src := &mockSource{name: SourceTrending, cands: trendingBatch(1), gate: gate}
	e := newTestEngine(t, newMemStore(), []Provider{src}, func(c *Config) { c.ConcurrencyPolicy = ConcurrencyReject })
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := e.GenerateFeed(ctx, "user-1", GenerateOptions{RefreshExisting: true})
		done <- err
	}()
	waitFor(t, "run in flight", func() bool { return e.inFlight("user-1") != nil })

	if _, err := e.GenerateFeed(ctx, "user-1", GenerateOptions{RefreshExisting: true}); !errors.Is(err, ErrGenerationInProgress) {
		t.Errorf("second GenerateFeed() error = %v, want ErrGenerationInProgress", err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Errorf("first GenerateFeed() error = %v", err)
	}
}

func TestEngine_SourceFailuresDegrade(t *testing.T) {
	t.Parallel()

	healthy := &mockSource{name: SourceTrending, cands: trendingBatch(1, 2)}
	broken := &mockSource{name: SourcePersonalized, err: errors.New("model offline")}
	slow := &mockSource{name: SourceSocial, delay: 2 * time.Second}
	e := newTestEngine(t, newMemStore(), []Provider{healthy, broken, slow}, func(c *Config) {
		c.SourceTimeout = 50 * time.Millisecond
	})

	start := time.Now()
	res, err := e.GenerateFeed(context.Background(), "user-1", GenerateOptions{})
	if err != nil {
		t.Fatalf("GenerateFeed() error = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("slow source was not cut off by its timeout")
	}
	if len(res.Items) != 2 {
		t.Errorf("got %d items, want 2 from the healthy source", len(res.Items))
	}
	if res.SourceStats[SourcePersonalized] != 0 || res.SourceStats[SourceSocial] != 0 {
		t.Errorf("SourceStats = %v", res.SourceStats)
	}
}

func TestEngine_BreakerOpensAfterFailures(t *testing.T) {
	t.Parallel()

	broken := &mockSource{name: SourcePersonalized, err: errors.New("down")}
	e := newTestEngine(t, newMemStore(), []Provider{broken}, func(c *Config) {
		c.Breaker = BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute}
	})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := e.GenerateFeed(ctx, "user-1", GenerateOptions{RefreshExisting: true}); err != nil {
			t.Fatalf("GenerateFeed() error = %v", err)
		}
	}
	if got := broken.calls.Load(); got != 2 {
		t.Errorf("source called %d times, want 2 before the breaker opened", got)
	}
	if got := e.BreakerStates()[SourcePersonalized]; got != "open" {
		t.Errorf("breaker state = %s, want open", got)
	}
}

func TestEngine_DismissCooldown(t *testing.T) {
	t.Parallel()

	var clock atomic.Int64
	clock.Store(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).UnixNano())
	now := func() time.Time { return time.Unix(0, clock.Load()).UTC() }

	src := &mockSource{name: SourceTrending, cands: trendingBatch(1, 2, 3)}
	sink := &recordingSink{}
	e := newTestEngine(t, newMemStore(), []Provider{src}, func(c *Config) { c.DismissCooldown = 24 * time.Hour },
		WithClock(now), WithEventSink(sink))
	ctx := context.Background()

	res, err := e.GenerateFeed(ctx, "user-1", GenerateOptions{})
	if err != nil {
		t.Fatalf("GenerateFeed() error = %v", err)
	}
	top := res.Items[0]
	if _, first, err := e.TrackInteraction(ctx, top.ID, InteractionDismissed); err != nil || !first {
		t.Fatalf("TrackInteraction() = first %v, err %v", first, err)
	}

	res, err = e.GenerateFeed(ctx, "user-1", GenerateOptions{RefreshExisting: true})
	if err != nil {
		t.Fatalf("GenerateFeed() error = %v", err)
	}
	for _, it := range res.Items {
		if it.Key() == top.Key() {
			t.Fatalf("dismissed %s reappeared within the cooldown", top.Key())
		}
	}

	clock.Add(int64(25 * time.Hour))
	res, err = e.GenerateFeed(ctx, "user-1", GenerateOptions{RefreshExisting: true})
	if err != nil {
		t.Fatalf("GenerateFeed() error = %v", err)
	}
	if len(res.Items) != 3 {
		t.Errorf("after cooldown got %d items, want 3", len(res.Items))
	}
}

func TestEngine_InteractionsFirstWriteWins(t *testing.T) {
	t.Parallel()

	src := &mockSource{name: SourceTrending, cands: trendingBatch(1)}
	sink := &recordingSink{}
	e := newTestEngine(t, newMemStore(), []Provider{src}, nil, WithEventSink(sink))
	ctx := context.Background()

	res, err := e.GenerateFeed(ctx, "user-1", GenerateOptions{})
	if err != nil {
		t.Fatalf("GenerateFeed() error = %v", err)
	}
	id := res.Items[0].ID

	first, isFirst, err := e.TrackInteractionByName(ctx, id, "liked")
	if err != nil || !isFirst {
		t.Fatalf("first like: first=%v err=%v", isFirst, err)
	}
	second, isFirst, err := e.TrackInteractionByName(ctx, id, "like")
	if err != nil || isFirst {
		t.Fatalf("second like: first=%v err=%v", isFirst, err)
	}
	if !second.LikedAt.Equal(*first.LikedAt) {
		t.Errorf("like timestamp changed from %v to %v", first.LikedAt, second.LikedAt)
	}
	if n, _ := sink.counts(); n != 1 {
		t.Errorf("interaction events = %d, want 1", n)
	}

	if _, _, err := e.TrackInteraction(ctx, "missing", InteractionViewed); !errors.Is(err, ErrFeedItemNotFound) {
		t.Errorf("unknown item error = %v", err)
	}
	if _, _, err := e.TrackInteractionByName(ctx, id, "poke"); !errors.Is(err, ErrUnknownInteraction) {
		t.Errorf("unknown kind error = %v", err)
	}
}

func TestEngine_CursorPinsSnapshot(t *testing.T) {
	t.Parallel()

	src := &mockSource{name: SourceTrending, cands: trendingBatch(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)}
	e := newTestEngine(t, newMemStore(), []Provider{src}, nil)
	ctx := context.Background()

	if _, err := e.GenerateFeed(ctx, "user-1", GenerateOptions{}); err != nil {
		t.Fatalf("GenerateFeed() error = %v", err)
	}
	page1, err := e.GetFeed(ctx, "user-1", 4, "")
	if err != nil {
		t.Fatalf("GetFeed() error = %v", err)
	}
	if page1.NextCursor == "" || page1.Total != 10 {
		t.Fatalf("page1 cursor=%q total=%d", page1.NextCursor, page1.Total)
	}

	src.cands = trendingBatch(20, 21)
	if _, err := e.GenerateFeed(ctx, "user-1", GenerateOptions{RefreshExisting: true}); err != nil {
		t.Fatalf("GenerateFeed() error = %v", err)
	}

	page2, err := e.GetFeed(ctx, "user-1", 4, page1.NextCursor)
	if err != nil {
		t.Fatalf("GetFeed(cursor) error = %v", err)
	}
	if page2.Version != page1.Version || len(page2.Items) != 4 || page2.Items[0].Position != 4 {
		t.Fatalf("page2 = version %d, %d items, first position %d", page2.Version, len(page2.Items), page2.Items[0].Position)
	}

	fresh, err := e.GetFeed(ctx, "user-1", 4, "")
	if err != nil {
		t.Fatalf("GetFeed() error = %v", err)
	}
	if fresh.Version == page1.Version || fresh.Total != 2 {
		t.Errorf("fresh read = version %d total %d, want the new snapshot", fresh.Version, fresh.Total)
	}

	if _, err := e.PruneRetired(ctx); err != nil {
		t.Fatalf("PruneRetired() error = %v", err)
	}
	if _, err := e.GetFeed(ctx, "user-1", 4, page2.NextCursor); !errors.Is(err, ErrCursorExpired) {
		t.Errorf("pruned cursor error = %v, want ErrCursorExpired", err)
	}
	if _, err := e.GetFeed(ctx, "user-1", 4, "garbage!"); !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("garbage cursor error = %v, want ErrInvalidCursor", err)
	}
}

func TestEngine_PreferencesChangeRestartsRun(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	src := &mockSource{name: SourceTrending, cands: trendingBatch(1, 2, 3, 4, 5, 6), gate: gate}
	e := newTestEngine(t, newMemStore(), []Provider{src}, nil)
	ctx := context.Background()

	prefs, err := e.GetPreferences(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetPreferences() error = %v", err)
	}

	done := make(chan *GenerateResult, 1)
	go func() {
		res, _ := e.GenerateFeed(ctx, "user-1", GenerateOptions{})
		done <- res
	}()
	waitFor(t, "source call", func() bool { return src.calls.Load() == 1 })

	prefs.MaxItems = 3
	if _, err := e.UpdatePreferences(ctx, prefs); err != nil {
		t.Fatalf("UpdatePreferences() error = %v", err)
	}
	close(gate)

	res := <-done
	if res == nil {
		t.Fatal("GenerateFeed() failed")
	}
	if len(res.Items) != 3 {
		t.Errorf("got %d items, want 3 from the updated preferences", len(res.Items))
	}
	if got := e.Executions(); got != 2 {
		t.Errorf("Executions() = %d, want 2", got)
	}
}

func TestEngine_DeleteUserDuringRun(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	src := &mockSource{name: SourceTrending, cands: trendingBatch(1, 2), gate: gate}
	store := newMemStore()
	e := newTestEngine(t, store, []Provider{src}, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := e.GenerateFeed(ctx, "user-1", GenerateOptions{})
		done <- err
	}()
	waitFor(t, "run in flight", func() bool { return e.inFlight("user-1") != nil && src.calls.Load() == 1 })

	if err := e.DeleteUser(ctx, "user-1"); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	close(gate)

	if err := <-done; !errors.Is(err, ErrUserDeleted) {
		t.Errorf("GenerateFeed() error = %v, want ErrUserDeleted", err)
	}
	if meta, _ := store.ActiveSnapshot(ctx, "user-1"); meta != nil {
		t.Error("snapshot persisted for a deleted user")
	}
}

func TestEngine_PersistenceFailureKeepsPrevious(t *testing.T) {
	t.Parallel()

	src := &mockSource{name: SourceTrending, cands: trendingBatch(1, 2)}
	store := newMemStore()
	e := newTestEngine(t, store, []Provider{src}, nil)
	ctx := context.Background()

	if _, err := e.GenerateFeed(ctx, "user-1", GenerateOptions{}); err != nil {
		t.Fatalf("GenerateFeed() error = %v", err)
	}
	store.mu.Lock()
	store.swapErr = errors.New("disk full")
	store.mu.Unlock()

	if _, err := e.GenerateFeed(ctx, "user-1", GenerateOptions{RefreshExisting: true}); !errors.Is(err, ErrPersistence) {
		t.Fatalf("GenerateFeed() error = %v, want ErrPersistence", err)
	}
	meta, err := store.ActiveSnapshot(ctx, "user-1")
	if err != nil || meta == nil || meta.Version != 1 {
		t.Errorf("active snapshot = %+v, %v; want version 1", meta, err)
	}
}

func TestEngine_TrendingFallbackAndReuse(t *testing.T) {
	t.Parallel()

	trending := &mockSource{name: SourceTrending, cands: trendingBatch(1, 2)}
	personalized := &mockSource{name: SourcePersonalized, cands: []Candidate{persona(SourcePersonalized, 9, 1)}}
	notifier := &countingNotifier{}
	e := newTestEngine(t, newMemStore(), []Provider{trending, personalized}, nil, WithNotifier(notifier))
	ctx := context.Background()

	prefs, _ := e.GetPreferences(ctx, "user-1")
	prefs.ShowTrending, prefs.ShowRecommendations, prefs.ShowFollowedCreators = false, false, false
	prefs.ShowSimilarPersonas, prefs.ShowReviewHighlights, prefs.ShowNewCreators = false, false, false
	prefs.Weights.Trending = 0
	if _, err := e.UpdatePreferences(ctx, prefs); err != nil {
		t.Fatalf("UpdatePreferences() error = %v", err)
	}

	res, err := e.GenerateFeed(ctx, "user-1", GenerateOptions{})
	if err != nil {
		t.Fatalf("GenerateFeed() error = %v", err)
	}
	if len(res.Items) != 2 || personalized.calls.Load() != 0 {
		t.Errorf("fallback feed has %d items, personalized calls %d", len(res.Items), personalized.calls.Load())
	}
	if res.Items[0].Relevance <= res.Items[1].Relevance {
		t.Errorf("fallback order lost: %f then %f", res.Items[0].Relevance, res.Items[1].Relevance)
	}

	again, err := e.GenerateFeed(ctx, "user-1", GenerateOptions{})
	if err != nil || !again.Reused || again.Version != res.Version {
		t.Errorf("second call = reused %v version %d err %v", again.Reused, again.Version, err)
	}
	if notifier.calls.Load() != 1 {
		t.Errorf("notifier calls = %d, want 1", notifier.calls.Load())
	}
}

func TestEngine_StatusAndClose(t *testing.T) {
	t.Parallel()

	src := &mockSource{name: SourceTrending, cands: trendingBatch(1)}
	e := newTestEngine(t, newMemStore(), []Provider{src}, nil)
	ctx := context.Background()

	st, err := e.Status(ctx, "user-1")
	if err != nil || st.State != StateNotRequested {
		t.Fatalf("Status() = %+v, %v", st, err)
	}
	if _, err := e.GenerateFeed(ctx, "user-1", GenerateOptions{}); err != nil {
		t.Fatalf("GenerateFeed() error = %v", err)
	}
	st, _ = e.Status(ctx, "user-1")
	if st.State != StateReady || st.ItemCount != 1 {
		t.Errorf("Status() = %+v", st)
	}

	e.Close()
	if _, err := e.GenerateFeed(ctx, "user-2", GenerateOptions{}); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("GenerateFeed() after Close error = %v", err)
	}
	if _, err := e.GenerateFeed(ctx, "", GenerateOptions{}); !errors.Is(err, ErrInvalidUserID) {
		t.Errorf("empty user error = %v", err)
	}
}

func TestEngine_JoinRequiresSameCategories(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	src := &mockSource{name: SourceTrending, cands: trendingBatch(1, 2), gate: gate}
	store := newMemStore()
	e := newTestEngine(t, store, []Provider{src}, nil)
	ctx := context.Background()

	leader := make(chan error, 1)
	go func() {
		_, err := e.GenerateFeed(ctx, "user-1", GenerateOptions{RefreshExisting: true})
		leader <- err
	}()
	waitFor(t, "run in flight", func() bool { return e.inFlight("user-1") != nil })

	if _, err := e.GenerateFeed(ctx, "user-1", GenerateOptions{Categories: []string{"music"}}); !errors.Is(err, ErrGenerationInProgress) {
		t.Errorf("filtered caller error = %v, want ErrGenerationInProgress", err)
	}

	follower := make(chan *GenerateResult, 1)
	go func() {
		res, err := e.GenerateFeed(ctx, "user-1", GenerateOptions{RefreshExisting: true})
		if err != nil {
			t.Errorf("unfiltered follower error = %v", err)
		}
		follower <- res
	}()
	time.Sleep(50 * time.Millisecond)
	close(gate)

	if err := <-leader; err != nil {
		t.Fatalf("leader error = %v", err)
	}
	if res := <-follower; res == nil || !res.Joined {
		t.Errorf("unfiltered follower = %+v, want joined result", res)
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("source calls = %d, want 1", got)
	}
}

func TestFlightKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []string
		same bool
	}{
		{"no filter", nil, []string{}, true},
		{"order ignored", []string{"art", "music"}, []string{"music", "art"}, true},
		{"filter vs none", []string{"music"}, nil, false},
		{"different filters", []string{"music"}, []string{"art"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := flightKey("u1", tt.a) == flightKey("u1", tt.b); got != tt.same {
				t.Errorf("flightKey(%v) == flightKey(%v) is %v, want %v", tt.a, tt.b, got, tt.same)
			}
		})
	}
}
