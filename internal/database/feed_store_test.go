// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/personafeed/internal/feed"
)

func testSnapshot(userID string, at time.Time, personaIDs ...int64) *feed.Snapshot {
	snap := &feed.Snapshot{UserID: userID, GeneratedAt: at}
	for i, id := range personaIDs {
		snap.Items = append(snap.Items, feed.FeedItem{
			Type:      feed.ItemTrendingPersona,
			PersonaID: id,
			Source:    feed.SourceTrending,
			Sources:   []feed.Source{feed.SourceTrending, feed.SourcePersonalized},
			Relevance: 1 - float64(i)/10,
			Position:  i,
			Payload:   feed.TrendingPersonaPayload{Name: "p", TrendingScore: float64(id)},
		})
	}
	return snap
}

func TestPreferences_EnsureAndUpdate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.GetPreferences(ctx, "u1"); !errors.Is(err, feed.ErrPreferencesNotFound) {
		t.Fatalf("GetPreferences() on empty table error = %v", err)
	}

	defaults := feed.DefaultPreferences("u1", feed.DefaultConfig())
	defaults.PreferredCategories = []string{"music"}
	stored, err := db.EnsurePreferences(ctx, defaults)
	if err != nil {
		t.Fatalf("EnsurePreferences() error = %v", err)
	}
	if stored.Version != 1 || stored.PreferredCategories[0] != "music" || stored.RefreshInterval != time.Hour {
		t.Errorf("EnsurePreferences() = %+v", stored)
	}

	again, err := db.EnsurePreferences(ctx, feed.DefaultPreferences("u1", feed.DefaultConfig()))
	if err != nil || again.Version != 1 || len(again.PreferredCategories) != 1 {
		t.Errorf("second EnsurePreferences() overwrote the row: %+v, %v", again, err)
	}

	stored.MaxItems = 7
	stored.Weights.Social = 2.5
	updated, err := db.UpdatePreferences(ctx, stored)
	if err != nil {
		t.Fatalf("UpdatePreferences() error = %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("Version = %d, want 2", updated.Version)
	}
	got, err := db.GetPreferences(ctx, "u1")
	if err != nil {
		t.Fatalf("GetPreferences() error = %v", err)
	}
	if got.MaxItems != 7 || got.Weights.Social != 2.5 || got.Version != 2 {
		t.Errorf("GetPreferences() = %+v", got)
	}

	fresh, err := db.UpdatePreferences(ctx, feed.DefaultPreferences("u2", feed.DefaultConfig()))
	if err != nil || fresh.Version != 1 {
		t.Errorf("UpdatePreferences() for a new user = %+v, %v", fresh, err)
	}
}

func TestSwapSnapshot_VersionsAndRetirement(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if meta, err := db.ActiveSnapshot(ctx, "u1"); err != nil || meta != nil {
		t.Fatalf("ActiveSnapshot() before any swap = %+v, %v", meta, err)
	}

	snap1 := testSnapshot("u1", now, 1, 2, 3)
	meta1, err := db.SwapSnapshot(ctx, snap1)
	if err != nil {
		t.Fatalf("SwapSnapshot() error = %v", err)
	}
	if meta1.Version != 1 || meta1.ItemCount != 3 {
		t.Errorf("meta1 = %+v", meta1)
	}
	for _, it := range snap1.Items {
		if it.ID == "" || it.Version != 1 {
			t.Errorf("item not written back: %+v", it)
		}
	}

	meta2, err := db.SwapSnapshot(ctx, testSnapshot("u1", now.Add(time.Minute), 4, 5))
	if err != nil {
		t.Fatalf("SwapSnapshot() error = %v", err)
	}
	if meta2.Version != 2 {
		t.Errorf("second version = %d, want 2", meta2.Version)
	}

	active, err := db.ActiveSnapshot(ctx, "u1")
	if err != nil || active.Version != 2 || active.ItemCount != 2 {
		t.Fatalf("ActiveSnapshot() = %+v, %v", active, err)
	}

	old, total, err := db.ListItems(ctx, "u1", 1, 1, 10)
	if err != nil {
		t.Fatalf("ListItems(v1) error = %v", err)
	}
	if total != 3 || len(old) != 2 || old[0].Position != 1 || old[0].RetiredAt == nil {
		t.Errorf("retired page = total %d, %d items, first %+v", total, len(old), old[0])
	}
	if p, ok := old[0].Payload.(feed.TrendingPersonaPayload); !ok || p.TrendingScore != 2 {
		t.Errorf("payload = %#v", old[0].Payload)
	}
	if len(old[0].Sources) != 2 {
		t.Errorf("sources = %v", old[0].Sources)
	}

	n, err := db.PruneRetired(ctx, time.Now().Add(time.Minute))
	if err != nil || n != 3 {
		t.Fatalf("PruneRetired() = %d, %v; want 3", n, err)
	}
	if _, total, _ := db.ListItems(ctx, "u1", 1, 0, 10); total != 0 {
		t.Errorf("pruned version still has %d items", total)
	}
	if _, total, _ := db.ListItems(ctx, "u1", 2, 0, 10); total != 2 {
		t.Errorf("active version has %d items after prune, want 2", total)
	}

	meta3, err := db.SwapSnapshot(ctx, testSnapshot("u1", now.Add(2*time.Minute)))
	if err != nil || meta3.Version != 3 || meta3.ItemCount != 0 {
		t.Errorf("empty swap = %+v, %v", meta3, err)
	}
}

func TestSetInteraction_FirstWriteWins(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	snap := testSnapshot("u1", now, 10, 11)
	if _, err := db.SwapSnapshot(ctx, snap); err != nil {
		t.Fatalf("SwapSnapshot() error = %v", err)
	}
	id := snap.Items[0].ID

	item, first, err := db.SetInteraction(ctx, id, feed.InteractionDismissed, now)
	if err != nil || !first || item.DismissedAt == nil {
		t.Fatalf("first dismiss = %+v, %v, %v", item, first, err)
	}
	item, first, err = db.SetInteraction(ctx, id, feed.InteractionDismissed, now.Add(time.Hour))
	if err != nil || first {
		t.Fatalf("second dismiss first=%v err=%v", first, err)
	}
	if !item.DismissedAt.Equal(now) {
		t.Errorf("DismissedAt = %v, want %v", item.DismissedAt, now)
	}

	keys, err := db.DismissedKeys(ctx, "u1", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("DismissedKeys() error = %v", err)
	}
	if _, ok := keys["persona:10"]; !ok || len(keys) != 1 {
		t.Errorf("DismissedKeys() = %v", keys)
	}
	if keys, _ := db.DismissedKeys(ctx, "u1", now.Add(2*time.Hour)); len(keys) != 0 {
		t.Errorf("DismissedKeys() after cooldown = %v", keys)
	}

	if _, _, err := db.SetInteraction(ctx, "missing", feed.InteractionViewed, now); !errors.Is(err, feed.ErrFeedItemNotFound) {
		t.Errorf("unknown item error = %v", err)
	}
}

func TestUsersDueForRefreshAndDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, u := range []string{"stale", "fresh", "idle"} {
		if _, err := db.EnsurePreferences(ctx, feed.DefaultPreferences(u, feed.DefaultConfig())); err != nil {
			t.Fatalf("EnsurePreferences(%s) error = %v", u, err)
		}
	}
	mustSwap := func(user string, at time.Time) {
		if _, err := db.SwapSnapshot(ctx, testSnapshot(user, at, 1)); err != nil {
			t.Fatalf("SwapSnapshot(%s) error = %v", user, err)
		}
	}
	mustSwap("stale", now.Add(-2*time.Hour))
	mustSwap("fresh", now.Add(-time.Minute))
	mustSwap("idle", now.Add(-2*time.Hour))

	for _, u := range []string{"stale", "fresh"} {
		if err := db.TouchRead(ctx, u, now.Add(-10*time.Minute)); err != nil {
			t.Fatalf("TouchRead() error = %v", err)
		}
	}
	if err := db.TouchRead(ctx, "idle", now.Add(-48*time.Hour)); err != nil {
		t.Fatalf("TouchRead() error = %v", err)
	}

	due, err := db.UsersDueForRefresh(ctx, now.Add(-24*time.Hour), now, 10)
	if err != nil {
		t.Fatalf("UsersDueForRefresh() error = %v", err)
	}
	if len(due) != 1 || due[0] != "stale" {
		t.Errorf("UsersDueForRefresh() = %v, want [stale]", due)
	}

	if err := db.DeleteUser(ctx, "stale"); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	if meta, _ := db.ActiveSnapshot(ctx, "stale"); meta != nil {
		t.Error("snapshot survived DeleteUser")
	}
	if _, err := db.GetPreferences(ctx, "stale"); !errors.Is(err, feed.ErrPreferencesNotFound) {
		t.Errorf("preferences survived DeleteUser: %v", err)
	}
	if meta, _ := db.ActiveSnapshot(ctx, "fresh"); meta == nil {
		t.Error("DeleteUser removed another user's snapshot")
	}
}

func TestRecordEngagement(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, kind := range []string{"viewed", "liked", "liked", "bogus"} {
		if err := db.RecordEngagement(ctx, 42, kind); err != nil {
			t.Fatalf("RecordEngagement(%s) error = %v", kind, err)
		}
	}
	m, err := db.DiscoveryMetricsFor(ctx, 42)
	if err != nil {
		t.Fatalf("DiscoveryMetricsFor() error = %v", err)
	}
	if m.Views24h != 1 || m.Likes24h != 2 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestSetInteraction_RepeatDismissKeepsCooldownStart(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	first := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cooldown := 7 * 24 * time.Hour

	snap := testSnapshot("u1", first, 42)
	if _, err := db.SwapSnapshot(ctx, snap); err != nil {
		t.Fatalf("SwapSnapshot() error = %v", err)
	}
	id := snap.Items[0].ID

	if _, recorded, err := db.SetInteraction(ctx, id, feed.InteractionDismissed, first); err != nil || !recorded {
		t.Fatalf("first dismiss recorded=%v err=%v", recorded, err)
	}
	if _, recorded, err := db.SetInteraction(ctx, id, feed.InteractionDismissed, first.Add(6*24*time.Hour)); err != nil || recorded {
		t.Fatalf("repeat dismiss recorded=%v err=%v", recorded, err)
	}

	var rows int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feed_interactions WHERE item_id = ?`, id).Scan(&rows); err != nil {
		t.Fatalf("count interactions: %v", err)
	}
	if rows != 1 {
		t.Errorf("interaction rows = %d, want 1", rows)
	}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"inside cooldown", first.Add(5 * 24 * time.Hour), true},
		{"after cooldown from first dismissal", first.Add(8 * 24 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := db.DismissedKeys(ctx, "u1", tt.now.Add(-cooldown))
			if err != nil {
				t.Fatalf("DismissedKeys() error = %v", err)
			}
			if _, got := keys["persona:42"]; got != tt.want {
				t.Errorf("persona:42 suppressed = %v, want %v (keys %v)", got, tt.want, keys)
			}
		})
	}
}

func TestSwapSnapshot_VersionsSurviveDeleteUser(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	meta1, err := db.SwapSnapshot(ctx, testSnapshot("u1", now, 1, 2))
	if err != nil || meta1.Version != 1 {
		t.Fatalf("SwapSnapshot() = %+v, %v", meta1, err)
	}
	if err := db.DeleteUser(ctx, "u1"); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}

	meta2, err := db.SwapSnapshot(ctx, testSnapshot("u1", now.Add(time.Minute), 3))
	if err != nil {
		t.Fatalf("SwapSnapshot() after delete error = %v", err)
	}
	if meta2.Version != 2 {
		t.Errorf("version after delete = %d, want 2", meta2.Version)
	}
	if _, total, _ := db.ListItems(ctx, "u1", meta1.Version, 0, 10); total != 0 {
		t.Errorf("pre-deletion version %d still lists %d items", meta1.Version, total)
	}
}
