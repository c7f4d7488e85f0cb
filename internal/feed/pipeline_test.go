// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package feed

import (
	"math"
	"testing"
	"time"
)

func TestFilterSpec_Reject(t *testing.T) {
	t.Parallel()

	prefs := DefaultPreferences("u1", DefaultConfig())
	prefs.BlockedCategories = []string{"horror"}
	prefs.MinRating = 3
	dismissed := map[string]struct{}{"persona:99": {}}

	unrated := persona(SourceTrending, 5, 1)
	unrated.RatingCount = 0
	unrated.Rating = 0

	lowRated := persona(SourceTrending, 6, 1)
	lowRated.Rating = 2

	blocked := persona(SourceTrending, 7, 1)
	blocked.Category = "Horror"

	badRefs := persona(SourceTrending, 8, 1)
	badRefs.CreatorID = 3

	mismatch := persona(SourcePersonalized, 9, 1)
	mismatch.Payload = TrendingPersonaPayload{}

	unverified := persona(SourceTrending, 10, 1)
	unverified.Verified = false

	lowCreator := creator(11, 1)
	lowCreator.Rating = 0.5
	lowCreator.RatingCount = 3

	tests := []struct {
		name         string
		cand         Candidate
		hideUnrated  bool
		verifiedOnly bool
		run          []string
		want         string
	}{
		{"kept", persona(SourceTrending, 1, 1), false, false, nil, ""},
		{"dismissed", persona(SourceTrending, 99, 1), false, false, nil, reasonDismissed},
		{"unrated kept by default", unrated, false, false, nil, ""},
		{"unrated hidden", unrated, true, false, nil, reasonUnrated},
		{"below min rating", lowRated, false, false, nil, reasonRating},
		{"blocked category is case insensitive", blocked, false, false, nil, reasonBlockedCategory},
		{"invalid references", badRefs, false, false, nil, reasonInvalidRef},
		{"payload type mismatch", mismatch, false, false, nil, reasonInvalidRef},
		{"unverified allowed", unverified, false, false, nil, ""},
		{"unverified rejected", unverified, false, true, nil, reasonUnverified},
		{"creator update ignores rating", lowCreator, false, false, nil, ""},
		{"run category miss", persona(SourceTrending, 12, 1), false, false, []string{"music"}, reasonRunCategory},
		{"run category hit", persona(SourceTrending, 13, 1), false, false, []string{"general"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := prefs.Clone()
			p.HideUnrated = tt.hideUnrated
			p.VerifiedOnly = tt.verifiedOnly
			f := newFilterSpec(p, tt.run, dismissed)
			c := tt.cand
			if got := f.reject(&c); got != tt.want {
				t.Errorf("reject() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilterSpec_ApplyCounts(t *testing.T) {
	t.Parallel()

	prefs := DefaultPreferences("u1", DefaultConfig())
	prefs.BlockedCategories = []string{"general"}
	in := []Candidate{persona(SourceTrending, 1, 1), persona(SourceTrending, 2, 1), creator(3, 1)}

	kept, dropped := newFilterSpec(prefs, nil, nil).apply(in)
	if len(kept) != 1 || kept[0].CreatorID != 3 {
		t.Fatalf("kept = %+v, want only creator 3", kept)
	}
	if dropped[reasonBlockedCategory] != 2 {
		t.Errorf("dropped[blocked] = %d, want 2", dropped[reasonBlockedCategory])
	}
	if in[0].PersonaID != 1 || in[1].PersonaID != 2 {
		t.Error("apply must not modify its input")
	}
}

func TestNormalize_MinMax(t *testing.T) {
	t.Parallel()

	cands := []Candidate{
		{RawScore: 10}, {RawScore: 20}, {RawScore: 30},
	}
	got := normalize(cands, []int{0, 1, 2}, NormalizeMinMax)
	want := []float64{0, 0.5, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("normalize[%d] = %f, want %f", i, got[i], want[i])
		}
	}

	equal := []Candidate{{RawScore: 7}, {RawScore: 7}}
	for i, v := range normalize(equal, []int{0, 1}, NormalizeMinMax) {
		if v != 1 {
			t.Errorf("equal batch normalize[%d] = %f, want 1", i, v)
		}
	}
}

func TestNormalize_Rank(t *testing.T) {
	t.Parallel()

	cands := []Candidate{{RawScore: 1}, {RawScore: 1000}, {RawScore: 5}, {RawScore: 5}}
	got := normalize(cands, []int{0, 1, 2, 3}, NormalizeRank)
	want := []float64{0.25, 1, 0.75, 0.5}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("rank normalize[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestScoreCandidates_BoundsAndWeights(t *testing.T) {
	t.Parallel()

	prefs := DefaultPreferences("u1", DefaultConfig())
	prefs.Weights = Weights{Trending: 5, Personalized: 0, Social: 1, NewCreator: 1}
	prefs.PreferredCategories = []string{"music"}

	boosted := persona(SourceSocial, 4, 0.5)
	boosted.Category = "Music"

	cands := []Candidate{
		persona(SourceTrending, 1, math.NaN()),
		persona(SourceTrending, 2, math.Inf(1)),
		persona(SourcePersonalized, 3, 100),
		persona(SourceSocial, 5, 1),
		boosted,
		persona(SourceSocial, 6, 0),
	}
	out := scoreCandidates(cands, prefs, NormalizeMinMax, 1.5)
	if len(out) != len(cands) {
		t.Fatalf("scored %d, want %d", len(out), len(cands))
	}
	for _, s := range out {
		if s.Relevance < 0 || s.Relevance > 1 || math.IsNaN(s.Relevance) {
			t.Errorf("persona %d relevance %f outside [0,1]", s.PersonaID, s.Relevance)
		}
	}
	if out[1].Relevance != 1 {
		t.Errorf("weight 5 on the top trending candidate should clamp to 1, got %f", out[1].Relevance)
	}
	if out[2].Relevance != 0 {
		t.Errorf("zero weight should score 0, got %f", out[2].Relevance)
	}
	if math.Abs(out[4].Relevance-0.75) > 1e-9 {
		t.Errorf("preferred category boost: got %f, want 0.75", out[4].Relevance)
	}
}

func TestMerge_DedupAndOrder(t *testing.T) {
	t.Parallel()

	now := time.Now()
	mk := func(src Source, id int64, rel, eng float64, promoted bool) scored {
		c := persona(src, id, 0)
		c.Engagement = eng
		c.ActivityAt = now
		c.Promoted = promoted
		return scored{Candidate: c, Relevance: rel, Sources: []Source{src}}
	}

	items := []scored{
		mk(SourceTrending, 1, 0.3, 0, true),
		mk(SourcePersonalized, 1, 0.6, 0, false),
		mk(SourceSocial, 2, 0.6, 5, false),
		mk(SourceSimilar, 3, 0.1, 0, false),
		mk(SourceTrending, 4, 0.6, 5, false),
	}
	out := merge(items, 10)

	if len(out) != 4 {
		t.Fatalf("merged %d items, want 4", len(out))
	}
	wantOrder := []int64{2, 4, 1, 3}
	for i, id := range wantOrder {
		if out[i].PersonaID != id {
			t.Errorf("position %d = persona %d, want %d", i, out[i].PersonaID, id)
		}
	}
	p1 := out[2]
	if p1.Source != SourcePersonalized || !p1.Promoted || len(p1.Sources) != 2 {
		t.Errorf("dedup winner = %+v, want personalized, promoted, two sources", p1)
	}

	if got := merge(items, 2); len(got) != 2 {
		t.Errorf("truncation: got %d, want 2", len(got))
	}
}

func TestMerge_Deterministic(t *testing.T) {
	t.Parallel()

	build := func() []scored {
		var s []scored
		for i := int64(1); i <= 20; i++ {
			c := persona(SourceTrending, i%7+1, 0)
			s = append(s, scored{Candidate: c, Relevance: float64(i%3) / 3, Sources: []Source{c.Source}})
		}
		return s
	}
	a, b := merge(build(), 50), merge(build(), 50)
	for i := range a {
		if a[i].Key() != b[i].Key() {
			t.Fatalf("non-deterministic order at %d: %s vs %s", i, a[i].Key(), b[i].Key())
		}
	}
}

func TestCursor_RoundTripAndErrors(t *testing.T) {
	t.Parallel()

	c := cursor{Version: 4, Offset: 20}
	got, err := decodeCursor(c.encode())
	if err != nil || got != c {
		t.Fatalf("decodeCursor() = %+v, %v", got, err)
	}

	for _, bad := range []string{"!!!", "cGYxOng6MQ", "eDoxOjE", "cGYxOjA6MQ"} {
		if _, err := decodeCursor(bad); err == nil {
			t.Errorf("decodeCursor(%q) accepted a bad cursor", bad)
		}
	}
}
