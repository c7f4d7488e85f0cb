// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// memStore is an in-memory Store for engine tests.
type memStore struct {
	mu       sync.Mutex
	prefs    map[string]*Preferences
	versions map[string]int64                // active version per user
	items    map[string]map[int64][]FeedItem // user -> version -> items
	metas    map[string]*SnapshotMeta
	byID     map[string]*FeedItem
	reads    map[string]time.Time
	nextID   int

	swapErr   error
	swapCalls atomic.Int32
	// beforeSwap runs inside SwapSnapshot before anything changes.
	beforeSwap func()
}

func newMemStore() *memStore {
	return &memStore{
		prefs:    make(map[string]*Preferences),
		versions: make(map[string]int64),
		items:    make(map[string]map[int64][]FeedItem),
		metas:    make(map[string]*SnapshotMeta),
		byID:     make(map[string]*FeedItem),
		reads:    make(map[string]time.Time),
	}
}

func (m *memStore) GetPreferences(_ context.Context, userID string) (*Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[userID]
	if !ok {
		return nil, ErrPreferencesNotFound
	}
	return p.Clone(), nil
}

func (m *memStore) EnsurePreferences(_ context.Context, p *Preferences) (*Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.prefs[p.UserID]; ok {
		return cur.Clone(), nil
	}
	c := p.Clone()
	c.Version = 1
	m.prefs[p.UserID] = c
	return c.Clone(), nil
}

func (m *memStore) UpdatePreferences(_ context.Context, p *Preferences) (*Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := p.Clone()
	c.Version = 1
	if cur, ok := m.prefs[p.UserID]; ok {
		c.Version = cur.Version + 1
	}
	m.prefs[p.UserID] = c
	return c.Clone(), nil
}

func (m *memStore) ActiveSnapshot(_ context.Context, userID string) (*SnapshotMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.metas[userID]
	if !ok {
		return nil, nil
	}
	cp := *meta
	return &cp, nil
}

func (m *memStore) ListItems(_ context.Context, userID string, version int64, offset, limit int) ([]FeedItem, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.items[userID][version]
	total := len(all)
	if offset >= total {
		return []FeedItem{}, total, nil
	}
	end := min(offset+limit, total)
	out := make([]FeedItem, 0, end-offset)
	for _, it := range all[offset:end] {
		out = append(out, *m.byID[it.ID])
	}
	return out, total, nil
}

func (m *memStore) SwapSnapshot(_ context.Context, snap *Snapshot) (*SnapshotMeta, error) {
	m.swapCalls.Add(1)
	if m.beforeSwap != nil {
		m.beforeSwap()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.swapErr != nil {
		return nil, m.swapErr
	}
	version := m.versions[snap.UserID] + 1
	for i := range snap.Items {
		m.nextID++
		snap.Items[i].ID = fmt.Sprintf("item-%d", m.nextID)
		snap.Items[i].Version = version
		it := snap.Items[i]
		m.byID[it.ID] = &it
	}
	if m.items[snap.UserID] == nil {
		m.items[snap.UserID] = make(map[int64][]FeedItem)
	}
	m.items[snap.UserID][version] = append([]FeedItem(nil), snap.Items...)
	m.versions[snap.UserID] = version
	meta := &SnapshotMeta{UserID: snap.UserID, Version: version, GeneratedAt: snap.GeneratedAt, ItemCount: len(snap.Items)}
	m.metas[snap.UserID] = meta
	cp := *meta
	return &cp, nil
}

func (m *memStore) GetItem(_ context.Context, itemID string) (*FeedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.byID[itemID]
	if !ok {
		return nil, ErrFeedItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *memStore) SetInteraction(_ context.Context, itemID string, kind InteractionType, at time.Time) (*FeedItem, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.byID[itemID]
	if !ok {
		return nil, false, ErrFeedItemNotFound
	}
	var slot **time.Time
	switch kind {
	case InteractionViewed:
		slot = &it.ViewedAt
	case InteractionClicked:
		slot = &it.ClickedAt
	case InteractionLiked:
		slot = &it.LikedAt
	case InteractionShared:
		slot = &it.SharedAt
	case InteractionDismissed:
		slot = &it.DismissedAt
	default:
		return nil, false, errors.New("bad kind")
	}
	first := *slot == nil
	if first {
		t := at
		*slot = &t
	}
	cp := *it
	return &cp, first, nil
}

func (m *memStore) DismissedKeys(_ context.Context, userID string, since time.Time) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]struct{})
	for _, it := range m.byID {
		if it.UserID == userID && it.DismissedAt != nil && !it.DismissedAt.Before(since) {
			out[it.Key()] = struct{}{}
		}
	}
	return out, nil
}

func (m *memStore) TouchRead(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads[userID] = at
	return nil
}

func (m *memStore) UsersDueForRefresh(_ context.Context, activeSince, now time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for user, at := range m.reads {
		meta, ok := m.metas[user]
		p := m.prefs[user]
		if !ok || p == nil || at.Before(activeSince) {
			continue
		}
		if now.Sub(meta.GeneratedAt) >= p.RefreshInterval {
			out = append(out, user)
		}
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) PruneRetired(_ context.Context, _ time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for user, versions := range m.items {
		for v, items := range versions {
			if v != m.versions[user] {
				n += int64(len(items))
				delete(versions, v)
			}
		}
	}
	return n, nil
}

func (m *memStore) DeleteUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.prefs, userID)
	delete(m.metas, userID)
	delete(m.items, userID)
	delete(m.reads, userID)
	for id, it := range m.byID {
		if it.UserID == userID {
			delete(m.byID, id)
		}
	}
	return nil
}

// mockSource returns fixed candidates, optionally after a delay or with an error.
type mockSource struct {
	name  Source
	cands []Candidate
	err   error
	delay time.Duration
	// gate, when set, blocks Fetch until it is closed.
	gate  chan struct{}
	calls atomic.Int32
}

func (s *mockSource) Name() Source { return s.name }

func (s *mockSource) Fetch(ctx context.Context, req SourceRequest) ([]Candidate, error) {
	s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	out := s.cands
	if len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

// recordingSink counts emitted events.
type recordingSink struct {
	mu           sync.Mutex
	interactions []*InteractionEvent
	generated    []*GeneratedEvent
}

func (s *recordingSink) InteractionRecorded(_ context.Context, evt *InteractionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = append(s.interactions, evt)
	return nil
}

func (s *recordingSink) FeedGenerated(_ context.Context, evt *GeneratedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generated = append(s.generated, evt)
	return nil
}

func (s *recordingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.interactions), len(s.generated)
}

type countingNotifier struct {
	calls atomic.Int32
}

func (n *countingNotifier) FeedReady(string, int64, int) { n.calls.Add(1) }

func persona(src Source, id int64, raw float64) Candidate {
	t := ItemPersonaRecommendation
	switch src {
	case SourceTrending:
		t = ItemTrendingPersona
	case SourceSocial:
		t = ItemFollowedCreatorPersona
	case SourceSimilar:
		t = ItemSimilarPersonas
	case SourceReview:
		t = ItemReviewHighlight
	}
	return Candidate{PersonaID: id, Type: t, Source: src, RawScore: raw, Category: "general", Rating: 4.5, RatingCount: 10, Verified: true}
}

func creator(id int64, raw float64) Candidate {
	return Candidate{CreatorID: id, Type: ItemCreatorUpdate, Source: SourceNewCreator, RawScore: raw, Verified: true}
}
