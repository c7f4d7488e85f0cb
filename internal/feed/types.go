// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package feed

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ItemType is the kind of a feed item. It selects the concrete Payload type.
type ItemType string

const (
	ItemPersonaRecommendation  ItemType = "persona_recommendation"
	ItemTrendingPersona        ItemType = "trending_persona"
	ItemCreatorUpdate          ItemType = "creator_update"
	ItemFollowedCreatorPersona ItemType = "followed_creator_persona"
	ItemSimilarPersonas        ItemType = "similar_personas"
	ItemReviewHighlight        ItemType = "review_highlight"
)

// Valid reports whether t is one of the known item types.
func (t ItemType) Valid() bool {
	switch t {
	case ItemPersonaRecommendation, ItemTrendingPersona, ItemCreatorUpdate,
		ItemFollowedCreatorPersona, ItemSimilarPersonas, ItemReviewHighlight:
		return true
	}
	return false
}

// Source identifies the candidate provider that surfaced an item.
type Source string

const (
	SourceTrending     Source = "trending"
	SourcePersonalized Source = "personalized"
	SourceSocial       Source = "social"
	SourceSimilar      Source = "similar"
	SourceReview       Source = "review"
	SourceNewCreator   Source = "new_creator"
)

// AllSources lists sources in their canonical order.
var AllSources = []Source{
	SourceTrending, SourcePersonalized, SourceSocial,
	SourceSimilar, SourceReview, SourceNewCreator,
}

// InteractionType is a user action recorded against a feed item.
type InteractionType int

const (
	InteractionViewed InteractionType = iota
	InteractionClicked
	InteractionLiked
	InteractionShared
	InteractionDismissed
)

// String returns the wire name of the interaction.
func (t InteractionType) String() string {
	switch t {
	case InteractionViewed:
		return "viewed"
	case InteractionClicked:
		return "clicked"
	case InteractionLiked:
		return "liked"
	case InteractionShared:
		return "shared"
	case InteractionDismissed:
		return "dismissed"
	default:
		return "unknown"
	}
}

// ParseInteractionType maps a wire name to an InteractionType.
func ParseInteractionType(s string) (InteractionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "viewed", "view":
		return InteractionViewed, nil
	case "clicked", "click":
		return InteractionClicked, nil
	case "liked", "like":
		return InteractionLiked, nil
	case "shared", "share":
		return InteractionShared, nil
	case "dismissed", "dismiss":
		return InteractionDismissed, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownInteraction, s)
}

// State is the generation state of a user's feed.
type State int

const (
	StateNotRequested State = iota
	StateGenerating
	StateReady
	StateStale
)

// String returns the lowercase state name used in API responses.
func (s State) String() string {
	switch s {
	case StateNotRequested:
		return "not_requested"
	case StateGenerating:
		return "generating"
	case StateReady:
		return "ready"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// MarshalText lets State appear as a string in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Interactions holds the first-set timestamp of each interaction flag.
// A nil pointer means the flag is unset.
type Interactions struct {
	ViewedAt    *time.Time `json:"viewed_at,omitempty"`
	ClickedAt   *time.Time `json:"clicked_at,omitempty"`
	LikedAt     *time.Time `json:"liked_at,omitempty"`
	SharedAt    *time.Time `json:"shared_at,omitempty"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty"`
}

// At returns the timestamp for t, or nil when unset.
func (in *Interactions) At(t InteractionType) *time.Time {
	switch t {
	case InteractionViewed:
		return in.ViewedAt
	case InteractionClicked:
		return in.ClickedAt
	case InteractionLiked:
		return in.LikedAt
	case InteractionShared:
		return in.SharedAt
	case InteractionDismissed:
		return in.DismissedAt
	}
	return nil
}

// FeedItem is one positioned entry of a persisted feed snapshot.
type FeedItem struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Version     int64      `json:"version"`
	Type        ItemType   `json:"item_type"`
	PersonaID   int64      `json:"persona_id,omitempty"`
	CreatorID   int64      `json:"creator_id,omitempty"`
	Source      Source     `json:"source"`
	Sources     []Source   `json:"sources"`
	Relevance   float64    `json:"relevance_score"`
	Position    int        `json:"position"`
	Promoted    bool       `json:"is_promoted"`
	Trending    bool       `json:"is_trending"`
	Payload     Payload    `json:"payload"`
	GeneratedAt time.Time  `json:"generated_at"`
	RetiredAt   *time.Time `json:"retired_at,omitempty"`
	Interactions
}

// Key is the dedup key of the item: persona:<id>, or creator:<id> when the
// item references no persona.
func (f *FeedItem) Key() string {
	return dedupKey(f.PersonaID, f.CreatorID)
}

// Candidate is an item proposed by one source before scoring.
type Candidate struct {
	PersonaID   int64
	CreatorID   int64
	Type        ItemType
	Source      Source
	RawScore    float64
	Engagement  float64   // discovery engagement score; tie-breaker, higher wins
	ActivityAt  time.Time // tie-breaker: more recent wins
	Category    string
	Rating      float64
	RatingCount int
	Verified    bool
	Promoted    bool
	Trending    bool
	Payload     Payload
}

// Key returns the dedup key shared with FeedItem.Key.
func (c *Candidate) Key() string {
	return dedupKey(c.PersonaID, c.CreatorID)
}

// hasValidRefs enforces the reference rules per item type: creator updates
// reference only a creator, review highlights reference a persona and may
// carry the reviewed creator, every other type references only a persona.
func (c *Candidate) hasValidRefs() bool {
	switch c.Type {
	case ItemCreatorUpdate:
		return c.CreatorID > 0 && c.PersonaID == 0
	case ItemReviewHighlight:
		return c.PersonaID > 0
	case ItemPersonaRecommendation, ItemTrendingPersona,
		ItemFollowedCreatorPersona, ItemSimilarPersonas:
		return c.PersonaID > 0 && c.CreatorID == 0
	}
	return false
}

func dedupKey(personaID, creatorID int64) string {
	if personaID > 0 {
		return "persona:" + strconv.FormatInt(personaID, 10)
	}
	return "creator:" + strconv.FormatInt(creatorID, 10)
}

// SnapshotMeta describes the active snapshot of one user.
type SnapshotMeta struct {
	UserID      string
	Version     int64
	GeneratedAt time.Time
	ItemCount   int
}

// Snapshot is a complete generated feed ready to be swapped in.
type Snapshot struct {
	UserID      string
	GeneratedAt time.Time
	Items       []FeedItem
}

// Page is one page of a feed read.
type Page struct {
	UserID      string     `json:"user_id"`
	State       State      `json:"state"`
	Version     int64      `json:"version"`
	GeneratedAt *time.Time `json:"generated_at,omitempty"`
	Items       []FeedItem `json:"items"`
	NextCursor  string     `json:"next_cursor,omitempty"`
	Total       int        `json:"total"`

	// Refreshing is true while a newer snapshot is being generated.
	Refreshing bool `json:"refreshing"`
}

// GenerateOptions tunes one GenerateFeed call.
type GenerateOptions struct {
	// RefreshExisting forces a run even when the current snapshot is fresh.
	RefreshExisting bool

	// Categories narrows candidates for this run only. Preferences are untouched.
	Categories []string
}

// GenerateResult is what GenerateFeed returns.
type GenerateResult struct {
	UserID      string     `json:"user_id"`
	State       State      `json:"state"`
	Version     int64      `json:"version"`
	GeneratedAt time.Time  `json:"generated_at"`
	Items       []FeedItem `json:"items"`

	// Reused is true when a fresh existing snapshot was returned without a run.
	Reused bool `json:"reused"`

	// Joined is true when the caller waited on a run started by someone else.
	Joined bool `json:"joined"`

	// SourceStats reports per-source candidate counts for the run.
	SourceStats map[Source]int `json:"source_stats,omitempty"`
}

// Status summarizes the feed state of one user.
type Status struct {
	UserID          string        `json:"user_id"`
	State           State         `json:"state"`
	Version         int64         `json:"version"`
	GeneratedAt     *time.Time    `json:"generated_at,omitempty"`
	ItemCount       int           `json:"item_count"`
	RefreshInterval time.Duration `json:"refresh_interval_ns"`
	InFlight        bool          `json:"in_flight"`
}
