// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package feed

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

const (
	// MaxItemsLimit caps Preferences.MaxItems.
	MaxItemsLimit = 500

	// MinRefreshInterval is the shortest refresh interval a user may pick.
	MinRefreshInterval = time.Minute

	// MaxRating is the top of the rating scale.
	MaxRating = 5.0

	maxCategories  = 64
	maxCategoryLen = 64
)

// Weights are relative per-source multipliers. They do not need to sum to 1
// and are never normalized.
type Weights struct {
	Trending     float64 `json:"trending"`
	Personalized float64 `json:"personalized"`
	Social       float64 `json:"social"`
	NewCreator   float64 `json:"new_creator"`
}

// For returns the weight that applies to candidates from s. Similar-persona
// candidates use the personalized weight and review highlights use the social
// weight.
//
//nolint:gocritic // value receiver keeps Weights immutable
func (w Weights) For(s Source) float64 {
	switch s {
	case SourceTrending:
		return w.Trending
	case SourcePersonalized, SourceSimilar:
		return w.Personalized
	case SourceSocial, SourceReview:
		return w.Social
	case SourceNewCreator:
		return w.NewCreator
	}
	return 0
}

// DefaultWeights returns the weights new users start with.
func DefaultWeights() Weights {
	return Weights{Trending: 0.3, Personalized: 0.4, Social: 0.2, NewCreator: 0.1}
}

// Preferences are the per-user knobs that shape generation.
type Preferences struct {
	UserID string `json:"user_id"`

	PreferredCategories []string `json:"preferred_categories"`
	BlockedCategories   []string `json:"blocked_categories"`

	ShowTrending         bool `json:"show_trending"`
	ShowRecommendations  bool `json:"show_recommendations"`
	ShowFollowedCreators bool `json:"show_followed_creators"`
	ShowSimilarPersonas  bool `json:"show_similar_personas"`
	ShowReviewHighlights bool `json:"show_review_highlights"`
	ShowNewCreators      bool `json:"show_new_creators"`

	Weights Weights `json:"weights"`

	MinRating    float64 `json:"min_rating"`
	HideUnrated  bool    `json:"hide_unrated"`
	VerifiedOnly bool    `json:"verified_only"`

	MaxItems        int           `json:"max_items"`
	RefreshInterval time.Duration `json:"refresh_interval"`

	// Version increases on every successful update.
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultPreferences returns the preferences created on a user's first request.
func DefaultPreferences(userID string, cfg *Config) *Preferences {
	return &Preferences{
		UserID:               userID,
		PreferredCategories:  []string{},
		BlockedCategories:    []string{},
		ShowTrending:         true,
		ShowRecommendations:  true,
		ShowFollowedCreators: true,
		ShowSimilarPersonas:  true,
		ShowReviewHighlights: true,
		ShowNewCreators:      true,
		Weights:              DefaultWeights(),
		MaxItems:             cfg.DefaultMaxItems,
		RefreshInterval:      cfg.DefaultRefreshInterval,
	}
}

// Validate rejects preferences that must never reach scoring. All errors
// wrap ErrInvalidPreferences.
func (p *Preferences) Validate() error {
	if err := p.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPreferences, err)
	}
	return nil
}

func (p *Preferences) validate() error {
	if err := ValidateUserID(p.UserID); err != nil {
		return err
	}
	weights := map[string]float64{
		"trending":     p.Weights.Trending,
		"personalized": p.Weights.Personalized,
		"social":       p.Weights.Social,
		"new_creator":  p.Weights.NewCreator,
	}
	for _, name := range []string{"trending", "personalized", "social", "new_creator"} {
		w := weights[name]
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%s weight must be finite", name)
		}
		if w < 0 {
			return fmt.Errorf("%s weight must be non-negative, got %f", name, w)
		}
	}
	if math.IsNaN(p.MinRating) || p.MinRating < 0 || p.MinRating > MaxRating {
		return fmt.Errorf("min rating must be in [0,%.0f], got %f", MaxRating, p.MinRating)
	}
	if p.MaxItems < 1 || p.MaxItems > MaxItemsLimit {
		return fmt.Errorf("max items must be in [1,%d], got %d", MaxItemsLimit, p.MaxItems)
	}
	if p.RefreshInterval < MinRefreshInterval {
		return fmt.Errorf("refresh interval must be at least %v, got %v", MinRefreshInterval, p.RefreshInterval)
	}
	if err := validateCategories("preferred", p.PreferredCategories); err != nil {
		return err
	}
	if err := validateCategories("blocked", p.BlockedCategories); err != nil {
		return err
	}
	for _, c := range p.PreferredCategories {
		if containsFold(p.BlockedCategories, c) {
			return fmt.Errorf("category %q is both preferred and blocked", c)
		}
	}
	return nil
}

func validateCategories(kind string, cats []string) error {
	if len(cats) > maxCategories {
		return fmt.Errorf("too many %s categories: %d (max %d)", kind, len(cats), maxCategories)
	}
	for _, c := range cats {
		if strings.TrimSpace(c) == "" || len(c) > maxCategoryLen {
			return fmt.Errorf("%s category %q is empty or longer than %d", kind, c, maxCategoryLen)
		}
	}
	return nil
}

// ValidateUserID checks the opaque user identifier handed over by the
// authentication layer.
func ValidateUserID(id string) error {
	if id == "" || len(id) > 128 || strings.ContainsAny(id, " \t\r\n/") {
		return fmt.Errorf("%w: %q", ErrInvalidUserID, id)
	}
	return nil
}

// EnabledSources returns the sources switched on by the toggles, in canonical
// order. When every toggle is off and fallback is true, trending alone is
// returned so the user still gets a well-defined feed.
func (p *Preferences) EnabledSources(fallback bool) []Source {
	var out []Source
	if p.ShowTrending {
		out = append(out, SourceTrending)
	}
	if p.ShowRecommendations {
		out = append(out, SourcePersonalized)
	}
	if p.ShowFollowedCreators {
		out = append(out, SourceSocial)
	}
	if p.ShowSimilarPersonas {
		out = append(out, SourceSimilar)
	}
	if p.ShowReviewHighlights {
		out = append(out, SourceReview)
	}
	if p.ShowNewCreators {
		out = append(out, SourceNewCreator)
	}
	if len(out) == 0 && fallback {
		out = append(out, SourceTrending)
	}
	return out
}

// TrendingFallbackActive reports whether every toggle is off.
func (p *Preferences) TrendingFallbackActive() bool {
	return !p.ShowTrending && !p.ShowRecommendations && !p.ShowFollowedCreators &&
		!p.ShowSimilarPersonas && !p.ShowReviewHighlights && !p.ShowNewCreators
}

// Clone returns a deep copy.
func (p *Preferences) Clone() *Preferences {
	c := *p
	c.PreferredCategories = slices.Clone(p.PreferredCategories)
	c.BlockedCategories = slices.Clone(p.BlockedCategories)
	return &c
}

// Normalize trims and lowercases categories and removes duplicates so that
// stored preferences compare cleanly.
func (p *Preferences) Normalize() {
	p.PreferredCategories = normalizeCategories(p.PreferredCategories)
	p.BlockedCategories = normalizeCategories(p.BlockedCategories)
}

func normalizeCategories(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
