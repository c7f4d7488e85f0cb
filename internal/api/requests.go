// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package api

import (
	"time"

	"github.com/tomtom215/personafeed/internal/feed"
)

// FeedPageRequest holds the query parameters of GET .../feed.
type FeedPageRequest struct {
	UserID string `json:"user_id" validate:"required,userid"`
	Limit  int    `json:"limit" validate:"gte=0,lte=1000"`
	Cursor string `json:"cursor" validate:"max=256"`
}

// GenerateFeedRequest is the optional body of POST .../feed/generate.
type GenerateFeedRequest struct {
	RefreshExisting bool     `json:"refresh_existing"`
	Categories      []string `json:"categories" validate:"max=64,dive,category"`
}

// TrackInteractionRequest is the body of POST .../interactions.
type TrackInteractionRequest struct {
	Type string `json:"type" validate:"required,interaction"`
}

// WeightsRequest carries optional weight overrides.
type WeightsRequest struct {
	Trending     *float64 `json:"trending" validate:"omitempty,gte=0"`
	Personalized *float64 `json:"personalized" validate:"omitempty,gte=0"`
	Social       *float64 `json:"social" validate:"omitempty,gte=0"`
	NewCreator   *float64 `json:"new_creator" validate:"omitempty,gte=0"`
}

// UpdatePreferencesRequest is the body of PUT .../feed/preferences. Absent
// fields keep their current value.
type UpdatePreferencesRequest struct {
	PreferredCategories *[]string `json:"preferred_categories" validate:"omitempty,max=64,dive,category"`
	BlockedCategories   *[]string `json:"blocked_categories" validate:"omitempty,max=64,dive,category"`

	ShowTrending         *bool `json:"show_trending"`
	ShowRecommendations  *bool `json:"show_recommendations"`
	ShowFollowedCreators *bool `json:"show_followed_creators"`
	ShowSimilarPersonas  *bool `json:"show_similar_personas"`
	ShowReviewHighlights *bool `json:"show_review_highlights"`
	ShowNewCreators      *bool `json:"show_new_creators"`

	Weights *WeightsRequest `json:"weights"`

	MinRating    *float64 `json:"min_rating" validate:"omitempty,gte=0,lte=5"`
	HideUnrated  *bool    `json:"hide_unrated"`
	VerifiedOnly *bool    `json:"verified_only"`

	MaxItems               *int   `json:"max_items" validate:"omitempty,gte=1,lte=500"`
	RefreshIntervalSeconds *int64 `json:"refresh_interval_seconds" validate:"omitempty,gte=60"`
}

// apply overlays the set fields onto p.
func (req *UpdatePreferencesRequest) apply(p *feed.Preferences) {
	setIf(&p.PreferredCategories, req.PreferredCategories)
	setIf(&p.BlockedCategories, req.BlockedCategories)
	setIf(&p.ShowTrending, req.ShowTrending)
	setIf(&p.ShowRecommendations, req.ShowRecommendations)
	setIf(&p.ShowFollowedCreators, req.ShowFollowedCreators)
	setIf(&p.ShowSimilarPersonas, req.ShowSimilarPersonas)
	setIf(&p.ShowReviewHighlights, req.ShowReviewHighlights)
	setIf(&p.ShowNewCreators, req.ShowNewCreators)
	if w := req.Weights; w != nil {
		setIf(&p.Weights.Trending, w.Trending)
		setIf(&p.Weights.Personalized, w.Personalized)
		setIf(&p.Weights.Social, w.Social)
		setIf(&p.Weights.NewCreator, w.NewCreator)
	}
	setIf(&p.MinRating, req.MinRating)
	setIf(&p.HideUnrated, req.HideUnrated)
	setIf(&p.VerifiedOnly, req.VerifiedOnly)
	setIf(&p.MaxItems, req.MaxItems)
	if req.RefreshIntervalSeconds != nil {
		p.RefreshInterval = time.Duration(*req.RefreshIntervalSeconds) * time.Second
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// PreferencesResponse is the wire form of feed.Preferences.
type PreferencesResponse struct {
	UserID string `json:"user_id"`

	PreferredCategories []string `json:"preferred_categories"`
	BlockedCategories   []string `json:"blocked_categories"`

	ShowTrending         bool `json:"show_trending"`
	ShowRecommendations  bool `json:"show_recommendations"`
	ShowFollowedCreators bool `json:"show_followed_creators"`
	ShowSimilarPersonas  bool `json:"show_similar_personas"`
	ShowReviewHighlights bool `json:"show_review_highlights"`
	ShowNewCreators      bool `json:"show_new_creators"`

	Weights feed.Weights `json:"weights"`

	MinRating    float64 `json:"min_rating"`
	HideUnrated  bool    `json:"hide_unrated"`
	VerifiedOnly bool    `json:"verified_only"`

	MaxItems               int   `json:"max_items"`
	RefreshIntervalSeconds int64 `json:"refresh_interval_seconds"`

	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newPreferencesResponse(p *feed.Preferences) *PreferencesResponse {
	return &PreferencesResponse{
		UserID:                 p.UserID,
		PreferredCategories:    nonNil(p.PreferredCategories),
		BlockedCategories:      nonNil(p.BlockedCategories),
		ShowTrending:           p.ShowTrending,
		ShowRecommendations:    p.ShowRecommendations,
		ShowFollowedCreators:   p.ShowFollowedCreators,
		ShowSimilarPersonas:    p.ShowSimilarPersonas,
		ShowReviewHighlights:   p.ShowReviewHighlights,
		ShowNewCreators:        p.ShowNewCreators,
		Weights:                p.Weights,
		MinRating:              p.MinRating,
		HideUnrated:            p.HideUnrated,
		VerifiedOnly:           p.VerifiedOnly,
		MaxItems:               p.MaxItems,
		RefreshIntervalSeconds: int64(p.RefreshInterval / time.Second),
		Version:                p.Version,
		UpdatedAt:              p.UpdatedAt,
	}
}

// StatusResponse is the wire form of feed.Status.
type StatusResponse struct {
	UserID                 string     `json:"user_id"`
	State                  string     `json:"state"`
	Version                int64      `json:"version"`
	GeneratedAt            *time.Time `json:"generated_at,omitempty"`
	ItemCount              int        `json:"item_count"`
	RefreshIntervalSeconds int64      `json:"refresh_interval_seconds"`
	InFlight               bool       `json:"in_flight"`
}

func newStatusResponse(st *feed.Status) *StatusResponse {
	return &StatusResponse{
		UserID:                 st.UserID,
		State:                  st.State.String(),
		Version:                st.Version,
		GeneratedAt:            st.GeneratedAt,
		ItemCount:              st.ItemCount,
		RefreshIntervalSeconds: int64(st.RefreshInterval / time.Second),
		InFlight:               st.InFlight,
	}
}

// InteractionResponse reports the outcome of a tracked interaction.
type InteractionResponse struct {
	ItemID      string `json:"item_id"`
	Interaction string `json:"interaction"`

	// Recorded is false when the flag was already set; the first write wins.
	Recorded bool           `json:"recorded"`
	Item     *feed.FeedItem `json:"item"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
