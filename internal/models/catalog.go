// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package models

import "time"

// Persona is a published persona in the catalog.
type Persona struct {
	ID          int64     `json:"id"`
	CreatorID   int64     `json:"creator_id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Verified    bool      `json:"is_verified"`
	Active      bool      `json:"is_active"`
	Rating      float64   `json:"rating"`
	RatingCount int       `json:"rating_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Creator publishes personas.
type Creator struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Verified  bool      `json:"is_verified"`
	Headline  string    `json:"headline"`
	CreatedAt time.Time `json:"created_at"`
}

// DiscoveryMetrics are the rolling engagement counters of a persona,
// maintained by the analytics aggregator. LastCalculatedAt is the time of the
// aggregator's last full pass; readers tolerate stale rows.
type DiscoveryMetrics struct {
	PersonaID int64 `json:"persona_id"`

	Views24h int64 `json:"views_24h"`
	Views7d  int64 `json:"views_7d"`
	Views30d int64 `json:"views_30d"`

	Likes24h int64 `json:"likes_24h"`
	Likes7d  int64 `json:"likes_7d"`
	Likes30d int64 `json:"likes_30d"`

	Subscriptions24h int64 `json:"subscriptions_24h"`
	Subscriptions7d  int64 `json:"subscriptions_7d"`
	Subscriptions30d int64 `json:"subscriptions_30d"`

	TrendingScore   float64 `json:"trending_score"`
	PopularityScore float64 `json:"popularity_score"`
	QualityScore    float64 `json:"quality_score"`
	EngagementScore float64 `json:"engagement_score"`

	DiscoveryRank int  `json:"discovery_rank"`
	CategoryRank  int  `json:"category_rank"`
	Promoted      bool `json:"is_promoted"`

	LastCalculatedAt time.Time `json:"last_calculated_at"`
}

// Review is a user review of a persona.
type Review struct {
	ID           int64     `json:"id"`
	PersonaID    int64     `json:"persona_id"`
	ReviewerName string    `json:"reviewer_name"`
	Rating       float64   `json:"rating"`
	Excerpt      string    `json:"excerpt"`
	HelpfulCount int       `json:"helpful_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// TrendingPersona joins a persona with its discovery metrics.
type TrendingPersona struct {
	Persona
	Metrics DiscoveryMetrics
}

// Recommendation is a persona scored for one user by the recommendation model.
type Recommendation struct {
	Persona
	Score  float64
	Reason string
	// Engagement is the persona's discovery engagement score. Every row type
	// carries it on that scale so tie-breaks compare across sources.
	Engagement float64
}

// FollowedPersona is a recent persona by a creator the user follows.
type FollowedPersona struct {
	Persona
	CreatorName string
	Engagement  float64
	FollowedAt  time.Time
}

// SimilarPersona is a persona related to one the user liked.
type SimilarPersona struct {
	Persona
	SimilarToID     int64
	SimilarToName   string
	SharedAttribute string
	Quality         float64
	Engagement      float64
}

// ReviewHighlight is a well-rated review together with its persona.
type ReviewHighlight struct {
	Persona
	Review     Review
	Engagement float64
}

// NewCreator is a recently joined creator with their catalog size.
type NewCreator struct {
	Creator
	PersonaCount int
	AvgRating    float64
	RatingCount  int
	// Engagement is the mean discovery engagement score of the personas.
	Engagement float64
}
