// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package feed

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Payload is the type-specific content of a feed item. Each ItemType has
// exactly one concrete payload type.
type Payload interface {
	ItemType() ItemType
}

// PersonaRecommendationPayload is produced by the personalized source.
type PersonaRecommendationPayload struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Reason   string  `json:"reason,omitempty"`
	Score    float64 `json:"model_score"`
}

// TrendingPersonaPayload is produced by the trending source.
type TrendingPersonaPayload struct {
	Name     string `json:"name"`
	Category string `json:"category"`

	TrendingScore   float64 `json:"trending_score"`
	PopularityScore float64 `json:"popularity_score"`
	QualityScore    float64 `json:"quality_score"`
	EngagementScore float64 `json:"engagement_score"`

	Views24h         int64 `json:"views_24h"`
	Views7d          int64 `json:"views_7d"`
	Views30d         int64 `json:"views_30d"`
	Likes24h         int64 `json:"likes_24h"`
	Likes7d          int64 `json:"likes_7d"`
	Likes30d         int64 `json:"likes_30d"`
	Subscriptions24h int64 `json:"subscriptions_24h"`
	Subscriptions7d  int64 `json:"subscriptions_7d"`
	Subscriptions30d int64 `json:"subscriptions_30d"`

	DiscoveryRank    int       `json:"discovery_rank,omitempty"`
	CategoryRank     int       `json:"category_rank,omitempty"`
	LastCalculatedAt time.Time `json:"last_calculated_at"`
}

// CreatorUpdatePayload announces activity by a followed or new creator.
type CreatorUpdatePayload struct {
	CreatorName  string    `json:"creator_name"`
	Headline     string    `json:"headline"`
	PersonaCount int       `json:"persona_count"`
	PublishedAt  time.Time `json:"published_at"`
}

// FollowedCreatorPersonaPayload is a persona published by a followed creator.
type FollowedCreatorPersonaPayload struct {
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	CreatorID   int64     `json:"creator_id"`
	CreatorName string    `json:"creator_name"`
	PublishedAt time.Time `json:"published_at"`
}

// SimilarPersonasPayload links a persona to one the user liked.
type SimilarPersonasPayload struct {
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	SimilarToID     int64   `json:"similar_to_id"`
	SimilarToName   string  `json:"similar_to_name"`
	QualityScore    float64 `json:"quality_score"`
	SharedAttribute string  `json:"shared_attribute"`
}

// ReviewHighlightPayload surfaces a well-rated review of a persona.
type ReviewHighlightPayload struct {
	Name         string  `json:"name"`
	ReviewID     int64   `json:"review_id"`
	ReviewerName string  `json:"reviewer_name"`
	Rating       float64 `json:"rating"`
	Excerpt      string  `json:"excerpt"`
	HelpfulCount int     `json:"helpful_count"`
}

func (PersonaRecommendationPayload) ItemType() ItemType  { return ItemPersonaRecommendation }
func (TrendingPersonaPayload) ItemType() ItemType        { return ItemTrendingPersona }
func (CreatorUpdatePayload) ItemType() ItemType          { return ItemCreatorUpdate }
func (FollowedCreatorPersonaPayload) ItemType() ItemType { return ItemFollowedCreatorPersona }
func (SimilarPersonasPayload) ItemType() ItemType        { return ItemSimilarPersonas }
func (ReviewHighlightPayload) ItemType() ItemType        { return ItemReviewHighlight }

// EncodePayload serializes p for storage. A nil payload encodes as "{}".
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.ItemType(), err)
	}
	return data, nil
}

// DecodePayload restores the concrete payload for t from data.
func DecodePayload(t ItemType, data []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch t {
	case ItemPersonaRecommendation:
		p, err = decodeInto[PersonaRecommendationPayload](data)
	case ItemTrendingPersona:
		p, err = decodeInto[TrendingPersonaPayload](data)
	case ItemCreatorUpdate:
		p, err = decodeInto[CreatorUpdatePayload](data)
	case ItemFollowedCreatorPersona:
		p, err = decodeInto[FollowedCreatorPersonaPayload](data)
	case ItemSimilarPersonas:
		p, err = decodeInto[SimilarPersonasPayload](data)
	case ItemReviewHighlight:
		p, err = decodeInto[ReviewHighlightPayload](data)
	default:
		return nil, fmt.Errorf("decode payload: unknown item type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return p, nil
}

func decodeInto[T Payload](data []byte) (Payload, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
