// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

// Package sources adapts catalog queries into feed.Provider implementations.
//
// Each source maps its own signal onto RawScore: the trending score, the
// model score, recency, similarity quality or review strength. The engine
// normalizes per source, so the scales do not need to agree.
package sources

import (
	"context"
	"math"
	"time"

	"github.com/tomtom215/personafeed/internal/feed"
	"github.com/tomtom215/personafeed/internal/models"
)

// Catalog is the read side of the database the sources need.
type Catalog interface {
	TrendingPersonas(ctx context.Context, limit int, categories []string) ([]models.TrendingPersona, error)
	Recommendations(ctx context.Context, userID string, limit int) ([]models.Recommendation, error)
	FollowedCreatorPersonas(ctx context.Context, userID string, since time.Time, limit int) ([]models.FollowedPersona, error)
	SimilarPersonas(ctx context.Context, userID string, limit int) ([]models.SimilarPersona, error)
	ReviewHighlights(ctx context.Context, minRating float64, limit int, categories []string) ([]models.ReviewHighlight, error)
	NewCreators(ctx context.Context, since time.Time, limit int) ([]models.NewCreator, error)
}

// Config tunes the windows and floors of the built-in sources.
type Config struct {
	SocialWindow     time.Duration
	NewCreatorWindow time.Duration
	ReviewMinRating  float64
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		SocialWindow:     14 * 24 * time.Hour,
		NewCreatorWindow: 30 * 24 * time.Hour,
		ReviewMinRating:  4,
	}
}

// All returns every built-in source over catalog, in canonical order.
//
//nolint:gocritic // hugeParam: cfg passed by value for immutability
func All(catalog Catalog, cfg Config) []feed.Provider {
	return []feed.Provider{
		&Trending{catalog: catalog},
		&Personalized{catalog: catalog},
		&Social{catalog: catalog, window: cfg.SocialWindow, now: time.Now},
		&Similar{catalog: catalog},
		&Review{catalog: catalog, minRating: cfg.ReviewMinRating},
		&NewCreator{catalog: catalog, window: cfg.NewCreatorWindow, now: time.Now},
	}
}

// Trending surfaces the personas with the highest trending score.
type Trending struct {
	catalog Catalog
}

func (s *Trending) Name() feed.Source { return feed.SourceTrending }

func (s *Trending) Fetch(ctx context.Context, req feed.SourceRequest) ([]feed.Candidate, error) {
	rows, err := s.catalog.TrendingPersonas(ctx, req.Limit, req.Categories)
	if err != nil {
		return nil, err
	}
	out := make([]feed.Candidate, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		m := &r.Metrics
		c := personaCandidate(&r.Persona, feed.ItemTrendingPersona, m.TrendingScore)
		c.Engagement = m.EngagementScore
		c.ActivityAt = m.LastCalculatedAt
		c.Promoted = m.Promoted
		c.Trending = true
		c.Payload = feed.TrendingPersonaPayload{
			Name:             r.Name,
			Category:         r.Category,
			TrendingScore:    m.TrendingScore,
			PopularityScore:  m.PopularityScore,
			QualityScore:     m.QualityScore,
			EngagementScore:  m.EngagementScore,
			Views24h:         m.Views24h,
			Views7d:          m.Views7d,
			Views30d:         m.Views30d,
			Likes24h:         m.Likes24h,
			Likes7d:          m.Likes7d,
			Likes30d:         m.Likes30d,
			Subscriptions24h: m.Subscriptions24h,
			Subscriptions7d:  m.Subscriptions7d,
			Subscriptions30d: m.Subscriptions30d,
			DiscoveryRank:    m.DiscoveryRank,
			CategoryRank:     m.CategoryRank,
			LastCalculatedAt: m.LastCalculatedAt,
		}
		out = append(out, c)
	}
	return out, nil
}

// Personalized serves the recommendation model's per-user picks.
type Personalized struct {
	catalog Catalog
}

func (s *Personalized) Name() feed.Source { return feed.SourcePersonalized }

func (s *Personalized) Fetch(ctx context.Context, req feed.SourceRequest) ([]feed.Candidate, error) {
	rows, err := s.catalog.Recommendations(ctx, req.UserID, req.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]feed.Candidate, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		c := personaCandidate(&r.Persona, feed.ItemPersonaRecommendation, r.Score)
		c.Engagement = r.Engagement
		c.Payload = feed.PersonaRecommendationPayload{
			Name:     r.Name,
			Category: r.Category,
			Reason:   r.Reason,
			Score:    r.Score,
		}
		out = append(out, c)
	}
	return out, nil
}

// Social surfaces recent personas from creators the user follows. Newer
// personas score higher.
type Social struct {
	catalog Catalog
	window  time.Duration
	now     func() time.Time
}

func (s *Social) Name() feed.Source { return feed.SourceSocial }

func (s *Social) Fetch(ctx context.Context, req feed.SourceRequest) ([]feed.Candidate, error) {
	rows, err := s.catalog.FollowedCreatorPersonas(ctx, req.UserID, s.now().Add(-s.window), req.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]feed.Candidate, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		c := personaCandidate(&r.Persona, feed.ItemFollowedCreatorPersona, recency(r.CreatedAt))
		c.Engagement = r.Engagement
		c.ActivityAt = r.CreatedAt
		c.Payload = feed.FollowedCreatorPersonaPayload{
			Name:        r.Name,
			Category:    r.Category,
			CreatorID:   r.CreatorID,
			CreatorName: r.CreatorName,
			PublishedAt: r.CreatedAt,
		}
		out = append(out, c)
	}
	return out, nil
}

// Similar surfaces personas related to ones the user liked.
type Similar struct {
	catalog Catalog
}

func (s *Similar) Name() feed.Source { return feed.SourceSimilar }

func (s *Similar) Fetch(ctx context.Context, req feed.SourceRequest) ([]feed.Candidate, error) {
	rows, err := s.catalog.SimilarPersonas(ctx, req.UserID, req.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]feed.Candidate, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		c := personaCandidate(&r.Persona, feed.ItemSimilarPersonas, r.Quality)
		c.Engagement = r.Engagement
		c.Payload = feed.SimilarPersonasPayload{
			Name:            r.Name,
			Category:        r.Category,
			SimilarToID:     r.SimilarToID,
			SimilarToName:   r.SimilarToName,
			QualityScore:    r.Quality,
			SharedAttribute: r.SharedAttribute,
		}
		out = append(out, c)
	}
	return out, nil
}

// Review surfaces helpful, well-rated reviews. Strength is the rating
// weighted by log(1 + helpful votes).
type Review struct {
	catalog   Catalog
	minRating float64
}

func (s *Review) Name() feed.Source { return feed.SourceReview }

func (s *Review) Fetch(ctx context.Context, req feed.SourceRequest) ([]feed.Candidate, error) {
	floor := s.minRating
	if req.Preferences != nil {
		floor = math.Max(floor, req.Preferences.MinRating)
	}
	rows, err := s.catalog.ReviewHighlights(ctx, floor, req.Limit, req.Categories)
	if err != nil {
		return nil, err
	}
	out := make([]feed.Candidate, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		strength := r.Review.Rating * math.Log1p(float64(r.Review.HelpfulCount))
		c := personaCandidate(&r.Persona, feed.ItemReviewHighlight, strength)
		c.Engagement = r.Engagement
		c.ActivityAt = r.Review.CreatedAt
		c.Payload = feed.ReviewHighlightPayload{
			Name:         r.Name,
			ReviewID:     r.Review.ID,
			ReviewerName: r.Review.ReviewerName,
			Rating:       r.Review.Rating,
			Excerpt:      r.Review.Excerpt,
			HelpfulCount: r.Review.HelpfulCount,
		}
		out = append(out, c)
	}
	return out, nil
}

// NewCreator announces creators that joined recently.
type NewCreator struct {
	catalog Catalog
	window  time.Duration
	now     func() time.Time
}

func (s *NewCreator) Name() feed.Source { return feed.SourceNewCreator }

func (s *NewCreator) Fetch(ctx context.Context, req feed.SourceRequest) ([]feed.Candidate, error) {
	rows, err := s.catalog.NewCreators(ctx, s.now().Add(-s.window), req.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]feed.Candidate, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		out = append(out, feed.Candidate{
			CreatorID:   r.ID,
			Type:        feed.ItemCreatorUpdate,
			RawScore:    recency(r.CreatedAt),
			Engagement:  r.Engagement,
			ActivityAt:  r.CreatedAt,
			Rating:      r.AvgRating,
			RatingCount: r.RatingCount,
			Verified:    r.Verified,
			Payload: feed.CreatorUpdatePayload{
				CreatorName:  r.Name,
				Headline:     r.Headline,
				PersonaCount: r.PersonaCount,
				PublishedAt:  r.CreatedAt,
			},
		})
	}
	return out, nil
}

func personaCandidate(p *models.Persona, t feed.ItemType, raw float64) feed.Candidate {
	return feed.Candidate{
		PersonaID:   p.ID,
		Type:        t,
		RawScore:    raw,
		ActivityAt:  p.UpdatedAt,
		Category:    p.Category,
		Rating:      p.Rating,
		RatingCount: p.RatingCount,
		Verified:    p.Verified,
	}
}

// recency turns a timestamp into a score where newer is larger.
func recency(t time.Time) float64 {
	return float64(t.Unix())
}
