// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/personafeed/internal/models"
)

const personaColumns = `p.id, p.creator_id, p.name, p.category, p.is_verified, p.is_active,
	p.rating, p.rating_count, p.created_at, p.updated_at`

func personaDest(p *models.Persona) []any {
	return []any{&p.ID, &p.CreatorID, &p.Name, &p.Category, &p.Verified, &p.Active,
		&p.Rating, &p.RatingCount, &p.CreatedAt, &p.UpdatedAt}
}

const metricsColumns = `m.persona_id, m.views_24h, m.views_7d, m.views_30d,
	m.likes_24h, m.likes_7d, m.likes_30d,
	m.subscriptions_24h, m.subscriptions_7d, m.subscriptions_30d,
	m.trending_score, m.popularity_score, m.quality_score, m.engagement_score,
	m.discovery_rank, m.category_rank, m.is_promoted, m.last_calculated_at`

func metricsDest(m *models.DiscoveryMetrics) []any {
	return []any{&m.PersonaID, &m.Views24h, &m.Views7d, &m.Views30d,
		&m.Likes24h, &m.Likes7d, &m.Likes30d,
		&m.Subscriptions24h, &m.Subscriptions7d, &m.Subscriptions30d,
		&m.TrendingScore, &m.PopularityScore, &m.QualityScore, &m.EngagementScore,
		&m.DiscoveryRank, &m.CategoryRank, &m.Promoted, &m.LastCalculatedAt}
}

// categoryClause renders an optional "AND lower(p.category) IN (...)" filter.
func categoryClause(categories []string, args []any) (string, []any) {
	if len(categories) == 0 {
		return "", args
	}
	placeholders := make([]string, len(categories))
	for i, c := range categories {
		placeholders[i] = "?"
		args = append(args, strings.ToLower(c))
	}
	return " AND lower(p.category) IN (" + strings.Join(placeholders, ", ") + ")", args
}

// queryRows runs query and scans each row with scan.
func queryRows[T any](ctx context.Context, db *DB, what, query string, args []any, scan func(*sql.Rows) (T, error)) ([]T, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", what, err)
	}
	defer closeWithLog(rows, what+" rows")

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", what, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", what, err)
	}
	return out, nil
}

// TrendingPersonas returns active personas ordered by trending score.
func (db *DB) TrendingPersonas(ctx context.Context, limit int, categories []string) ([]models.TrendingPersona, error) {
	where, args := categoryClause(categories, nil)
	args = append(args, limit)
	q := `SELECT ` + personaColumns + `, ` + metricsColumns + `
		FROM personas p
		JOIN discovery_metrics m ON m.persona_id = p.id
		WHERE p.is_active AND m.trending_score > 0` + where + `
		ORDER BY m.trending_score DESC, p.id
		LIMIT ?`
	return queryRows(ctx, db, "trending personas", q, args, func(rows *sql.Rows) (models.TrendingPersona, error) {
		var t models.TrendingPersona
		err := rows.Scan(append(personaDest(&t.Persona), metricsDest(&t.Metrics)...)...)
		return t, err
	})
}

// Recommendations returns the model's picks for the user, best first.
func (db *DB) Recommendations(ctx context.Context, userID string, limit int) ([]models.Recommendation, error) {
	q := `SELECT ` + personaColumns + `, r.score, r.reason, COALESCE(m.engagement_score, 0)
		FROM recommendation_candidates r
		JOIN personas p ON p.id = r.persona_id
		LEFT JOIN discovery_metrics m ON m.persona_id = p.id
		WHERE r.user_id = ? AND p.is_active
		ORDER BY r.score DESC, p.id
		LIMIT ?`
	return queryRows(ctx, db, "recommendations", q, []any{userID, limit}, func(rows *sql.Rows) (models.Recommendation, error) {
		var r models.Recommendation
		err := rows.Scan(append(personaDest(&r.Persona), &r.Score, &r.Reason, &r.Engagement)...)
		return r, err
	})
}

// FollowedCreatorPersonas returns personas published since the cutoff by
// creators the user follows, newest first.
func (db *DB) FollowedCreatorPersonas(ctx context.Context, userID string, since time.Time, limit int) ([]models.FollowedPersona, error) {
	q := `SELECT ` + personaColumns + `, c.name, COALESCE(m.engagement_score, 0), f.followed_at
		FROM creator_follows f
		JOIN personas p ON p.creator_id = f.creator_id
		JOIN creators c ON c.id = f.creator_id
		LEFT JOIN discovery_metrics m ON m.persona_id = p.id
		WHERE f.user_id = ? AND p.is_active AND p.created_at >= ?
		ORDER BY p.created_at DESC, p.id
		LIMIT ?`
	return queryRows(ctx, db, "followed creator personas", q, []any{userID, since.UTC(), limit}, func(rows *sql.Rows) (models.FollowedPersona, error) {
		var f models.FollowedPersona
		err := rows.Scan(append(personaDest(&f.Persona), &f.CreatorName, &f.Engagement, &f.FollowedAt)...)
		return f, err
	})
}

// SimilarPersonas returns personas sharing a category with personas the user
// liked, excluding the liked ones, best quality score first.
func (db *DB) SimilarPersonas(ctx context.Context, userID string, limit int) ([]models.SimilarPersona, error) {
	q := `WITH liked AS (
			SELECT DISTINCT persona_id FROM feed_interactions
			WHERE user_id = ? AND interaction = 'liked' AND persona_id IS NOT NULL
		)
		SELECT ` + personaColumns + `, l.id, l.name, p.category,
			COALESCE(m.quality_score, 0) AS quality, COALESCE(m.engagement_score, 0)
		FROM liked lk
		JOIN personas l ON l.id = lk.persona_id
		JOIN personas p ON p.category = l.category AND p.id <> l.id
		LEFT JOIN discovery_metrics m ON m.persona_id = p.id
		WHERE p.is_active AND p.id NOT IN (SELECT persona_id FROM liked)
		ORDER BY quality DESC, p.id
		LIMIT ?`
	return queryRows(ctx, db, "similar personas", q, []any{userID, limit}, func(rows *sql.Rows) (models.SimilarPersona, error) {
		var s models.SimilarPersona
		err := rows.Scan(append(personaDest(&s.Persona), &s.SimilarToID, &s.SimilarToName, &s.SharedAttribute, &s.Quality, &s.Engagement)...)
		return s, err
	})
}

// ReviewHighlights returns the most helpful reviews rated at least minRating.
func (db *DB) ReviewHighlights(ctx context.Context, minRating float64, limit int, categories []string) ([]models.ReviewHighlight, error) {
	where, args := categoryClause(categories, []any{minRating})
	args = append(args, limit)
	q := `SELECT ` + personaColumns + `,
			r.id, r.persona_id, r.reviewer_name, r.rating, r.excerpt, r.helpful_count, r.created_at,
			COALESCE(m.engagement_score, 0)
		FROM persona_reviews r
		JOIN personas p ON p.id = r.persona_id
		LEFT JOIN discovery_metrics m ON m.persona_id = p.id
		WHERE r.rating >= ? AND p.is_active` + where + `
		ORDER BY r.helpful_count DESC, r.created_at DESC, r.id
		LIMIT ?`
	return queryRows(ctx, db, "review highlights", q, args, func(rows *sql.Rows) (models.ReviewHighlight, error) {
		var h models.ReviewHighlight
		err := rows.Scan(append(personaDest(&h.Persona),
			&h.Review.ID, &h.Review.PersonaID, &h.Review.ReviewerName, &h.Review.Rating,
			&h.Review.Excerpt, &h.Review.HelpfulCount, &h.Review.CreatedAt, &h.Engagement)...)
		return h, err
	})
}

// NewCreators returns creators that joined since the cutoff and have at
// least one active persona, newest first.
func (db *DB) NewCreators(ctx context.Context, since time.Time, limit int) ([]models.NewCreator, error) {
	q := `SELECT c.id, c.name, c.is_verified, c.headline, c.created_at,
			COUNT(p.id), COALESCE(AVG(p.rating), 0), COALESCE(SUM(p.rating_count), 0),
			COALESCE(AVG(m.engagement_score), 0)
		FROM creators c
		JOIN personas p ON p.creator_id = c.id AND p.is_active
		LEFT JOIN discovery_metrics m ON m.persona_id = p.id
		WHERE c.created_at >= ?
		GROUP BY c.id, c.name, c.is_verified, c.headline, c.created_at
		ORDER BY c.created_at DESC, c.id
		LIMIT ?`
	return queryRows(ctx, db, "new creators", q, []any{since.UTC(), limit}, func(rows *sql.Rows) (models.NewCreator, error) {
		var n models.NewCreator
		err := rows.Scan(&n.ID, &n.Name, &n.Verified, &n.Headline, &n.CreatedAt,
			&n.PersonaCount, &n.AvgRating, &n.RatingCount, &n.Engagement)
		return n, err
	})
}

// UpsertCreator inserts or replaces a creator.
func (db *DB) UpsertCreator(ctx context.Context, c *models.Creator) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO creators (id, name, is_verified, headline, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Verified, c.Headline, c.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert creator %d: %w", c.ID, err)
	}
	return nil
}

// UpsertPersona inserts or replaces a persona.
func (db *DB) UpsertPersona(ctx context.Context, p *models.Persona) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO personas
			(id, creator_id, name, category, is_verified, is_active, rating, rating_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CreatorID, p.Name, p.Category, p.Verified, p.Active, p.Rating, p.RatingCount,
		p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert persona %d: %w", p.ID, err)
	}
	return nil
}

// UpsertDiscoveryMetrics inserts or replaces a persona's metrics.
func (db *DB) UpsertDiscoveryMetrics(ctx context.Context, m *models.DiscoveryMetrics) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO discovery_metrics
			(persona_id, views_24h, views_7d, views_30d, likes_24h, likes_7d, likes_30d,
			subscriptions_24h, subscriptions_7d, subscriptions_30d,
			trending_score, popularity_score, quality_score, engagement_score,
			discovery_rank, category_rank, is_promoted, last_calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.PersonaID, m.Views24h, m.Views7d, m.Views30d, m.Likes24h, m.Likes7d, m.Likes30d,
		m.Subscriptions24h, m.Subscriptions7d, m.Subscriptions30d,
		m.TrendingScore, m.PopularityScore, m.QualityScore, m.EngagementScore,
		m.DiscoveryRank, m.CategoryRank, m.Promoted, m.LastCalculatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert metrics for persona %d: %w", m.PersonaID, err)
	}
	return nil
}

// DiscoveryMetricsFor returns the metrics row of a persona.
func (db *DB) DiscoveryMetricsFor(ctx context.Context, personaID int64) (*models.DiscoveryMetrics, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	var m models.DiscoveryMetrics
	err := db.conn.QueryRowContext(ctx,
		`SELECT `+metricsColumns+` FROM discovery_metrics m WHERE m.persona_id = ?`, personaID).
		Scan(metricsDest(&m)...)
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics for persona %d: %w", personaID, err)
	}
	return &m, nil
}

// AddRecommendation stores a model score for the user.
func (db *DB) AddRecommendation(ctx context.Context, userID string, personaID int64, score float64, reason string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO recommendation_candidates (user_id, persona_id, score, reason, created_at)
		VALUES (?, ?, ?, ?, ?)`, userID, personaID, score, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to add recommendation: %w", err)
	}
	return nil
}

// FollowCreator records that the user follows the creator.
func (db *DB) FollowCreator(ctx context.Context, userID string, creatorID int64, at time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO creator_follows (user_id, creator_id, followed_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id, creator_id) DO NOTHING`, userID, creatorID, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to follow creator: %w", err)
	}
	return nil
}

// AddReview inserts or replaces a review.
func (db *DB) AddReview(ctx context.Context, r *models.Review) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO persona_reviews (id, persona_id, reviewer_name, rating, excerpt, helpful_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.PersonaID, r.ReviewerName, r.Rating, r.Excerpt, r.HelpfulCount, r.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to add review %d: %w", r.ID, err)
	}
	return nil
}
