// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/personafeed/internal/feed"
)

const preferenceColumns = `user_id, preferred_categories, blocked_categories,
	show_trending, show_recommendations, show_followed_creators,
	show_similar_personas, show_review_highlights, show_new_creators,
	trending_weight, personalized_weight, social_weight, new_creator_weight,
	min_rating, hide_unrated, verified_only, max_items, refresh_interval_seconds,
	version, updated_at`

// GetPreferences returns feed.ErrPreferencesNotFound when the user has no row.
func (db *DB) GetPreferences(ctx context.Context, userID string) (*feed.Preferences, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+preferenceColumns+` FROM user_feed_preferences WHERE user_id = ?`, userID)
	p, err := scanPreferences(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, feed.ErrPreferencesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return p, nil
}

// EnsurePreferences inserts p at version 1 unless a row exists, then returns
// the stored row.
func (db *DB) EnsurePreferences(ctx context.Context, p *feed.Preferences) (*feed.Preferences, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	c := p.Clone()
	c.Version = 1
	c.UpdatedAt = time.Now().UTC()
	args, err := preferenceArgs(c)
	if err != nil {
		return nil, err
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO user_feed_preferences (`+preferenceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert default preferences: %w", err)
	}
	return db.GetPreferences(ctx, p.UserID)
}

// UpdatePreferences upserts p and bumps its version.
func (db *DB) UpdatePreferences(ctx context.Context, p *feed.Preferences) (*feed.Preferences, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var stored *feed.Preferences
	err := db.withTx(ctx, "update preferences", func(tx *sql.Tx) error {
		var current int64
		err := tx.QueryRowContext(ctx,
			`SELECT version FROM user_feed_preferences WHERE user_id = ?`, p.UserID).Scan(&current)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		c := p.Clone()
		c.Version = current + 1
		c.UpdatedAt = time.Now().UTC()
		args, err := preferenceArgs(c)
		if err != nil {
			return err
		}
		if current == 0 {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO user_feed_preferences (`+preferenceColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
		} else {
			// args[0] is user_id; move it to the WHERE clause.
			_, err = tx.ExecContext(ctx,
				`UPDATE user_feed_preferences SET
					preferred_categories = ?, blocked_categories = ?,
					show_trending = ?, show_recommendations = ?, show_followed_creators = ?,
					show_similar_personas = ?, show_review_highlights = ?, show_new_creators = ?,
					trending_weight = ?, personalized_weight = ?, social_weight = ?, new_creator_weight = ?,
					min_rating = ?, hide_unrated = ?, verified_only = ?, max_items = ?,
					refresh_interval_seconds = ?, version = ?, updated_at = ?
				WHERE user_id = ?`, append(args[1:], args[0])...)
		}
		if err != nil {
			return err
		}
		stored = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func preferenceArgs(p *feed.Preferences) ([]any, error) {
	preferred, err := json.Marshal(nonNil(p.PreferredCategories))
	if err != nil {
		return nil, fmt.Errorf("encode preferred categories: %w", err)
	}
	blocked, err := json.Marshal(nonNil(p.BlockedCategories))
	if err != nil {
		return nil, fmt.Errorf("encode blocked categories: %w", err)
	}
	return []any{
		p.UserID, string(preferred), string(blocked),
		p.ShowTrending, p.ShowRecommendations, p.ShowFollowedCreators,
		p.ShowSimilarPersonas, p.ShowReviewHighlights, p.ShowNewCreators,
		p.Weights.Trending, p.Weights.Personalized, p.Weights.Social, p.Weights.NewCreator,
		p.MinRating, p.HideUnrated, p.VerifiedOnly, p.MaxItems,
		int64(p.RefreshInterval / time.Second), p.Version, p.UpdatedAt,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPreferences(row rowScanner) (*feed.Preferences, error) {
	var (
		p                  feed.Preferences
		preferred, blocked string
		refreshSeconds     int64
	)
	err := row.Scan(
		&p.UserID, &preferred, &blocked,
		&p.ShowTrending, &p.ShowRecommendations, &p.ShowFollowedCreators,
		&p.ShowSimilarPersonas, &p.ShowReviewHighlights, &p.ShowNewCreators,
		&p.Weights.Trending, &p.Weights.Personalized, &p.Weights.Social, &p.Weights.NewCreator,
		&p.MinRating, &p.HideUnrated, &p.VerifiedOnly, &p.MaxItems, &refreshSeconds,
		&p.Version, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(preferred), &p.PreferredCategories); err != nil {
		return nil, fmt.Errorf("decode preferred categories: %w", err)
	}
	if err := json.Unmarshal([]byte(blocked), &p.BlockedCategories); err != nil {
		return nil, fmt.Errorf("decode blocked categories: %w", err)
	}
	p.RefreshInterval = time.Duration(refreshSeconds) * time.Second
	return &p, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
