// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

/*
database_schema.go - Database Schema Management

Catalog tables (written by upstream collaborators, read by candidate sources):
  - personas, creators: the published catalog
  - discovery_metrics: rolling engagement counters per persona
  - recommendation_candidates: per-user model output
  - creator_follows: the social graph
  - persona_reviews: ratings and review text

Feed tables (owned by this service):
  - user_feed_preferences: one row per user, versioned
  - user_feed_state: active snapshot version and last read time per user
  - feed_items: every snapshot row; retired rows keep serving old cursors
    until pruned
  - feed_interactions: append-only interaction log
  - feed_version_counters: highest snapshot version issued per user; kept
    across user deletion so versions stay monotonic

Payloads and category lists are stored as JSON text so the schema does not
depend on the json extension being loadable.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates every table if missing.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS creators (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			is_verified BOOLEAN NOT NULL DEFAULT false,
			headline TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS personas (
			id BIGINT PRIMARY KEY,
			creator_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			is_verified BOOLEAN NOT NULL DEFAULT false,
			is_active BOOLEAN NOT NULL DEFAULT true,
			rating DOUBLE NOT NULL DEFAULT 0,
			rating_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS discovery_metrics (
			persona_id BIGINT PRIMARY KEY,
			views_24h BIGINT NOT NULL DEFAULT 0,
			views_7d BIGINT NOT NULL DEFAULT 0,
			views_30d BIGINT NOT NULL DEFAULT 0,
			likes_24h BIGINT NOT NULL DEFAULT 0,
			likes_7d BIGINT NOT NULL DEFAULT 0,
			likes_30d BIGINT NOT NULL DEFAULT 0,
			subscriptions_24h BIGINT NOT NULL DEFAULT 0,
			subscriptions_7d BIGINT NOT NULL DEFAULT 0,
			subscriptions_30d BIGINT NOT NULL DEFAULT 0,
			trending_score DOUBLE NOT NULL DEFAULT 0,
			popularity_score DOUBLE NOT NULL DEFAULT 0,
			quality_score DOUBLE NOT NULL DEFAULT 0,
			engagement_score DOUBLE NOT NULL DEFAULT 0,
			discovery_rank INTEGER NOT NULL DEFAULT 0,
			category_rank INTEGER NOT NULL DEFAULT 0,
			is_promoted BOOLEAN NOT NULL DEFAULT false,
			last_calculated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recommendation_candidates (
			user_id TEXT NOT NULL,
			persona_id BIGINT NOT NULL,
			score DOUBLE NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, persona_id)
		)`,
		`CREATE TABLE IF NOT EXISTS creator_follows (
			user_id TEXT NOT NULL,
			creator_id BIGINT NOT NULL,
			followed_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, creator_id)
		)`,
		`CREATE TABLE IF NOT EXISTS persona_reviews (
			id BIGINT PRIMARY KEY,
			persona_id BIGINT NOT NULL,
			reviewer_name TEXT NOT NULL,
			rating DOUBLE NOT NULL,
			excerpt TEXT NOT NULL DEFAULT '',
			helpful_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_feed_preferences (
			user_id TEXT PRIMARY KEY,
			preferred_categories TEXT NOT NULL DEFAULT '[]',
			blocked_categories TEXT NOT NULL DEFAULT '[]',
			show_trending BOOLEAN NOT NULL,
			show_recommendations BOOLEAN NOT NULL,
			show_followed_creators BOOLEAN NOT NULL,
			show_similar_personas BOOLEAN NOT NULL,
			show_review_highlights BOOLEAN NOT NULL,
			show_new_creators BOOLEAN NOT NULL,
			trending_weight DOUBLE NOT NULL,
			personalized_weight DOUBLE NOT NULL,
			social_weight DOUBLE NOT NULL,
			new_creator_weight DOUBLE NOT NULL,
			min_rating DOUBLE NOT NULL DEFAULT 0,
			hide_unrated BOOLEAN NOT NULL DEFAULT false,
			verified_only BOOLEAN NOT NULL DEFAULT false,
			max_items INTEGER NOT NULL,
			refresh_interval_seconds BIGINT NOT NULL,
			version BIGINT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_feed_state (
			user_id TEXT PRIMARY KEY,
			active_version BIGINT NOT NULL DEFAULT 0,
			generated_at TIMESTAMP,
			item_count INTEGER NOT NULL DEFAULT 0,
			last_read_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS feed_items (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			version BIGINT NOT NULL,
			item_type TEXT NOT NULL,
			persona_id BIGINT,
			creator_id BIGINT,
			source TEXT NOT NULL,
			sources TEXT NOT NULL,
			relevance_score DOUBLE NOT NULL,
			position INTEGER NOT NULL,
			is_promoted BOOLEAN NOT NULL DEFAULT false,
			is_trending BOOLEAN NOT NULL DEFAULT false,
			payload TEXT NOT NULL DEFAULT '{}',
			generated_at TIMESTAMP NOT NULL,
			retired_at TIMESTAMP,
			viewed_at TIMESTAMP,
			clicked_at TIMESTAMP,
			liked_at TIMESTAMP,
			shared_at TIMESTAMP,
			dismissed_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS feed_version_counters (
			user_id TEXT PRIMARY KEY,
			last_version BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS feed_interactions (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			persona_id BIGINT,
			creator_id BIGINT,
			interaction TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL
		)`,
	}
}

// createIndexes creates the indexes used by the hot read paths.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_feed_items_user_version ON feed_items(user_id, version)`,
		`CREATE INDEX IF NOT EXISTS idx_feed_interactions_user ON feed_interactions(user_id, interaction)`,
		`CREATE INDEX IF NOT EXISTS idx_personas_creator ON personas(creator_id)`,
		`CREATE INDEX IF NOT EXISTS idx_personas_category ON personas(category)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_persona ON persona_reviews(persona_id)`,
	}
	for _, q := range indexes {
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", q, err)
		}
	}
	return nil
}
