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

	"github.com/google/uuid"

	"github.com/tomtom215/personafeed/internal/feed"
)

// interactionColumns maps each interaction to its flag column on feed_items.
var interactionColumns = map[feed.InteractionType]string{
	feed.InteractionViewed:    "viewed_at",
	feed.InteractionClicked:   "clicked_at",
	feed.InteractionLiked:     "liked_at",
	feed.InteractionShared:    "shared_at",
	feed.InteractionDismissed: "dismissed_at",
}

// SetInteraction sets the flag for kind if unset and appends the interaction
// to the log. A repeated interaction keeps the original timestamp and adds no
// log row, so dismiss cooldowns run from the first dismissal.
func (db *DB) SetInteraction(ctx context.Context, itemID string, kind feed.InteractionType, at time.Time) (*feed.FeedItem, bool, error) {
	column, ok := interactionColumns[kind]
	if !ok {
		return nil, false, fmt.Errorf("%w: %d", feed.ErrUnknownInteraction, kind)
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		item  *feed.FeedItem
		first bool
	)
	err := db.withTx(ctx, "set interaction", func(tx *sql.Tx) error {
		// column comes from interactionColumns
		res, err := tx.ExecContext(ctx,
			`UPDATE feed_items SET `+column+` = ? WHERE id = ? AND `+column+` IS NULL`,
			at.UTC(), itemID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}

		it, err := scanItem(tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM feed_items WHERE id = ?`, itemID))
		if errors.Is(err, sql.ErrNoRows) {
			return feed.ErrFeedItemNotFound
		}
		if err != nil {
			return err
		}

		item, first = it, n > 0
		if !first {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO feed_interactions (id, item_id, user_id, persona_id, creator_id, interaction, occurred_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), it.ID, it.UserID, nullID(it.PersonaID), nullID(it.CreatorID),
			kind.String(), at.UTC()); err != nil {
			return fmt.Errorf("append interaction: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, feed.ErrFeedItemNotFound) {
			return nil, false, feed.ErrFeedItemNotFound
		}
		return nil, false, err
	}
	return item, first, nil
}

// DismissedKeys reads the interaction log rather than feed_items so that
// dismissals survive pruning of the snapshot they were made on.
func (db *DB) DismissedKeys(ctx context.Context, userID string, since time.Time) (map[string]struct{}, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT persona_id, creator_id FROM feed_interactions
		WHERE user_id = ? AND interaction = ? AND occurred_at >= ?`,
		userID, feed.InteractionDismissed.String(), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query dismissed items: %w", err)
	}
	defer closeWithLog(rows, "dismissed rows")

	out := make(map[string]struct{})
	for rows.Next() {
		var personaID, creatorID sql.NullInt64
		if err := rows.Scan(&personaID, &creatorID); err != nil {
			return nil, fmt.Errorf("failed to scan dismissed item: %w", err)
		}
		it := feed.FeedItem{PersonaID: personaID.Int64, CreatorID: creatorID.Int64}
		out[it.Key()] = struct{}{}
	}
	return out, rows.Err()
}

// RecordEngagement folds an interaction into the persona's discovery
// metrics. It is fed by the interaction event consumer.
func (db *DB) RecordEngagement(ctx context.Context, personaID int64, kind string) error {
	if personaID <= 0 {
		return nil
	}
	var views, likes int64
	var engagement float64
	switch kind {
	case "viewed":
		views, engagement = 1, 0.1
	case "clicked":
		engagement = 0.5
	case "liked":
		likes, engagement = 1, 1
	case "shared":
		engagement = 2
	case "dismissed":
		engagement = -0.5
	default:
		return nil
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	// last_calculated_at belongs to the aggregator's full pass; increments
	// leave it alone so staleness stays visible.
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO discovery_metrics
			(persona_id, views_24h, views_7d, views_30d, likes_24h, likes_7d, likes_30d,
			engagement_score, last_calculated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, GREATEST(?, 0), ?)
		ON CONFLICT (persona_id) DO UPDATE SET
			views_24h = discovery_metrics.views_24h + excluded.views_24h,
			views_7d = discovery_metrics.views_7d + excluded.views_7d,
			views_30d = discovery_metrics.views_30d + excluded.views_30d,
			likes_24h = discovery_metrics.likes_24h + excluded.likes_24h,
			likes_7d = discovery_metrics.likes_7d + excluded.likes_7d,
			likes_30d = discovery_metrics.likes_30d + excluded.likes_30d,
			engagement_score = GREATEST(discovery_metrics.engagement_score + ?, 0)`,
		personaID, views, views, views, likes, likes, likes, engagement, time.Now().UTC(), engagement)
	if err != nil {
		return fmt.Errorf("failed to record engagement: %w", err)
	}
	return nil
}
