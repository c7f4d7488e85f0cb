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
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/personafeed/internal/feed"
)

const itemColumns = `id, user_id, version, item_type, persona_id, creator_id,
	source, sources, relevance_score, position, is_promoted, is_trending,
	payload, generated_at, retired_at,
	viewed_at, clicked_at, liked_at, shared_at, dismissed_at`

// ActiveSnapshot returns the active snapshot of a user, or nil when none.
func (db *DB) ActiveSnapshot(ctx context.Context, userID string) (*feed.SnapshotMeta, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		meta        feed.SnapshotMeta
		generatedAt sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id, active_version, generated_at, item_count
		FROM user_feed_state WHERE user_id = ? AND active_version > 0`, userID).
		Scan(&meta.UserID, &meta.Version, &generatedAt, &meta.ItemCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active snapshot: %w", err)
	}
	meta.GeneratedAt = generatedAt.Time
	return &meta, nil
}

// ListItems returns a page of one snapshot version ordered by position.
func (db *DB) ListItems(ctx context.Context, userID string, version int64, offset, limit int) ([]feed.FeedItem, int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feed_items WHERE user_id = ? AND version = ?`, userID, version).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count feed items: %w", err)
	}
	if total == 0 || offset >= total {
		return []feed.FeedItem{}, total, nil
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM feed_items
		WHERE user_id = ? AND version = ?
		ORDER BY position
		LIMIT ? OFFSET ?`, userID, version, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list feed items: %w", err)
	}
	defer closeWithLog(rows, "feed item rows")

	items := make([]feed.FeedItem, 0, limit)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate feed items: %w", err)
	}
	return items, total, nil
}

// SwapSnapshot inserts snap as the user's next version, retires the previous
// one and points user_feed_state at the new version in one transaction.
func (db *DB) SwapSnapshot(ctx context.Context, snap *feed.Snapshot) (*feed.SnapshotMeta, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var meta *feed.SnapshotMeta
	err := db.withTx(ctx, "swap snapshot", func(tx *sql.Tx) error {
		var prev, highest, issued int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(active_version), 0) FROM user_feed_state WHERE user_id = ?`,
			snap.UserID).Scan(&prev); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) FROM feed_items WHERE user_id = ?`,
			snap.UserID).Scan(&highest); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(last_version), 0) FROM feed_version_counters WHERE user_id = ?`,
			snap.UserID).Scan(&issued); err != nil {
			return err
		}
		version := max(prev, highest, issued) + 1
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO feed_version_counters (user_id, last_version) VALUES (?, ?)
			ON CONFLICT (user_id) DO UPDATE SET last_version = excluded.last_version`,
			snap.UserID, version); err != nil {
			return fmt.Errorf("advance version counter: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO feed_items (id, user_id, version, item_type, persona_id, creator_id,
				source, sources, relevance_score, position, is_promoted, is_trending,
				payload, generated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer closeWithLog(stmt, "insert feed item statement")

		// IDs are assigned on a copy so a retried transaction starts clean.
		items := make([]feed.FeedItem, len(snap.Items))
		copy(items, snap.Items)
		for i := range items {
			it := &items[i]
			it.ID = uuid.NewString()
			it.UserID = snap.UserID
			it.Version = version
			it.GeneratedAt = snap.GeneratedAt
			payload, err := feed.EncodePayload(it.Payload)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx,
				it.ID, it.UserID, it.Version, string(it.Type),
				nullID(it.PersonaID), nullID(it.CreatorID),
				string(it.Source), joinSources(it.Sources), it.Relevance, it.Position,
				it.Promoted, it.Trending, string(payload), it.GeneratedAt,
			); err != nil {
				return fmt.Errorf("insert feed item %d: %w", i, err)
			}
		}

		if prev > 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE feed_items SET retired_at = ?
				WHERE user_id = ? AND version = ? AND retired_at IS NULL`,
				time.Now().UTC(), snap.UserID, prev); err != nil {
				return fmt.Errorf("retire version %d: %w", prev, err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_feed_state (user_id, active_version, generated_at, item_count)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (user_id) DO UPDATE SET
				active_version = excluded.active_version,
				generated_at = excluded.generated_at,
				item_count = excluded.item_count`,
			snap.UserID, version, snap.GeneratedAt, len(items)); err != nil {
			return fmt.Errorf("activate version %d: %w", version, err)
		}

		copy(snap.Items, items)
		meta = &feed.SnapshotMeta{
			UserID:      snap.UserID,
			Version:     version,
			GeneratedAt: snap.GeneratedAt,
			ItemCount:   len(items),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// GetItem returns feed.ErrFeedItemNotFound for unknown IDs.
func (db *DB) GetItem(ctx context.Context, itemID string) (*feed.FeedItem, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM feed_items WHERE id = ?`, itemID)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, feed.ErrFeedItemNotFound
	}
	return it, err
}

// TouchRead records a feed read for the refresh scheduler.
func (db *DB) TouchRead(ctx context.Context, userID string, at time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO user_feed_state (user_id, last_read_at) VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET last_read_at = excluded.last_read_at`,
		userID, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to record feed read: %w", err)
	}
	return nil
}

// UsersDueForRefresh lists recently active users whose snapshot outlived
// their refresh interval, oldest snapshot first.
func (db *DB) UsersDueForRefresh(ctx context.Context, activeSince, now time.Time, limit int) ([]string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT s.user_id
		FROM user_feed_state s
		JOIN user_feed_preferences p ON p.user_id = s.user_id
		WHERE s.active_version > 0
		  AND s.last_read_at >= ?
		  AND s.generated_at + to_seconds(p.refresh_interval_seconds) <= ?
		ORDER BY s.generated_at, s.user_id
		LIMIT ?`, activeSince.UTC(), now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query users due for refresh: %w", err)
	}
	defer closeWithLog(rows, "refresh candidate rows")

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// PruneRetired deletes snapshot rows retired before the cutoff.
func (db *DB) PruneRetired(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM feed_items WHERE retired_at IS NOT NULL AND retired_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune retired items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read pruned row count: %w", err)
	}
	return n, nil
}

// DeleteUser removes every row owned by the user except its version counter,
// so snapshot versions never repeat and cursors issued before the deletion
// expire instead of reading a later feed.
func (db *DB) DeleteUser(ctx context.Context, userID string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return db.withTx(ctx, "delete user", func(tx *sql.Tx) error {
		for _, table := range []string{
			"feed_items", "feed_interactions", "user_feed_state",
			"user_feed_preferences", "recommendation_candidates", "creator_follows",
		} {
			// table names come from the fixed list above
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE user_id = ?", userID); err != nil {
				return fmt.Errorf("delete from %s: %w", table, err)
			}
		}
		return nil
	})
}

func scanItem(row rowScanner) (*feed.FeedItem, error) {
	var (
		it                   feed.FeedItem
		itemType, source     string
		sources, payload     string
		personaID, creatorID sql.NullInt64
		retired              sql.NullTime
		flags                [5]sql.NullTime
	)
	err := row.Scan(
		&it.ID, &it.UserID, &it.Version, &itemType, &personaID, &creatorID,
		&source, &sources, &it.Relevance, &it.Position, &it.Promoted, &it.Trending,
		&payload, &it.GeneratedAt, &retired,
		&flags[0], &flags[1], &flags[2], &flags[3], &flags[4],
	)
	if err != nil {
		return nil, err
	}
	it.Type = feed.ItemType(itemType)
	it.PersonaID = personaID.Int64
	it.CreatorID = creatorID.Int64
	it.Source = feed.Source(source)
	it.Sources = splitSources(sources)
	it.RetiredAt = timePtr(retired)
	it.ViewedAt = timePtr(flags[0])
	it.ClickedAt = timePtr(flags[1])
	it.LikedAt = timePtr(flags[2])
	it.SharedAt = timePtr(flags[3])
	it.DismissedAt = timePtr(flags[4])

	p, err := feed.DecodePayload(it.Type, []byte(payload))
	if err != nil {
		return nil, err
	}
	it.Payload = p
	return &it, nil
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func joinSources(sources []feed.Source) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

func splitSources(s string) []feed.Source {
	if s == "" {
		return []feed.Source{}
	}
	parts := strings.Split(s, ",")
	out := make([]feed.Source, len(parts))
	for i, p := range parts {
		out[i] = feed.Source(p)
	}
	return out
}
