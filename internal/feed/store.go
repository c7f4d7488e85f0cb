// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package feed

import (
	"context"
	"time"
)

// Store persists preferences, snapshots and interactions. internal/database
// implements it on DuckDB.
type Store interface {
	// GetPreferences returns ErrPreferencesNotFound when the user has no row.
	GetPreferences(ctx context.Context, userID string) (*Preferences, error)

	// EnsurePreferences inserts p unless a row exists and returns the stored row.
	EnsurePreferences(ctx context.Context, p *Preferences) (*Preferences, error)

	// UpdatePreferences upserts p, sets Version to the previous version plus
	// one and returns the stored row.
	UpdatePreferences(ctx context.Context, p *Preferences) (*Preferences, error)

	// ActiveSnapshot returns the active snapshot of a user, or nil when the
	// user has never had a feed generated.
	ActiveSnapshot(ctx context.Context, userID string) (*SnapshotMeta, error)

	// ListItems returns a page of a snapshot version ordered by position,
	// and the total item count of that version. Retired versions are listed
	// until pruned; a pruned or unknown version yields total 0.
	ListItems(ctx context.Context, userID string, version int64, offset, limit int) ([]FeedItem, int, error)

	// SwapSnapshot atomically inserts snap as the next version, retires the
	// previous version and makes the new one active. The store assigns item
	// IDs and the version and writes them back into snap.Items.
	SwapSnapshot(ctx context.Context, snap *Snapshot) (*SnapshotMeta, error)

	// GetItem returns ErrFeedItemNotFound for unknown IDs.
	GetItem(ctx context.Context, itemID string) (*FeedItem, error)

	// SetInteraction sets the flag for kind on the item if it is unset and
	// appends an interaction record. first is false when the flag was already
	// set; the original timestamp is then kept. Returns ErrFeedItemNotFound
	// for unknown IDs.
	SetInteraction(ctx context.Context, itemID string, kind InteractionType, at time.Time) (item *FeedItem, first bool, err error)

	// DismissedKeys returns the dedup keys the user dismissed at or after since.
	DismissedKeys(ctx context.Context, userID string, since time.Time) (map[string]struct{}, error)

	// TouchRead records that the user read their feed at the given time.
	TouchRead(ctx context.Context, userID string, at time.Time) error

	// UsersDueForRefresh lists users who read their feed at or after
	// activeSince and whose active snapshot is older than their refresh
	// interval at now.
	UsersDueForRefresh(ctx context.Context, activeSince, now time.Time, limit int) ([]string, error)

	// PruneRetired deletes items retired before the cutoff.
	PruneRetired(ctx context.Context, before time.Time) (int64, error)

	// DeleteUser removes every row owned by the user.
	DeleteUser(ctx context.Context, userID string) error
}
