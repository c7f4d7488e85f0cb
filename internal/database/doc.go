// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

// Package database is the DuckDB persistence layer of Personafeed.
//
// It owns two groups of tables. The catalog tables (personas, creators,
// discovery metrics, recommendations, follows, reviews) are written by
// upstream collaborators and read by the candidate sources. The feed tables
// hold per-user preferences, versioned feed snapshots and the interaction log;
// DB implements feed.Store over them.
//
// # Snapshot swap
//
// SwapSnapshot inserts the new version, retires the previous one and moves
// user_feed_state.active_version in a single transaction. Readers resolve the
// active version first and then read items by (user_id, version), so a read
// never mixes two generations. Retired rows stay readable for cursors until
// PruneRetired removes them.
//
// # Testing
//
// Tests use ":memory:" databases and serialize DuckDB access with a package
// semaphore, since concurrent CGO database setup is unreliable under the race
// detector.
package database
