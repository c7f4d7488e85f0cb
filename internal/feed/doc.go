// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

// Package feed implements per-user feed generation: candidates are pulled from
// several independent sources, scored on a common [0,1] scale, deduplicated,
// ordered deterministically and persisted as an immutable snapshot.
//
// # Pipeline
//
// A generation run for one user goes through four stages:
//
//  1. Aggregate: every enabled Provider is queried concurrently with its own
//     timeout and circuit breaker. A failing source contributes nothing.
//  2. Filter: blocked categories, rating floors, verification requirements,
//     run-level category filters and recently dismissed personas are removed.
//  3. Score: raw scores are normalized per source and multiplied by the
//     user's source weight. Weights are relative multipliers and are never
//     normalized; the product is clamped to [0,1].
//  4. Merge: candidates sharing a persona (or creator) collapse into one item,
//     the list is sorted with a total order, truncated and given dense
//     0-based positions.
//
// The result replaces the user's previous snapshot in a single Store call.
// Readers see either the old snapshot or the new one, never a mix.
//
// # Concurrency
//
// At most one run per user is in flight. With ConcurrencyJoin, callers that
// arrive during a run wait for and share its result; with ConcurrencyReject
// they get ErrGenerationInProgress. Runs for different users are independent.
//
// If the user's preferences change while a run is in flight, the run finishes,
// its result is dropped and a fresh run starts. If the user is deleted the
// result is dropped and ErrUserDeleted is returned.
//
// # Reads
//
// GetFeed never waits for generation. It serves the active snapshot (Ready or
// Stale), kicks off a background refresh when the snapshot is stale or
// missing, and returns an empty page flagged StateGenerating when there is
// nothing to serve yet. Cursors pin a snapshot version so paging stays stable
// across a swap until the retired rows are pruned.
//
// This package depends only on the Store, Provider, EventSink and Notifier
// interfaces; internal/database, internal/feed/sources, internal/events and
// internal/websocket provide the implementations.
package feed
