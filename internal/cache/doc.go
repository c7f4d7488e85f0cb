// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

// Package cache provides the two in-process caches Personafeed needs:
//
//   - TTL, a generic expiring key/value map used for preference reads and
//     read-activity throttling in the feed engine.
//   - Dedup, a bounded LRU of recently seen keys used to suppress duplicate
//     event publication when the outbox redelivers.
//
// Both are safe for concurrent use.
package cache
