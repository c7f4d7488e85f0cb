// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package feed

import "errors"

var (
	// ErrSourceUnavailable marks a failed or timed-out source. It never
	// leaves the engine; the source simply contributes no candidates.
	ErrSourceUnavailable = errors.New("candidate source unavailable")

	// ErrGenerationInProgress is returned under ConcurrencyReject when a run
	// for the same user is already in flight. Callers should retry later.
	ErrGenerationInProgress = errors.New("feed generation already in progress")

	// ErrInvalidPreferences wraps every preference validation failure.
	ErrInvalidPreferences = errors.New("invalid feed preferences")

	// ErrPersistence wraps a failed snapshot swap. The previous snapshot
	// remains active.
	ErrPersistence = errors.New("feed persistence failed")

	// ErrFeedItemNotFound is returned for unknown feed item IDs.
	ErrFeedItemNotFound = errors.New("feed item not found")

	// ErrPreferencesNotFound is returned by Store when a user has no row yet.
	ErrPreferencesNotFound = errors.New("feed preferences not found")

	// ErrCursorExpired is returned when a cursor points at a pruned snapshot.
	ErrCursorExpired = errors.New("feed cursor expired")

	// ErrInvalidCursor is returned for cursors that fail to decode.
	ErrInvalidCursor = errors.New("invalid feed cursor")

	// ErrUnknownInteraction is returned for unrecognized interaction names.
	ErrUnknownInteraction = errors.New("unknown interaction type")

	// ErrUserDeleted is returned when a user was deleted during a run.
	ErrUserDeleted = errors.New("user deleted during feed generation")

	// ErrInvalidUserID is returned for empty or oversized user IDs.
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrEngineClosed is returned after Close.
	ErrEngineClosed = errors.New("feed engine closed")
)
