// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package outbox

import "errors"

var (
	// ErrClosed is returned by operations on a closed outbox.
	ErrClosed = errors.New("outbox is closed")

	// ErrEntryNotFound is returned when confirming or updating an unknown
	// or already confirmed entry.
	ErrEntryNotFound = errors.New("outbox entry not found")

	// ErrEmptyTopic is returned by Write without a topic.
	ErrEmptyTopic = errors.New("outbox entry requires a topic")

	// ErrEmptyEntryID is returned by Confirm without an entry ID.
	ErrEmptyEntryID = errors.New("outbox entry id is empty")
)
