// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package feed

import (
	"context"
	"time"
)

// InteractionEvent is emitted once per first-time interaction. Analytics
// consumers use it to update discovery metrics.
type InteractionEvent struct {
	EventID     string    `json:"event_id"`
	ItemID      string    `json:"item_id"`
	UserID      string    `json:"user_id"`
	PersonaID   int64     `json:"persona_id,omitempty"`
	CreatorID   int64     `json:"creator_id,omitempty"`
	ItemType    ItemType  `json:"item_type"`
	Source      Source    `json:"source"`
	Interaction string    `json:"interaction"`
	Position    int       `json:"position"`
	Version     int64     `json:"version"`
	Relevance   float64   `json:"relevance_score"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// GeneratedEvent is emitted when a new snapshot becomes active.
type GeneratedEvent struct {
	EventID     string         `json:"event_id"`
	UserID      string         `json:"user_id"`
	Version     int64          `json:"version"`
	ItemCount   int            `json:"item_count"`
	SourceStats map[Source]int `json:"source_stats"`
	Fallback    bool           `json:"trending_fallback"`
	DurationMs  int64          `json:"duration_ms"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// EventSink receives engine events. Implementations must return quickly;
// delivery to the message bus happens out of band.
type EventSink interface {
	InteractionRecorded(ctx context.Context, evt *InteractionEvent) error
	FeedGenerated(ctx context.Context, evt *GeneratedEvent) error
}

// Notifier pushes "your feed changed" signals to connected clients.
type Notifier interface {
	FeedReady(userID string, version int64, itemCount int)
}

type nopSink struct{}

func (nopSink) InteractionRecorded(context.Context, *InteractionEvent) error { return nil }
func (nopSink) FeedGenerated(context.Context, *GeneratedEvent) error         { return nil }

type nopNotifier struct{}

func (nopNotifier) FeedReady(string, int64, int) {}
