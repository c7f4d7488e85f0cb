// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package feed

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tomtom215/personafeed/internal/metrics"
)

// TrackInteraction records kind against the item. The first write of each
// flag wins; repeating it returns the item unchanged with first == false and
// emits nothing.
func (e *Engine) TrackInteraction(ctx context.Context, itemID string, kind InteractionType) (*FeedItem, bool, error) {
	if itemID == "" {
		return nil, false, ErrFeedItemNotFound
	}
	if kind < InteractionViewed || kind > InteractionDismissed {
		return nil, false, fmt.Errorf("%w: %d", ErrUnknownInteraction, kind)
	}

	at := e.now()
	item, first, err := e.store.SetInteraction(ctx, itemID, kind, at)
	if err != nil {
		return nil, false, err
	}
	metrics.RecordInteraction(kind.String(), first)
	if !first {
		return item, false, nil
	}

	evt := &InteractionEvent{
		EventID:     uuid.NewString(),
		ItemID:      item.ID,
		UserID:      item.UserID,
		PersonaID:   item.PersonaID,
		CreatorID:   item.CreatorID,
		ItemType:    item.Type,
		Source:      item.Source,
		Interaction: kind.String(),
		Position:    item.Position,
		Version:     item.Version,
		Relevance:   item.Relevance,
		OccurredAt:  at,
	}
	if err := e.sink.InteractionRecorded(ctx, evt); err != nil {
		e.logger.Warn().
			Err(err).
			Str("item_id", itemID).
			Str("interaction", kind.String()).
			Msg("failed to emit interaction event")
	}

	e.logger.Debug().
		Str("item_id", itemID).
		Str("user_id", item.UserID).
		Str("interaction", kind.String()).
		Msg("interaction recorded")
	return item, true, nil
}

// TrackInteractionByName parses the wire name and records it.
func (e *Engine) TrackInteractionByName(ctx context.Context, itemID, name string) (*FeedItem, bool, error) {
	kind, err := ParseInteractionType(name)
	if err != nil {
		return nil, false, err
	}
	return e.TrackInteraction(ctx, itemID, kind)
}
