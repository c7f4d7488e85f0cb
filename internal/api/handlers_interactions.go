// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/personafeed/internal/feed"
	"github.com/tomtom215/personafeed/internal/validation"
)

// TrackInteraction records a view, click, like, share or dismissal of a
// feed item. It answers 202: the analytics event is published
// asynchronously. Repeating an interaction is accepted and reported with
// recorded=false.
func (h *Handler) TrackInteraction(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	itemID := chi.URLParam(r, "itemID")
	if strings.TrimSpace(itemID) == "" {
		respondFeedError(w, feed.ErrFeedItemNotFound)
		return
	}

	var req TrackInteractionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, r, verr)
		return
	}

	item, first, err := h.engine.TrackInteractionByName(r.Context(), itemID, req.Type)
	if err != nil {
		respondFeedError(w, err)
		return
	}

	kind, _ := feed.ParseInteractionType(req.Type)
	respondSuccess(w, r, http.StatusAccepted, &InteractionResponse{
		ItemID:      itemID,
		Interaction: kind.String(),
		Recorded:    first,
		Item:        item,
	}, start)
}
