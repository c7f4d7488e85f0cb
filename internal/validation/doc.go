// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

// Package validation provides struct validation using go-playground/validator v10.
//
// It wraps a thread-safe singleton validator with the feed-specific tags
// and translates failures into the API's VALIDATION_ERROR body. Field names
// in messages come from the json tag so they match what the client sent.
//
// # Quick Start
//
//	type TrackInteractionRequest struct {
//	    Type string `json:"type" validate:"required,interaction"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	    return
//	}
//
// # Custom Tags
//
//   - userid: an opaque user ID accepted by the feed engine
//   - interaction: viewed, clicked, liked, shared or dismissed (short forms too)
//   - category: a non-blank category name of at most 64 bytes
//
// Built-in tags (min, max, gte, lte, oneof, dive, base64url) work as usual.
package validation
