// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tomtom215/personafeed/internal/feed"
)

// retryAfterSeconds is sent with responses that ask the client to come back.
const retryAfterSeconds = "2"

// feedErrorStatus maps an engine error to status, code and client message.
func feedErrorStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, feed.ErrInvalidUserID):
		return http.StatusBadRequest, ErrCodeInvalidUserID, "Invalid user ID"
	case errors.Is(err, feed.ErrInvalidPreferences):
		// The engine's message names the offending field.
		return http.StatusBadRequest, ErrCodeInvalidPreferences, publicMessage(err, feed.ErrInvalidPreferences)
	case errors.Is(err, feed.ErrInvalidCursor):
		return http.StatusBadRequest, ErrCodeInvalidCursor, "Invalid cursor"
	case errors.Is(err, feed.ErrUnknownInteraction):
		return http.StatusBadRequest, ErrCodeValidation, "Unknown interaction type"
	case errors.Is(err, feed.ErrFeedItemNotFound):
		return http.StatusNotFound, ErrCodeNotFound, "Feed item not found"
	case errors.Is(err, feed.ErrGenerationInProgress):
		return http.StatusConflict, ErrCodeGenerationInProgress, "Feed generation already in progress"
	case errors.Is(err, feed.ErrUserDeleted):
		return http.StatusConflict, ErrCodeUserDeleted, "User was deleted during generation"
	case errors.Is(err, feed.ErrCursorExpired):
		return http.StatusGone, ErrCodeCursorExpired, "Cursor expired, restart from the first page"
	case errors.Is(err, feed.ErrPersistence):
		return http.StatusServiceUnavailable, ErrCodePersistence, "Feed could not be stored, previous feed kept"
	case errors.Is(err, feed.ErrEngineClosed):
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Service is shutting down"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrCodeTimeout, "Request timed out"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Request cancelled"
	}
	return http.StatusInternalServerError, ErrCodeInternal, "Internal server error"
}

// respondFeedError writes the mapped error, adding Retry-After where the
// client is expected to retry.
func respondFeedError(w http.ResponseWriter, err error) {
	status, code, message := feedErrorStatus(err)
	if code == ErrCodeGenerationInProgress || status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	respondError(w, status, code, message, err)
}

// publicMessage drops the sentinel prefix from a wrapped validation error,
// leaving the field description.
func publicMessage(err, sentinel error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return rest
	}
	return msg
}
