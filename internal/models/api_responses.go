// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package models

import (
	"time"
)

// APIResponse is the envelope every JSON endpoint returns.
//
// Status is "success" or "error". Data carries the payload on success and
// Error the details on failure.
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "INVALID_PREFERENCES",
//	    "message": "max items must be in [1,500], got 0"
//	  },
//	  "metadata": {"timestamp": "2026-03-01T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	NextCursor  string    `json:"next_cursor,omitempty"`
}

// APIError is the machine-readable error body.
//
// Common codes:
//   - VALIDATION_ERROR: malformed request body or parameters
//   - INVALID_PREFERENCES: preferences rejected by the engine
//   - NOT_FOUND: unknown feed item
//   - CURSOR_EXPIRED: the snapshot a cursor pointed at was pruned
//   - GENERATION_IN_PROGRESS: another run for the user is in flight
//   - PERSISTENCE_ERROR: the new snapshot could not be stored
//   - RATE_LIMIT_EXCEEDED: too many requests
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthStatus is returned by the readiness endpoint.
type HealthStatus struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Database  bool              `json:"database_connected"`
	Breakers  map[string]string `json:"source_breakers,omitempty"`
	Uptime    float64           `json:"uptime_seconds"`
	Timestamp time.Time         `json:"timestamp"`

	// Row counts per table, absent when the store cannot report them.
	Records map[string]int64 `json:"records,omitempty"`

	// Event pipeline, absent when events are disabled.
	Events *EventsHealth `json:"events,omitempty"`

	WebSocketClients int `json:"websocket_clients"`
}

// EventsHealth reports the publisher breaker and the outbox backlog.
type EventsHealth struct {
	Transport          string `json:"transport"`
	PublisherBreaker   string `json:"publisher_breaker"`
	OutboxPending      int64  `json:"outbox_pending"`
	OutboxDeadLettered int64  `json:"outbox_dead_lettered"`
	Processed          int64  `json:"interactions_processed"`
	Duplicates         int64  `json:"interactions_duplicate"`
}
