// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

/*
Package api provides the HTTP surface of the feed service.

Routing uses chi with the go-chi ecosystem middleware (cors, httprate).
Every JSON endpoint answers with models.APIResponse.

Endpoints:

	GET    /api/v1/health                       detailed health
	GET    /api/v1/health/live                  liveness probe
	GET    /api/v1/health/ready                 readiness probe (database)
	GET    /metrics                             Prometheus
	GET    /api/v1/users/{userID}/feed          one page, ?limit=&cursor=
	POST   /api/v1/users/{userID}/feed/generate run generation
	GET    /api/v1/users/{userID}/feed/status   lifecycle state
	GET    /api/v1/users/{userID}/feed/preferences
	PUT    /api/v1/users/{userID}/feed/preferences
	DELETE /api/v1/users/{userID}               account deletion
	POST   /api/v1/feed/items/{itemID}/interactions
	GET    /api/v1/ws?user_id=                  feed_ready notifications

User IDs are opaque strings handed over by the authentication layer in front
of this service; the service does not authenticate callers itself.

Error mapping:

	ErrInvalidUserID, ErrInvalidPreferences, ErrInvalidCursor  400
	ErrFeedItemNotFound                                        404
	ErrGenerationInProgress                                    409 + Retry-After
	ErrCursorExpired                                           410
	ErrPersistence, ErrEngineClosed                            503

POST .../feed/generate is the exception: a rejected concurrent run answers
202 with state "generating" and Retry-After, since the caller's feed is on
its way.
*/
package api
