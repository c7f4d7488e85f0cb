// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

/*
Package websocket pushes feed_ready notifications to connected clients.

Clients subscribe for one user with GET /api/v1/ws?user_id=... and receive a
message whenever a new feed snapshot becomes active for that user:

	{"type": "feed_ready", "data": {"user_id": "u1", "version": 7, "item_count": 20, "timestamp": "..."}}

The Hub implements feed.Notifier. It is a single goroutine owning the
registry of clients; registration, removal and delivery all go through its
channels, so the registry needs no extra locking on the hot path. Each
Client runs a read pump (pings from the browser, close detection) and a write
pump (queued messages plus keepalive pings).

Delivery is best-effort: a client whose send buffer is full is dropped and
must reconnect and re-read its feed.
*/
package websocket
