// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

/*
Package services adapts personafeed components to suture.Service.

  - HTTPServerService: ListenAndServe with graceful Shutdown
  - WebSocketHubService: the feed_ready notification hub
  - RefreshService: rate-limited regeneration of stale feeds
  - JanitorService: periodic pruning of retired feed snapshots

The outbox retry loop and the interaction consumer implement Serve and
String themselves and are added to the tree directly.

Every service returns ctx.Err() on shutdown so the supervisor does not
treat a clean stop as a failure.
*/
package services
