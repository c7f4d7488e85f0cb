// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

/*
Package main is the personafeed server.

Personafeed builds a ranked, paginated discovery feed of personas for each
user. Candidates come from six sources (trending, personalized, followed
creators, similar personas, review highlights, new creators). They are
normalized per source, weighted by the user's preferences, filtered,
deduplicated and diversified. The result is stored as an immutable
snapshot that clients page through with opaque cursors.

# Startup

 1. Configuration: koanf v2 (defaults, optional YAML file, environment)
 2. Logging: zerolog, JSON or console
 3. Database: DuckDB holding the catalog and the feed tables
 4. Event pipeline (optional): Watermill over gochannel or NATS JetStream,
    with a BadgerDB outbox
 5. Feed engine with the six catalog sources
 6. WebSocket hub for feed_ready notifications
 7. Supervisor tree: outbox retry, janitor, hub, consumer, refresh
    scheduler and the HTTP server

# Supervisor Tree

	RootSupervisor ("personafeed")
	├── data-layer:      outbox-retry, feed-janitor
	├── messaging-layer: websocket-hub, interaction-consumer
	├── feed-layer:      refresh-scheduler
	└── api-layer:       http-server

# Configuration

Core environment variables:

	HTTP_PORT=8470
	DUCKDB_PATH=/data/personafeed.duckdb
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console

	FEED_NORMALIZATION=minmax    # minmax or rank
	FEED_CONCURRENCY_POLICY=join # join or reject
	FEED_DISMISS_COOLDOWN=168h

	EVENTS_ENABLED=true
	EVENTS_TRANSPORT=gochannel   # gochannel or nats
	NATS_URL=nats://127.0.0.1:4222
	NATS_EMBEDDED=false
	OUTBOX_PATH=/data/outbox

	REFRESH_ENABLED=true
	REFRESH_INTERVAL=5m
	REFRESH_RATE_PER_SECOND=10

A YAML file is read from CONFIG_PATH when set.

# Signals

SIGINT and SIGTERM cancel the root context. The supervisor stops the HTTP
server (draining in-flight requests), the background services and the
consumer. After the tree returns, the engine waits for running
generations, pending events are flushed to the bus or left in the outbox,
and the database is closed.
*/
package main
