// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

/*
Package events publishes engine events to a Watermill message bus and
consumes interaction events to keep discovery metrics current.

# Transports

Two transports are supported:

  - gochannel: in-process Watermill pub/sub. The default for single-node
    deployments and tests.
  - nats: NATS JetStream through watermill-nats, either against an external
    server or an embedded nats-server started by NewTransport.

# Flow

	Engine -> Sink -> outbox.Write -> Publisher (circuit breaker) -> bus
	                      ^                                      |
	                      +-- outbox.RetryLoop on failure        v
	                                         InteractionConsumer -> DuckDB

Every message carries its event ID as the Watermill UUID and as the
Nats-Msg-Id header. JetStream drops duplicates inside the stream's duplicate
window and the consumer drops them again with a bounded dedup cache, so
at-least-once delivery from the outbox is safe.
*/
package events
