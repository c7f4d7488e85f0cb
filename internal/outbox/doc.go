// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

/*
Package outbox provides a durable BadgerDB-backed outbox for engine events.

Events are written to the outbox before they are published to the message
bus. A successful publish confirms the entry; anything left pending is
redelivered by the RetryLoop with exponential backoff until it succeeds or
exhausts its attempts, in which case it is moved to the dead-letter prefix
for inspection.

# Key Layout

	pending:<id>    unconfirmed entries, scanned by the retry loop
	confirmed:<id>  published entries, expired by Badger TTL after Retention
	dead:<id>       entries that exceeded MaxRetries

Delivery is at-least-once. Consumers deduplicate on Entry.MessageID, which is
also sent as the Nats-Msg-Id header so JetStream drops duplicates inside its
dedup window.
*/
package outbox
