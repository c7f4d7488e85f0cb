// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/personafeed/internal/metrics"
	"github.com/tomtom215/personafeed/internal/outbox"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// Publisher wraps a Watermill publisher with a circuit breaker. It also
// implements outbox.Publisher for the retry loop.
type Publisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[struct{}]

	mu     sync.RWMutex
	closed bool
}

// NewPublisher wraps pub. The breaker opens after cfg.BreakerMaxFailures
// consecutive failures and probes again after cfg.BreakerOpenTimeout.
//
//nolint:gocritic // hugeParam: cfg passed by value for immutability
func NewPublisher(pub message.Publisher, cfg Config, logger zerolog.Logger) *Publisher {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	settings := gobreaker.Settings{
		Name:        "event-publisher",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("event publisher circuit breaker state changed")
		},
	}
	return &Publisher{
		publisher: pub,
		breaker:   gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// Publish sends payload to topic. messageID becomes the Watermill UUID and
// the Nats-Msg-Id header.
func (p *Publisher) Publish(ctx context.Context, topic, messageID string, payload []byte) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPublisherClosed
	}

	msg := message.NewMessage(messageID, payload)
	msg.Metadata.Set(natsgo.MsgIdHdr, messageID)
	msg.SetContext(ctx)

	_, err := p.breaker.Execute(func() (struct{}, error) {
		if err := ctx.Err(); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, p.publisher.Publish(topic, msg)
	})

	switch {
	case err == nil:
		metrics.RecordEventPublish(topic, "ok")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordEventPublish(topic, "circuit_open")
	default:
		metrics.RecordEventPublish(topic, "error")
	}
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// PublishEntry implements outbox.Publisher.
func (p *Publisher) PublishEntry(ctx context.Context, e *outbox.Entry) error {
	return p.Publish(ctx, e.Topic, e.MessageID, e.Payload)
}

// BreakerState returns the circuit breaker state for health checks.
func (p *Publisher) BreakerState() string {
	return p.breaker.State().String()
}

// Close stops accepting publishes. The underlying publisher is owned by the
// Transport and closed there.
func (p *Publisher) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

var _ outbox.Publisher = (*Publisher)(nil)
