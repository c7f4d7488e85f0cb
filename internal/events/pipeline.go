// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/personafeed/internal/outbox"
)

// Pipeline owns the event bus of one process: the transport, the breaker
// guarded publisher, the outbox with its retry loop, the engine-facing sink
// and, when a recorder is given, the interaction consumer.
type Pipeline struct {
	transport *Transport
	publisher *Publisher
	box       *outbox.Outbox
	sink      *Sink
	retry     *outbox.RetryLoop
	consumer  *InteractionConsumer
	cfg       Config
	logger    zerolog.Logger
}

// NewPipeline builds every part of the bus. recorder may be nil, in which
// case no consumer is created.
//
//nolint:gocritic // hugeParam: configs passed by value for immutability
func NewPipeline(ctx context.Context, cfg Config, boxCfg outbox.Config, recorder EngagementRecorder, logger zerolog.Logger) (*Pipeline, error) {
	transport, err := NewTransport(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("event transport: %w", err)
	}

	box, err := outbox.Open(boxCfg)
	if err != nil {
		_ = transport.Close(ctx)
		return nil, fmt.Errorf("event outbox: %w", err)
	}

	p := &Pipeline{
		transport: transport,
		box:       box,
		cfg:       cfg,
		logger:    logger.With().Str("component", "events").Logger(),
	}
	p.publisher = NewPublisher(transport.Publisher, cfg, logger)
	p.sink = NewSink(p.publisher, box, cfg, logger)
	p.retry = outbox.NewRetryLoop(box, p.publisher, cfg.PublishTimeout)

	if recorder != nil {
		p.consumer, err = NewInteractionConsumer(transport.Subscriber, recorder, cfg, logger)
		if err != nil {
			_ = box.Close()
			_ = transport.Close(ctx)
			return nil, fmt.Errorf("interaction consumer: %w", err)
		}
	}

	p.logger.Info().
		Str("transport", transport.Kind()).
		Bool("consumer", p.consumer != nil).
		Bool("outbox_in_memory", boxCfg.InMemory).
		Msg("Event pipeline ready")
	return p, nil
}

// Sink is the feed.EventSink to hand to the engine.
func (p *Pipeline) Sink() *Sink { return p.sink }

// RetryLoop republishes pending outbox entries. Run it under supervision.
func (p *Pipeline) RetryLoop() *outbox.RetryLoop { return p.retry }

// Consumer returns the interaction consumer, or nil.
func (p *Pipeline) Consumer() *InteractionConsumer { return p.consumer }

// Transport returns the transport name.
func (p *Pipeline) Transport() string { return p.transport.Kind() }

// PublisherBreaker returns the publisher circuit breaker state.
func (p *Pipeline) PublisherBreaker() string { return p.publisher.BreakerState() }

// OutboxStats returns the outbox counters.
func (p *Pipeline) OutboxStats() outbox.Stats { return p.box.Stats() }

// ConsumerStats returns processed and duplicate interaction counts.
func (p *Pipeline) ConsumerStats() (processed, duplicates int64) {
	if p.consumer == nil {
		return 0, 0
	}
	return p.consumer.Stats()
}

// Close drains in-flight publishes for up to flushTimeout, then closes the
// publisher, the transport and the outbox in that order. Entries that were
// not published stay in a durable outbox for the next start.
func (p *Pipeline) Close(ctx context.Context, flushTimeout time.Duration) error {
	if !p.sink.Flush(flushTimeout) {
		p.logger.Warn().Dur("timeout", flushTimeout).Msg("Event publishes still in flight at shutdown")
	}
	p.publisher.Close()

	var errs []error
	if err := p.transport.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := p.box.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close outbox: %w", err))
	}
	return errors.Join(errs...)
}
