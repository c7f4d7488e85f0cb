// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/personafeed/internal/cache"
	"github.com/tomtom215/personafeed/internal/feed"
	"github.com/tomtom215/personafeed/internal/metrics"
)

// EngagementRecorder applies one interaction to the discovery metrics.
type EngagementRecorder interface {
	RecordEngagement(ctx context.Context, personaID int64, kind string) error
}

// InteractionConsumer reads interaction events from the bus and feeds them
// into discovery metrics. It implements suture.Service.
type InteractionConsumer struct {
	subscriber message.Subscriber
	recorder   EngagementRecorder
	topic      string
	dedup      *cache.Dedup
	wmLogger   watermill.LoggerAdapter
	logger     zerolog.Logger

	mu     sync.Mutex
	router *message.Router
	used   bool

	processed atomic.Int64
}

// NewInteractionConsumer creates a consumer of cfg.InteractionTopic.
//
//nolint:gocritic // hugeParam: cfg passed by value for immutability
func NewInteractionConsumer(sub message.Subscriber, recorder EngagementRecorder, cfg Config, logger zerolog.Logger) (*InteractionConsumer, error) {
	c := &InteractionConsumer{
		subscriber: sub,
		recorder:   recorder,
		topic:      cfg.InteractionTopic,
		dedup:      cache.NewDedup(cfg.DedupCapacity, cfg.DedupWindow),
		wmLogger:   NewLoggerAdapter(logger.With().Str("component", "watermill").Logger()),
		logger:     logger.With().Str("component", "interaction-consumer").Logger(),
	}
	r, err := c.newRouter()
	if err != nil {
		return nil, err
	}
	c.router = r
	return c, nil
}

func (c *InteractionConsumer) newRouter() (*message.Router, error) {
	r, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, c.wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}
	r.AddMiddleware(middleware.Recoverer)
	r.AddMiddleware(middleware.Retry{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
		Logger:          c.wmLogger,
	}.Middleware)
	r.AddConsumerHandler("interaction-metrics", c.topic, c.subscriber, c.handle)
	return r, nil
}

// Serve runs the router until ctx is canceled. A router cannot be restarted,
// so a new one is built when the supervisor restarts the service.
func (c *InteractionConsumer) Serve(ctx context.Context) error {
	c.mu.Lock()
	if c.used {
		r, err := c.newRouter()
		if err != nil {
			c.mu.Unlock()
			return err
		}
		c.router = r
	}
	c.used = true
	r := c.router
	c.mu.Unlock()

	return r.Run(ctx)
}

// Running is closed once the current router is subscribed.
func (c *InteractionConsumer) Running() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.router.Running()
}

// String implements fmt.Stringer for supervisor logs.
func (c *InteractionConsumer) String() string {
	return "interaction-consumer"
}

// Stats returns processed and duplicate message counts.
func (c *InteractionConsumer) Stats() (processed, duplicates int64) {
	duplicates, _, _ = c.dedup.Stats()
	return c.processed.Load(), duplicates
}

func (c *InteractionConsumer) handle(msg *message.Message) error {
	key := msg.Metadata.Get(natsgo.MsgIdHdr)
	if key == "" {
		key = msg.UUID
	}
	if c.dedup.Seen(key) {
		metrics.EventsDeduplicated.Inc()
		return nil
	}

	var evt feed.InteractionEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		// Malformed payloads are acked; redelivery cannot fix them.
		c.logger.Error().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed interaction event")
		return nil
	}

	if err := c.recorder.RecordEngagement(msg.Context(), evt.PersonaID, evt.Interaction); err != nil {
		c.dedup.Forget(key)
		return fmt.Errorf("record engagement for %s: %w", evt.EventID, err)
	}
	c.processed.Add(1)
	return nil
}
