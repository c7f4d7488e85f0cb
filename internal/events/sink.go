// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/personafeed/internal/feed"
	"github.com/tomtom215/personafeed/internal/outbox"
)

// Sink implements feed.EventSink. Each event is written to the outbox and
// then published in the background; failures are left to the outbox retry
// loop. Without an outbox, events are published best-effort.
type Sink struct {
	publisher *Publisher
	box       *outbox.Outbox
	cfg       Config
	logger    zerolog.Logger

	wg sync.WaitGroup
}

// NewSink creates a sink. box may be nil.
//
//nolint:gocritic // hugeParam: cfg passed by value for immutability
func NewSink(publisher *Publisher, box *outbox.Outbox, cfg Config, logger zerolog.Logger) *Sink {
	return &Sink{
		publisher: publisher,
		box:       box,
		cfg:       cfg,
		logger:    logger.With().Str("component", "event-sink").Logger(),
	}
}

// InteractionRecorded implements feed.EventSink.
func (s *Sink) InteractionRecorded(ctx context.Context, evt *feed.InteractionEvent) error {
	return s.emit(ctx, s.cfg.InteractionTopic, evt.EventID, evt)
}

// FeedGenerated implements feed.EventSink.
func (s *Sink) FeedGenerated(ctx context.Context, evt *feed.GeneratedEvent) error {
	return s.emit(ctx, s.cfg.FeedTopic, evt.EventID, evt)
}

func (s *Sink) emit(ctx context.Context, topic, eventID string, evt any) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("serialize event %s: %w", eventID, err)
	}

	entryID := ""
	if s.box != nil {
		entryID, err = s.box.Write(ctx, topic, eventID, payload)
		if err != nil {
			return fmt.Errorf("write event %s to outbox: %w", eventID, err)
		}
		// A fresh entry is never claimed yet; the claim keeps the retry
		// loop away while the immediate publish runs.
		s.box.Claim(entryID)
	}

	// The caller's request may finish before the publish does.
	pubCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.publish(pubCtx, topic, eventID, entryID, payload)
	}()
	return nil
}

func (s *Sink) publish(ctx context.Context, topic, eventID, entryID string, payload []byte) {
	if entryID != "" {
		defer s.box.Release(entryID)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.PublishTimeout)
	defer cancel()

	err := s.publisher.Publish(ctx, topic, eventID, payload)
	if err != nil {
		log := s.logger.Warn().Err(err).Str("topic", topic).Str("event_id", eventID)
		if entryID == "" {
			log.Msg("Event publish failed, event dropped")
			return
		}
		log.Str("entry_id", entryID).Msg("Event publish failed, entry will be retried")
		if _, ferr := s.box.RecordFailure(ctx, entryID, err); ferr != nil {
			s.logger.Warn().Err(ferr).Str("entry_id", entryID).Msg("Outbox attempt update failed")
		}
		return
	}

	if entryID != "" {
		if err := s.box.Confirm(ctx, entryID); err != nil {
			s.logger.Warn().Err(err).Str("entry_id", entryID).Msg("Outbox confirm failed")
		}
	}
}

// Flush waits for in-flight publishes, up to timeout.
func (s *Sink) Flush(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

var _ feed.EventSink = (*Sink)(nil)
