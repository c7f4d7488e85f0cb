// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/personafeed/internal/logging"
	"github.com/tomtom215/personafeed/internal/metrics"
)

// Publisher delivers an outbox entry to the message bus.
type Publisher interface {
	PublishEntry(ctx context.Context, entry *Entry) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, entry *Entry) error

// PublishEntry implements Publisher.
func (f PublisherFunc) PublishEntry(ctx context.Context, entry *Entry) error {
	return f(ctx, entry)
}

// RetryResult summarizes one pass over the pending entries.
type RetryResult struct {
	Succeeded    int
	Failed       int
	DeadLettered int
	Skipped      int
}

// RetryLoop redelivers pending entries in the background. It implements
// suture.Service.
type RetryLoop struct {
	box            *Outbox
	publisher      Publisher
	publishTimeout time.Duration
}

// NewRetryLoop creates a retry loop over box.
func NewRetryLoop(box *Outbox, publisher Publisher, publishTimeout time.Duration) *RetryLoop {
	if publishTimeout <= 0 {
		publishTimeout = 10 * time.Second
	}
	return &RetryLoop{box: box, publisher: publisher, publishTimeout: publishTimeout}
}

// Serve runs the loop until ctx is canceled. Pending entries are processed
// once at startup to recover anything left by a previous process.
func (r *RetryLoop) Serve(ctx context.Context) error {
	interval := r.box.cfg.RetryInterval
	logging.Info().
		Dur("interval", interval).
		Int("max_retries", r.box.cfg.MaxRetries).
		Msg("Outbox retry loop started")

	r.RetryPending(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Outbox retry loop stopped")
			return ctx.Err()
		case <-ticker.C:
			r.RetryPending(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (r *RetryLoop) String() string {
	return "outbox-retry"
}

// RetryPending attempts every due pending entry once.
func (r *RetryLoop) RetryPending(ctx context.Context) RetryResult {
	var res RetryResult

	entries, err := r.box.GetPending(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Outbox retry: failed to list pending entries")
		}
		return res
	}

	now := r.box.now()
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.Due(now) || !r.box.Claim(entry.ID) {
			res.Skipped++
			continue
		}
		r.process(ctx, entry, &res)
		r.box.Release(entry.ID)
	}

	if res.Succeeded > 0 || res.Failed > 0 || res.DeadLettered > 0 {
		logging.Info().
			Int("succeeded", res.Succeeded).
			Int("failed", res.Failed).
			Int("dead_lettered", res.DeadLettered).
			Msg("Outbox retry complete")
	}
	return res
}

func (r *RetryLoop) process(ctx context.Context, entry *Entry, res *RetryResult) {
	pubCtx, cancel := context.WithTimeout(ctx, r.publishTimeout)
	err := r.publisher.PublishEntry(pubCtx, entry)
	cancel()

	if err == nil {
		if cerr := r.box.Confirm(ctx, entry.ID); cerr != nil && !errors.Is(cerr, ErrEntryNotFound) {
			logging.Error().Err(cerr).Str("entry_id", entry.ID).Msg("Outbox retry: failed to confirm entry")
		}
		metrics.OutboxRetries.WithLabelValues("ok").Inc()
		res.Succeeded++
		return
	}

	dead, uerr := r.box.RecordFailure(ctx, entry.ID, err)
	if uerr != nil {
		logging.Error().Err(uerr).Str("entry_id", entry.ID).Msg("Outbox retry: failed to record attempt")
	}
	if dead {
		logging.Error().
			Err(err).
			Str("entry_id", entry.ID).
			Str("topic", entry.Topic).
			Int("attempts", entry.Attempts+1).
			Msg("Outbox entry exceeded max retries, moved to dead letters")
		metrics.OutboxRetries.WithLabelValues("expired").Inc()
		res.DeadLettered++
		return
	}
	logging.Warn().
		Err(err).
		Str("entry_id", entry.ID).
		Int("attempt", entry.Attempts+1).
		Msg("Outbox retry: publish failed")
	metrics.OutboxRetries.WithLabelValues("error").Inc()
	res.Failed++
}
