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

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// duplicateWindow is how long JetStream remembers Nats-Msg-Id values.
const duplicateWindow = 2 * time.Minute

// StreamManager is the subset of jetstream.JetStream used by EnsureStream.
type StreamManager interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// streamConfig builds the JetStream stream for cfg.
//
//nolint:gocritic // hugeParam: cfg passed by value for immutability
func streamConfig(cfg Config) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:       cfg.StreamName,
		Subjects:   cfg.subjects(),
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     7 * 24 * time.Hour,
		Duplicates: duplicateWindow,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
	}
}

// EnsureStream creates the stream or updates it to the current settings.
// It is idempotent.
//
//nolint:gocritic // hugeParam: cfg passed by value for immutability
func EnsureStream(ctx context.Context, js StreamManager, cfg Config) error {
	sc := streamConfig(cfg)

	_, err := js.Stream(ctx, sc.Name)
	switch {
	case err == nil:
		if _, err := js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream %s: %w", sc.Name, err)
		}
		return nil
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream %s: %w", sc.Name, err)
		}
		return nil
	default:
		return fmt.Errorf("check stream %s: %w", sc.Name, err)
	}
}

// ensureStreamAt connects to url just long enough to provision the stream.
//
//nolint:gocritic // hugeParam: cfg passed by value for immutability
func ensureStreamAt(ctx context.Context, url string, cfg Config) error {
	nc, err := natsgo.Connect(url, natsgo.Name("personafeed-provisioner"))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	return EnsureStream(ctx, js, cfg)
}
