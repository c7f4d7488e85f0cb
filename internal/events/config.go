// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package events

import (
	"errors"
	"fmt"
	"time"
)

// Transport names.
const (
	TransportGoChannel = "gochannel"
	TransportNATS      = "nats"
)

// Config configures the event bus.
type Config struct {
	Transport string

	// NATSURL is used when Transport is nats and EmbeddedServer is false.
	NATSURL        string
	EmbeddedServer bool
	StoreDir       string
	MaxMemory      int64
	MaxStore       int64

	StreamName       string
	InteractionTopic string
	FeedTopic        string

	PublishTimeout time.Duration

	// DedupWindow and DedupCapacity bound the consumer's duplicate cache.
	DedupWindow   time.Duration
	DedupCapacity int

	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

// DefaultConfig returns the in-process defaults.
func DefaultConfig() Config {
	return Config{
		Transport:          TransportGoChannel,
		NATSURL:            "nats://127.0.0.1:4222",
		StoreDir:           "/data/nats/jetstream",
		MaxMemory:          256 << 20,
		MaxStore:           2 << 30,
		StreamName:         "PERSONAFEED",
		InteractionTopic:   "feed.interactions",
		FeedTopic:          "feed.generated",
		PublishTimeout:     5 * time.Second,
		DedupWindow:        10 * time.Minute,
		DedupCapacity:      50000,
		BreakerMaxFailures: 5,
		BreakerOpenTimeout: 30 * time.Second,
	}
}

// Validate checks the configuration.
//
//nolint:gocritic // hugeParam: value receiver keeps Config immutable
func (c Config) Validate() error {
	switch c.Transport {
	case TransportGoChannel:
	case TransportNATS:
		if !c.EmbeddedServer && c.NATSURL == "" {
			return errors.New("events: nats_url is required without an embedded server")
		}
		if c.StreamName == "" {
			return errors.New("events: stream_name is required for nats")
		}
	default:
		return fmt.Errorf("events: unknown transport %q", c.Transport)
	}
	if c.InteractionTopic == "" || c.FeedTopic == "" {
		return errors.New("events: interaction_topic and feed_topic are required")
	}
	if c.PublishTimeout <= 0 {
		return errors.New("events: publish_timeout must be positive")
	}
	return nil
}

// subjects returns the JetStream subjects covering both topics.
//
//nolint:gocritic // hugeParam: value receiver keeps Config immutable
func (c Config) subjects() []string {
	if c.InteractionTopic == c.FeedTopic {
		return []string{c.InteractionTopic}
	}
	return []string{c.InteractionTopic, c.FeedTopic}
}
