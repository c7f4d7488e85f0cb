// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package main

import (
	"fmt"

	"github.com/tomtom215/personafeed/internal/config"
	"github.com/tomtom215/personafeed/internal/events"
	"github.com/tomtom215/personafeed/internal/feed"
	"github.com/tomtom215/personafeed/internal/feed/sources"
	"github.com/tomtom215/personafeed/internal/outbox"
	"github.com/tomtom215/personafeed/internal/supervisor/services"
)

// feedConfig converts the koanf feed section into the engine config.
func feedConfig(c *config.FeedConfig) (*feed.Config, error) {
	norm, err := feed.ParseNormalization(c.Normalization)
	if err != nil {
		return nil, err
	}
	policy, err := feed.ParseConcurrencyPolicy(c.ConcurrencyPolicy)
	if err != nil {
		return nil, err
	}

	fc := feed.DefaultConfig()
	fc.DefaultMaxItems = c.DefaultMaxItems
	fc.DefaultRefreshInterval = c.DefaultRefreshInterval
	fc.PerSourceMultiplier = c.PerSourceMultiplier
	fc.SourceTimeout = c.SourceTimeout
	fc.GenerationTimeout = c.GenerationTimeout
	fc.DismissCooldown = c.DismissCooldown
	fc.Normalization = norm
	fc.ConcurrencyPolicy = policy
	fc.PreferredCategoryBoost = c.PreferredCategoryBoost
	fc.TrendingFallback = c.TrendingFallback
	fc.RetiredRetention = c.RetiredRetention
	fc.DefaultPageSize = c.DefaultPageSize
	fc.MaxPageSize = c.MaxPageSize
	fc.Breaker = feed.BreakerConfig{
		MaxFailures: c.BreakerMaxFailures,
		OpenTimeout: c.BreakerOpenTimeout,
	}
	fc.PreferencesCacheTTL = c.PreferencesCacheTTL

	if err := fc.Validate(); err != nil {
		return nil, fmt.Errorf("feed config: %w", err)
	}
	return fc, nil
}

func sourcesConfig(c *config.SourcesConfig) sources.Config {
	return sources.Config{
		SocialWindow:     c.SocialWindow,
		NewCreatorWindow: c.NewCreatorWindow,
		ReviewMinRating:  c.ReviewMinRating,
	}
}

// eventsConfig merges the events section with the dedup and breaker
// settings that live under feed.
func eventsConfig(cfg *config.Config) events.Config {
	ec := events.DefaultConfig()
	ec.Transport = cfg.Events.Transport
	ec.NATSURL = cfg.Events.NATSURL
	ec.EmbeddedServer = cfg.Events.EmbeddedServer
	ec.StoreDir = cfg.Events.StoreDir
	ec.MaxMemory = cfg.Events.MaxMemory
	ec.MaxStore = cfg.Events.MaxStore
	ec.StreamName = cfg.Events.StreamName
	ec.InteractionTopic = cfg.Events.InteractionTopic
	ec.FeedTopic = cfg.Events.FeedTopic
	ec.PublishTimeout = cfg.Events.PublishTimeout
	ec.DedupWindow = cfg.Feed.EventDedupWindow
	ec.DedupCapacity = cfg.Feed.EventDedupCapacity
	ec.BreakerMaxFailures = cfg.Feed.BreakerMaxFailures
	ec.BreakerOpenTimeout = cfg.Feed.BreakerOpenTimeout
	return ec
}

func outboxConfig(c *config.OutboxConfig) outbox.Config {
	oc := outbox.DefaultConfig()
	oc.Path = c.Path
	oc.InMemory = c.InMemory
	oc.RetryInterval = c.RetryInterval
	oc.MaxRetries = c.MaxRetries
	oc.BackoffBase = c.BackoffBase
	oc.Retention = c.Retention
	return oc
}

func refreshConfig(c *config.RefreshConfig) services.RefreshServiceConfig {
	return services.RefreshServiceConfig{
		Interval:      c.Interval,
		ActiveWindow:  c.ActiveWindow,
		BatchSize:     c.BatchSize,
		RatePerSecond: c.RatePerSecond,
	}
}
