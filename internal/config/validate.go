// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package config

import (
	"fmt"
	"strings"
)

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateFeed,
		c.validateSources,
		c.validateRefresh,
		c.validateEvents,
		c.validateOutbox,
		c.validateSecurity,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", c.Server.Timeout)
	}
	switch c.Server.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be development or production, got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must be non-negative, got %d", c.Database.Threads)
	}
	return nil
}

func (c *Config) validateSources() error {
	if c.Sources.SocialWindow <= 0 {
		return fmt.Errorf("SOURCE_SOCIAL_WINDOW must be positive, got %v", c.Sources.SocialWindow)
	}
	if c.Sources.NewCreatorWindow <= 0 {
		return fmt.Errorf("SOURCE_NEW_CREATOR_WINDOW must be positive, got %v", c.Sources.NewCreatorWindow)
	}
	if c.Sources.ReviewMinRating < 0 || c.Sources.ReviewMinRating > 5 {
		return fmt.Errorf("SOURCE_REVIEW_MIN_RATING must be in [0,5], got %f", c.Sources.ReviewMinRating)
	}
	return nil
}

func (c *Config) validateFeed() error {
	f := &c.Feed
	if f.DefaultMaxItems < 1 {
		return fmt.Errorf("FEED_DEFAULT_MAX_ITEMS must be at least 1, got %d", f.DefaultMaxItems)
	}
	if f.PerSourceMultiplier < 1 {
		return fmt.Errorf("FEED_SOURCE_MULTIPLIER must be at least 1, got %d", f.PerSourceMultiplier)
	}
	if f.SourceTimeout <= 0 || f.GenerationTimeout <= 0 {
		return fmt.Errorf("feed source and generation timeouts must be positive")
	}
	if f.SourceTimeout > f.GenerationTimeout {
		return fmt.Errorf("FEED_SOURCE_TIMEOUT (%v) must not exceed FEED_GENERATION_TIMEOUT (%v)",
			f.SourceTimeout, f.GenerationTimeout)
	}
	if f.DismissCooldown < 0 {
		return fmt.Errorf("FEED_DISMISS_COOLDOWN must be non-negative, got %v", f.DismissCooldown)
	}
	switch f.Normalization {
	case "minmax", "rank":
	default:
		return fmt.Errorf("FEED_NORMALIZATION must be minmax or rank, got %q", f.Normalization)
	}
	switch f.ConcurrencyPolicy {
	case "join", "reject":
	default:
		return fmt.Errorf("FEED_CONCURRENCY_POLICY must be join or reject, got %q", f.ConcurrencyPolicy)
	}
	if f.PreferredCategoryBoost < 1 {
		return fmt.Errorf("FEED_CATEGORY_BOOST must be at least 1.0, got %f", f.PreferredCategoryBoost)
	}
	if f.DefaultPageSize < 1 || f.MaxPageSize < f.DefaultPageSize {
		return fmt.Errorf("feed page sizes invalid: default=%d max=%d", f.DefaultPageSize, f.MaxPageSize)
	}
	return nil
}

func (c *Config) validateRefresh() error {
	if !c.Refresh.Enabled {
		return nil
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive, got %v", c.Refresh.Interval)
	}
	if c.Refresh.RatePerSecond <= 0 {
		return fmt.Errorf("REFRESH_RATE_PER_SECOND must be positive, got %f", c.Refresh.RatePerSecond)
	}
	if c.Refresh.BatchSize < 1 {
		return fmt.Errorf("REFRESH_BATCH_SIZE must be at least 1, got %d", c.Refresh.BatchSize)
	}
	return nil
}

func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	switch c.Events.Transport {
	case "gochannel":
	case "nats":
		if c.Events.NATSURL == "" && !c.Events.EmbeddedServer {
			return fmt.Errorf("NATS_URL is required when EVENTS_TRANSPORT=nats without an embedded server")
		}
	default:
		return fmt.Errorf("EVENTS_TRANSPORT must be gochannel or nats, got %q", c.Events.Transport)
	}
	if c.Events.InteractionTopic == "" || c.Events.FeedTopic == "" {
		return fmt.Errorf("event topics must not be empty")
	}
	return nil
}

func (c *Config) validateOutbox() error {
	if !c.Events.Enabled {
		return nil
	}
	if !c.Outbox.InMemory && c.Outbox.Path == "" {
		return fmt.Errorf("OUTBOX_PATH is required unless OUTBOX_IN_MEMORY=true")
	}
	if c.Outbox.RetryInterval <= 0 {
		return fmt.Errorf("OUTBOX_RETRY_INTERVAL must be positive, got %v", c.Outbox.RetryInterval)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Security.RateLimitReqs)
	}
	if c.IsProduction() {
		for _, o := range c.Security.CORSOrigins {
			if o == "*" {
				return fmt.Errorf("CORS_ORIGINS must not contain * in production")
			}
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL invalid: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
