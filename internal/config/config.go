// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package config

import "time"

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Feed      FeedConfig      `koanf:"feed"`
	Sources   SourcesConfig   `koanf:"sources"`
	Refresh   RefreshConfig   `koanf:"refresh"`
	Events    EventsConfig    `koanf:"events"`
	Outbox    OutboxConfig    `koanf:"outbox"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development or production
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path         string `koanf:"path"` // ":memory:" for an ephemeral database
	MaxMemory    string `koanf:"max_memory"`
	Threads      int    `koanf:"threads"` // 0 = runtime.NumCPU()
	SeedMockData bool   `koanf:"seed_mock_data"`
}

// FeedConfig tunes the feed generation engine.
type FeedConfig struct {
	DefaultMaxItems        int           `koanf:"default_max_items"`
	DefaultRefreshInterval time.Duration `koanf:"default_refresh_interval"`
	PerSourceMultiplier    int           `koanf:"per_source_multiplier"`
	SourceTimeout          time.Duration `koanf:"source_timeout"`
	GenerationTimeout      time.Duration `koanf:"generation_timeout"`
	DismissCooldown        time.Duration `koanf:"dismiss_cooldown"`
	Normalization          string        `koanf:"normalization"`      // minmax or rank
	ConcurrencyPolicy      string        `koanf:"concurrency_policy"` // join or reject
	PreferredCategoryBoost float64       `koanf:"preferred_category_boost"`
	TrendingFallback       bool          `koanf:"trending_fallback"`
	RetiredRetention       time.Duration `koanf:"retired_retention"`
	DefaultPageSize        int           `koanf:"default_page_size"`
	MaxPageSize            int           `koanf:"max_page_size"`
	BreakerMaxFailures     uint32        `koanf:"breaker_max_failures"`
	BreakerOpenTimeout     time.Duration `koanf:"breaker_open_timeout"`
	PreferencesCacheTTL    time.Duration `koanf:"preferences_cache_ttl"`
	EventDedupWindow       time.Duration `koanf:"event_dedup_window"`
	EventDedupCapacity     int           `koanf:"event_dedup_capacity"`
}

// SourcesConfig tunes the built-in candidate sources.
type SourcesConfig struct {
	SocialWindow     time.Duration `koanf:"social_window"`      // followed creators' personas newer than this
	NewCreatorWindow time.Duration `koanf:"new_creator_window"` // creators that joined within this window
	ReviewMinRating  float64       `koanf:"review_min_rating"`  // floor for review highlights
}

// RefreshConfig controls the background services that keep feeds fresh.
type RefreshConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Interval        time.Duration `koanf:"interval"`
	ActiveWindow    time.Duration `koanf:"active_window"` // only users seen within this window are refreshed
	BatchSize       int           `koanf:"batch_size"`
	RatePerSecond   float64       `koanf:"rate_per_second"`
	JanitorInterval time.Duration `koanf:"janitor_interval"`
}

// EventsConfig selects how interaction and generation events are published.
type EventsConfig struct {
	Enabled          bool          `koanf:"enabled"`
	Transport        string        `koanf:"transport"` // gochannel or nats
	NATSURL          string        `koanf:"nats_url"`
	EmbeddedServer   bool          `koanf:"embedded_server"`
	StoreDir         string        `koanf:"store_dir"`
	MaxMemory        int64         `koanf:"max_memory"`
	MaxStore         int64         `koanf:"max_store"`
	StreamName       string        `koanf:"stream_name"`
	InteractionTopic string        `koanf:"interaction_topic"`
	FeedTopic        string        `koanf:"feed_topic"`
	PublishTimeout   time.Duration `koanf:"publish_timeout"`
}

// OutboxConfig configures the durable event outbox.
type OutboxConfig struct {
	Path          string        `koanf:"path"`
	InMemory      bool          `koanf:"in_memory"`
	RetryInterval time.Duration `koanf:"retry_interval"`
	MaxRetries    int           `koanf:"max_retries"`
	BackoffBase   time.Duration `koanf:"backoff_base"`
	Retention     time.Duration `koanf:"retention"`
}

// WebSocketConfig configures the feed_ready push channel.
type WebSocketConfig struct {
	Enabled      bool          `koanf:"enabled"`
	PingInterval time.Duration `koanf:"ping_interval"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// SecurityConfig holds CORS and rate limiting settings.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig mirrors logging.Config for koanf.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the server runs with production checks.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Load is the entry point used by cmd/server.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
