// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/personafeed/config.yaml",
	"/etc/personafeed/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8470,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
		},
		Database: DatabaseConfig{
			Path:      "/data/personafeed.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Feed: FeedConfig{
			DefaultMaxItems:        50,
			DefaultRefreshInterval: time.Hour,
			PerSourceMultiplier:    4,
			SourceTimeout:          2 * time.Second,
			GenerationTimeout:      15 * time.Second,
			DismissCooldown:        7 * 24 * time.Hour,
			Normalization:          "minmax",
			ConcurrencyPolicy:      "join",
			PreferredCategoryBoost: 1.2,
			TrendingFallback:       true,
			RetiredRetention:       30 * time.Minute,
			DefaultPageSize:        20,
			MaxPageSize:            100,
			BreakerMaxFailures:     5,
			BreakerOpenTimeout:     30 * time.Second,
			PreferencesCacheTTL:    time.Minute,
			EventDedupWindow:       10 * time.Minute,
			EventDedupCapacity:     50000,
		},
		Sources: SourcesConfig{
			SocialWindow:     14 * 24 * time.Hour,
			NewCreatorWindow: 30 * 24 * time.Hour,
			ReviewMinRating:  4,
		},
		Refresh: RefreshConfig{
			Enabled:         true,
			Interval:        5 * time.Minute,
			ActiveWindow:    24 * time.Hour,
			BatchSize:       200,
			RatePerSecond:   10,
			JanitorInterval: 5 * time.Minute,
		},
		Events: EventsConfig{
			Enabled:          true,
			Transport:        "gochannel",
			NATSURL:          "nats://127.0.0.1:4222",
			EmbeddedServer:   false,
			StoreDir:         "/data/nats/jetstream",
			MaxMemory:        256 << 20,
			MaxStore:         2 << 30,
			StreamName:       "PERSONAFEED",
			InteractionTopic: "feed.interactions",
			FeedTopic:        "feed.generated",
			PublishTimeout:   5 * time.Second,
		},
		Outbox: OutboxConfig{
			Path:          "/data/outbox",
			InMemory:      false,
			RetryInterval: 30 * time.Second,
			MaxRetries:    50,
			BackoffBase:   5 * time.Second,
			Retention:     24 * time.Hour,
		},
		WebSocket: WebSocketConfig{
			Enabled:      true,
			PingInterval: 30 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads defaults, then the optional YAML file, then mapped
// environment variables, and validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths are split on commas when they arrive as a single string.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			continue
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	"http_host":                 "server.host",
	"http_port":                 "server.port",
	"http_timeout":              "server.timeout",
	"shutdown_timeout":          "server.shutdown_timeout",
	"environment":               "server.environment",
	"duckdb_path":               "database.path",
	"duckdb_max_memory":         "database.max_memory",
	"duckdb_threads":            "database.threads",
	"seed_mock_data":            "database.seed_mock_data",
	"feed_default_max_items":    "feed.default_max_items",
	"feed_refresh_interval":     "feed.default_refresh_interval",
	"feed_source_multiplier":    "feed.per_source_multiplier",
	"feed_source_timeout":       "feed.source_timeout",
	"feed_generation_timeout":   "feed.generation_timeout",
	"feed_dismiss_cooldown":     "feed.dismiss_cooldown",
	"feed_normalization":        "feed.normalization",
	"feed_concurrency_policy":   "feed.concurrency_policy",
	"feed_category_boost":       "feed.preferred_category_boost",
	"feed_trending_fallback":    "feed.trending_fallback",
	"feed_retired_retention":    "feed.retired_retention",
	"feed_default_page_size":    "feed.default_page_size",
	"feed_max_page_size":        "feed.max_page_size",
	"feed_breaker_failures":     "feed.breaker_max_failures",
	"feed_breaker_timeout":      "feed.breaker_open_timeout",
	"feed_prefs_cache_ttl":      "feed.preferences_cache_ttl",
	"feed_event_dedup_window":   "feed.event_dedup_window",
	"source_social_window":      "sources.social_window",
	"source_new_creator_window": "sources.new_creator_window",
	"source_review_min_rating":  "sources.review_min_rating",
	"refresh_enabled":           "refresh.enabled",
	"refresh_interval":          "refresh.interval",
	"refresh_active_window":     "refresh.active_window",
	"refresh_batch_size":        "refresh.batch_size",
	"refresh_rate_per_second":   "refresh.rate_per_second",
	"janitor_interval":          "refresh.janitor_interval",
	"events_enabled":            "events.enabled",
	"events_transport":          "events.transport",
	"nats_url":                  "events.nats_url",
	"nats_embedded":             "events.embedded_server",
	"nats_store_dir":            "events.store_dir",
	"nats_max_memory":           "events.max_memory",
	"nats_max_store":            "events.max_store",
	"nats_stream_name":          "events.stream_name",
	"events_publish_timeout":    "events.publish_timeout",
	"outbox_path":               "outbox.path",
	"outbox_in_memory":          "outbox.in_memory",
	"outbox_retry_interval":     "outbox.retry_interval",
	"outbox_max_retries":        "outbox.max_retries",
	"outbox_retention":          "outbox.retention",
	"websocket_enabled":         "websocket.enabled",
	"websocket_ping_interval":   "websocket.ping_interval",
	"cors_origins":              "security.cors_origins",
	"rate_limit_requests":       "security.rate_limit_reqs",
	"rate_limit_window":         "security.rate_limit_window",
	"disable_rate_limit":        "security.rate_limit_disabled",
	"log_level":                 "logging.level",
	"log_format":                "logging.format",
	"log_caller":                "logging.caller",
}

// envTransformFunc returns "" for unmapped keys so stray environment
// variables never leak into the config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
