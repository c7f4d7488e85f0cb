// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package feed

import (
	"fmt"
	"strings"
	"time"
)

// Normalization selects how raw source scores are mapped to [0,1].
type Normalization int

const (
	// NormalizeMinMax maps the lowest raw score of a source batch to 0 and the
	// highest to 1. A batch whose scores are all equal maps to 1.
	NormalizeMinMax Normalization = iota

	// NormalizeRank ignores magnitudes and scores by position within the
	// source batch: 1 for the best, decreasing linearly toward 1/n.
	NormalizeRank
)

func (n Normalization) String() string {
	if n == NormalizeRank {
		return "rank"
	}
	return "minmax"
}

// ParseNormalization maps a config string to a Normalization.
func ParseNormalization(s string) (Normalization, error) {
	switch strings.ToLower(s) {
	case "", "minmax", "min-max":
		return NormalizeMinMax, nil
	case "rank":
		return NormalizeRank, nil
	}
	return 0, fmt.Errorf("unknown normalization %q", s)
}

// ConcurrencyPolicy decides what a second GenerateFeed call for a user with a
// run in flight gets.
type ConcurrencyPolicy int

const (
	// ConcurrencyJoin makes the caller wait for and share the in-flight result.
	ConcurrencyJoin ConcurrencyPolicy = iota

	// ConcurrencyReject returns ErrGenerationInProgress immediately.
	ConcurrencyReject
)

func (p ConcurrencyPolicy) String() string {
	if p == ConcurrencyReject {
		return "reject"
	}
	return "join"
}

// ParseConcurrencyPolicy maps a config string to a ConcurrencyPolicy.
func ParseConcurrencyPolicy(s string) (ConcurrencyPolicy, error) {
	switch strings.ToLower(s) {
	case "", "join":
		return ConcurrencyJoin, nil
	case "reject":
		return ConcurrencyReject, nil
	}
	return 0, fmt.Errorf("unknown concurrency policy %q", s)
}

// Config contains engine-wide settings. Per-user knobs live in Preferences.
type Config struct {
	// DefaultMaxItems seeds Preferences.MaxItems for new users.
	DefaultMaxItems int

	// DefaultRefreshInterval seeds Preferences.RefreshInterval for new users.
	DefaultRefreshInterval time.Duration

	// PerSourceMultiplier sets each source's fetch limit to MaxItems times this.
	PerSourceMultiplier int

	// SourceTimeout bounds a single source fetch.
	SourceTimeout time.Duration

	// GenerationTimeout bounds background runs (refreshes triggered by reads).
	GenerationTimeout time.Duration

	// DismissCooldown is how long a dismissed persona or creator stays out of
	// newly generated feeds.
	DismissCooldown time.Duration

	Normalization     Normalization
	ConcurrencyPolicy ConcurrencyPolicy

	// PreferredCategoryBoost multiplies relevance for preferred categories
	// before clamping. 1.0 disables the boost.
	PreferredCategoryBoost float64

	// TrendingFallback serves trending-only feeds to users who disabled every
	// source. When false those users get an empty Ready feed.
	TrendingFallback bool

	// RetiredRetention is how long replaced snapshots stay readable through
	// old cursors before the janitor prunes them.
	RetiredRetention time.Duration

	DefaultPageSize int
	MaxPageSize     int

	// Breaker configures the per-source circuit breakers.
	Breaker BreakerConfig

	// PreferencesCacheTTL caches preference reads. Zero disables the cache.
	PreferencesCacheTTL time.Duration

	// MaxRestarts caps how often a run restarts after a preference change
	// before handing off to a background run.
	MaxRestarts int
}

// BreakerConfig configures source circuit breakers.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		DefaultMaxItems:        50,
		DefaultRefreshInterval: time.Hour,
		PerSourceMultiplier:    4,
		SourceTimeout:          2 * time.Second,
		GenerationTimeout:      15 * time.Second,
		DismissCooldown:        7 * 24 * time.Hour,
		Normalization:          NormalizeMinMax,
		ConcurrencyPolicy:      ConcurrencyJoin,
		PreferredCategoryBoost: 1.2,
		TrendingFallback:       true,
		RetiredRetention:       30 * time.Minute,
		DefaultPageSize:        20,
		MaxPageSize:            100,
		Breaker: BreakerConfig{
			MaxFailures: 5,
			OpenTimeout: 30 * time.Second,
		},
		PreferencesCacheTTL: time.Minute,
		MaxRestarts:         2,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.DefaultMaxItems < 1 || c.DefaultMaxItems > MaxItemsLimit {
		return fmt.Errorf("default max items must be in [1,%d], got %d", MaxItemsLimit, c.DefaultMaxItems)
	}
	if c.DefaultRefreshInterval < MinRefreshInterval {
		return fmt.Errorf("default refresh interval must be at least %v, got %v", MinRefreshInterval, c.DefaultRefreshInterval)
	}
	if c.PerSourceMultiplier < 1 {
		return fmt.Errorf("per-source multiplier must be at least 1, got %d", c.PerSourceMultiplier)
	}
	if c.SourceTimeout <= 0 {
		return fmt.Errorf("source timeout must be positive, got %v", c.SourceTimeout)
	}
	if c.GenerationTimeout < c.SourceTimeout {
		return fmt.Errorf("generation timeout (%v) must be at least the source timeout (%v)", c.GenerationTimeout, c.SourceTimeout)
	}
	if c.DismissCooldown < 0 {
		return fmt.Errorf("dismiss cooldown must be non-negative, got %v", c.DismissCooldown)
	}
	if c.PreferredCategoryBoost < 1 {
		return fmt.Errorf("preferred category boost must be at least 1, got %f", c.PreferredCategoryBoost)
	}
	if c.RetiredRetention < 0 {
		return fmt.Errorf("retired retention must be non-negative, got %v", c.RetiredRetention)
	}
	if c.DefaultPageSize < 1 || c.MaxPageSize < c.DefaultPageSize {
		return fmt.Errorf("page sizes invalid: default=%d max=%d", c.DefaultPageSize, c.MaxPageSize)
	}
	if c.Breaker.MaxFailures == 0 {
		return fmt.Errorf("breaker max failures must be positive")
	}
	if c.MaxRestarts < 0 {
		return fmt.Errorf("max restarts must be non-negative, got %d", c.MaxRestarts)
	}
	return nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
