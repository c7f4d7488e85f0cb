// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package outbox

import (
	"errors"
	"time"
)

// Config configures the outbox store and its retry loop.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the outbox in memory only. Used in tests and in
	// development when durability is not needed.
	InMemory bool

	// SyncWrites forces an fsync on every write.
	SyncWrites bool

	// RetryInterval is how often the retry loop scans pending entries.
	RetryInterval time.Duration

	// MaxRetries is the number of publish attempts before an entry is
	// dead-lettered.
	MaxRetries int

	// BackoffBase is the delay after the first failed attempt. It doubles
	// per attempt up to maxBackoff.
	BackoffBase time.Duration

	// Retention is how long confirmed entries are kept.
	Retention time.Duration
}

const maxBackoff = 15 * time.Minute

// DefaultConfig returns the outbox defaults.
func DefaultConfig() Config {
	return Config{
		Path:          "/data/outbox",
		SyncWrites:    true,
		RetryInterval: 30 * time.Second,
		MaxRetries:    50,
		BackoffBase:   5 * time.Second,
		Retention:     24 * time.Hour,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return errors.New("outbox path is required unless in_memory is set")
	}
	if c.RetryInterval <= 0 {
		return errors.New("outbox retry interval must be positive")
	}
	if c.MaxRetries < 1 {
		return errors.New("outbox max retries must be at least 1")
	}
	if c.BackoffBase <= 0 {
		return errors.New("outbox backoff base must be positive")
	}
	if c.Retention < 0 {
		return errors.New("outbox retention must not be negative")
	}
	return nil
}

// backoff returns the wait after the given number of failed attempts.
func (c *Config) backoff(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	d := c.BackoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
