// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/personafeed/internal/feed"
	"github.com/tomtom215/personafeed/internal/metrics"
)

// Refresher is the part of feed.Engine the refresh scheduler drives.
type Refresher interface {
	DueForRefresh(ctx context.Context, activeWindow time.Duration, limit int) ([]string, error)
	GenerateFeed(ctx context.Context, userID string, opts feed.GenerateOptions) (*feed.GenerateResult, error)
}

// RefreshServiceConfig holds configuration for the refresh scheduler.
type RefreshServiceConfig struct {
	// Interval is how often the scheduler looks for stale feeds.
	Interval time.Duration

	// ActiveWindow limits refreshes to users who read their feed recently.
	ActiveWindow time.Duration

	// BatchSize caps the users refreshed per tick.
	BatchSize int

	// RatePerSecond paces generation runs within a tick.
	RatePerSecond float64
}

// RefreshStats summarizes one scheduler tick.
type RefreshStats struct {
	Due       int
	Refreshed int
	Skipped   int
	Failed    int
}

// RefreshService regenerates feeds whose refresh interval has elapsed,
// for users active within the configured window. Runs are paced by a
// token bucket so a large backlog does not starve interactive requests.
type RefreshService struct {
	engine  Refresher
	config  RefreshServiceConfig
	limiter *rate.Limiter
	logger  zerolog.Logger
	name    string
}

// NewRefreshService creates the scheduler.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRefreshService(engine Refresher, cfg RefreshServiceConfig, logger zerolog.Logger) *RefreshService {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.ActiveWindow <= 0 {
		cfg.ActiveWindow = 7 * 24 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	return &RefreshService{
		engine:  engine,
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		logger:  logger.With().Str("service", "refresh").Logger(),
		name:    "refresh-scheduler",
	}
}

// Serve implements suture.Service.
func (s *RefreshService) Serve(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.config.Interval).
		Dur("active_window", s.config.ActiveWindow).
		Int("batch_size", s.config.BatchSize).
		Float64("rate_per_second", s.config.RatePerSecond).
		Msg("refresh scheduler starting")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("refresh scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("refresh tick failed")
			}
		}
	}
}

// RunOnce refreshes one batch of due feeds. A run already in flight for a
// user counts as skipped.
func (s *RefreshService) RunOnce(ctx context.Context) (RefreshStats, error) {
	var stats RefreshStats
	users, err := s.engine.DueForRefresh(ctx, s.config.ActiveWindow, s.config.BatchSize)
	if err != nil {
		return stats, err
	}
	stats.Due = len(users)

	start := time.Now()
	for _, userID := range users {
		if err := s.limiter.Wait(ctx); err != nil {
			return stats, err
		}
		_, err := s.engine.GenerateFeed(ctx, userID, feed.GenerateOptions{RefreshExisting: true})
		switch {
		case err == nil:
			stats.Refreshed++
			metrics.RecordBackgroundRefresh("refreshed")
		case errors.Is(err, feed.ErrGenerationInProgress), errors.Is(err, feed.ErrUserDeleted):
			stats.Skipped++
			metrics.RecordBackgroundRefresh("skipped")
		default:
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.Failed++
			metrics.RecordBackgroundRefresh("failed")
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("background refresh failed")
		}
	}

	if stats.Due > 0 {
		s.logger.Debug().
			Int("due", stats.Due).
			Int("refreshed", stats.Refreshed).
			Int("skipped", stats.Skipped).
			Int("failed", stats.Failed).
			Dur("duration", time.Since(start)).
			Msg("refresh tick complete")
	}
	return stats, nil
}

// String implements fmt.Stringer for suture's logs.
func (s *RefreshService) String() string {
	return s.name
}
