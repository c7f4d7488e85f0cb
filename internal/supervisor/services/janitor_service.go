// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Pruner deletes retired feed snapshots past their retention.
type Pruner interface {
	PruneRetired(ctx context.Context) (int64, error)
}

// JanitorService prunes retired feed items on a fixed interval. Retired
// snapshots are kept for a while so open cursors can finish paging.
type JanitorService struct {
	pruner   Pruner
	interval time.Duration
	logger   zerolog.Logger
	name     string
}

// NewJanitorService creates the janitor. A non-positive interval means 5m.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewJanitorService(pruner Pruner, interval time.Duration, logger zerolog.Logger) *JanitorService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &JanitorService{
		pruner:   pruner,
		interval: interval,
		logger:   logger.With().Str("service", "janitor").Logger(),
		name:     "feed-janitor",
	}
}

// Serve implements suture.Service. A failed prune is logged and retried on
// the next tick.
func (j *JanitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := j.pruner.PruneRetired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				j.logger.Warn().Err(err).Msg("prune retired feed items failed")
				continue
			}
			if n > 0 {
				j.logger.Info().Int64("items", n).Msg("pruned retired feed items")
			}
		}
	}
}

// String implements fmt.Stringer for suture's logs.
func (j *JanitorService) String() string {
	return j.name
}
