// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package feed

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/personafeed/internal/metrics"
)

// SourceRequest is what a Provider receives for one run.
type SourceRequest struct {
	UserID      string
	Limit       int
	Preferences *Preferences
	// Categories is the run-level filter; sources may push it down into
	// their queries but the engine filters again regardless.
	Categories []string
}

// Provider produces candidates for one user. Implementations must honor ctx
// cancellation and must not return more than req.Limit candidates.
type Provider interface {
	Name() Source
	Fetch(ctx context.Context, req SourceRequest) ([]Candidate, error)
}

// sourceRunner wraps a Provider with its circuit breaker.
type sourceRunner struct {
	source  Provider
	breaker *gobreaker.CircuitBreaker[[]Candidate]
}

// aggregator fans a run out to every enabled source.
type aggregator struct {
	runners map[Source]*sourceRunner
	timeout time.Duration
	logger  zerolog.Logger
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func newAggregator(sources []Provider, cfg *Config, logger zerolog.Logger) *aggregator {
	a := &aggregator{
		runners: make(map[Source]*sourceRunner, len(sources)),
		timeout: cfg.SourceTimeout,
		logger:  logger,
	}
	for _, s := range sources {
		a.register(s, cfg.Breaker)
	}
	return a
}

func (a *aggregator) register(s Provider, bc BreakerConfig) {
	name := s.Name()
	settings := gobreaker.Settings{
		Name:        "source-" + string(name),
		MaxRequests: 1,
		Timeout:     bc.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bc.MaxFailures
		},
		OnStateChange: func(breaker string, from, to gobreaker.State) {
			a.logger.Warn().
				Str("breaker", breaker).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("source circuit breaker state changed")
		},
		// A cancelled parent context is the caller's doing, not the source's.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	a.runners[name] = &sourceRunner{
		source:  s,
		breaker: gobreaker.NewCircuitBreaker[[]Candidate](settings),
	}
}

// sourceResult is the outcome of one source call.
type sourceResult struct {
	source     Source
	candidates []Candidate
	err        error
}

// collect queries the enabled sources in parallel. Failed, timed-out or
// unregistered sources yield no candidates; their errors are logged and
// wrapped in ErrSourceUnavailable for the per-source stats only.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (a *aggregator) collect(ctx context.Context, enabled []Source, req SourceRequest) ([]Candidate, map[Source]int) {
	results := make([]sourceResult, len(enabled))
	var wg sync.WaitGroup
	for i, name := range enabled {
		runner, ok := a.runners[name]
		if !ok {
			results[i] = sourceResult{source: name}
			continue
		}
		wg.Add(1)
		go func(idx int, r *sourceRunner) {
			defer wg.Done()
			results[idx] = a.fetchOne(ctx, r, req)
		}(i, runner)
	}
	wg.Wait()

	stats := make(map[Source]int, len(enabled))
	var all []Candidate
	for _, res := range results {
		if res.err != nil {
			a.logger.Warn().
				Err(res.err).
				Str("source", string(res.source)).
				Str("user_id", req.UserID).
				Msg("candidate source failed, continuing without it")
			stats[res.source] = 0
			continue
		}
		stats[res.source] = len(res.candidates)
		all = append(all, res.candidates...)
	}
	return all, stats
}

//nolint:gocritic // hugeParam: req passed by value for immutability
func (a *aggregator) fetchOne(ctx context.Context, r *sourceRunner, req SourceRequest) sourceResult {
	name := r.source.Name()
	start := time.Now()

	srcCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cands, err := r.breaker.Execute(func() ([]Candidate, error) {
		out, ferr := r.source.Fetch(srcCtx, req)
		if ferr == nil && srcCtx.Err() != nil {
			ferr = srcCtx.Err()
		}
		return out, ferr
	})
	if err != nil {
		reason := "error"
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			reason = "circuit_open"
		case errors.Is(err, context.DeadlineExceeded):
			reason = "timeout"
		}
		metrics.RecordSourceFetch(string(name), time.Since(start), 0, reason)
		return sourceResult{source: name, err: fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, name, err)}
	}

	// Enforce the source contract: cap and tag. The copy keeps the source's
	// slice untouched.
	if len(cands) > req.Limit {
		cands = cands[:req.Limit]
	}
	cands = slices.Clone(cands)
	for i := range cands {
		cands[i].Source = name
	}
	metrics.RecordSourceFetch(string(name), time.Since(start), len(cands), "")
	return sourceResult{source: name, candidates: cands}
}

// breakerStates reports the state of every source breaker, for health output.
func (a *aggregator) breakerStates() map[Source]string {
	out := make(map[Source]string, len(a.runners))
	for name, r := range a.runners {
		out[name] = r.breaker.State().String()
	}
	return out
}
