// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package middleware

import (
	"net/http"
	"sort"
	"sync"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tomtom215/personafeed/internal/logging"
)

// RouteStat summarizes recent latencies of one route.
type RouteStat struct {
	Route        string `json:"route"`
	RequestCount int64  `json:"request_count"`
	ErrorCount   int64  `json:"error_count"`
	P50Ms        int64  `json:"p50_ms"`
	P95Ms        int64  `json:"p95_ms"`
	P99Ms        int64  `json:"p99_ms"`
	MaxMs        int64  `json:"max_ms"`
}

type routeWindow struct {
	samples []int64 // ring of durations in ms
	next    int
	total   int64
	errors  int64
}

// RouteStats keeps a bounded latency window per route and logs slow
// requests.
type RouteStats struct {
	mu     sync.Mutex
	routes map[string]*routeWindow
	window int
	slow   time.Duration
}

// NewRouteStats keeps the last window samples per route. Requests slower than
// slow are logged; zero disables slow logging.
func NewRouteStats(window int, slow time.Duration) *RouteStats {
	if window <= 0 {
		window = 512
	}
	return &RouteStats{
		routes: make(map[string]*routeWindow),
		window: window,
		slow:   slow,
	}
}

// Record adds one observation.
func (s *RouteStats) Record(route string, d time.Duration, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.routes[route]
	if !ok {
		w = &routeWindow{samples: make([]int64, 0, s.window)}
		s.routes[route] = w
	}
	ms := d.Milliseconds()
	if len(w.samples) < s.window {
		w.samples = append(w.samples, ms)
	} else {
		w.samples[w.next] = ms
		w.next = (w.next + 1) % s.window
	}
	w.total++
	if status >= http.StatusInternalServerError {
		w.errors++
	}
}

// Snapshot returns stats for every route, busiest first.
func (s *RouteStats) Snapshot() []RouteStat {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RouteStat, 0, len(s.routes))
	for route, w := range s.routes {
		sorted := make([]int64, len(w.samples))
		copy(sorted, w.samples)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		st := RouteStat{
			Route:        route,
			RequestCount: w.total,
			ErrorCount:   w.errors,
			P50Ms:        percentile(sorted, 0.50),
			P95Ms:        percentile(sorted, 0.95),
			P99Ms:        percentile(sorted, 0.99),
		}
		if len(sorted) > 0 {
			st.MaxMs = sorted[len(sorted)-1]
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestCount != out[j].RequestCount {
			return out[i].RequestCount > out[j].RequestCount
		}
		return out[i].Route < out[j].Route
	})
	return out
}

// Middleware records every request under its chi route pattern.
func (s *RouteStats) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		d := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := RoutePattern(r)
		s.Record(route, d, status)

		if s.slow > 0 && d > s.slow {
			logging.Ctx(r.Context()).Warn().
				Str("method", r.Method).
				Str("route", route).
				Int64("duration_ms", d.Milliseconds()).
				Msg("Slow request detected")
		}
	})
}

func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(float64(len(sorted)-1)*p)]
}
