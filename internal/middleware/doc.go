// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

/*
Package middleware provides the HTTP middleware shared by the API router.

Key Components:

  - RequestID: accepts or generates X-Request-ID and seeds the logging context
  - PrometheusMetrics: request counters and latency histograms keyed by the
    chi route pattern, so /users/{userID}/feed is one series, not one per user
  - Compression: gzip for clients that ask for it (WebSocket upgrades skipped)
  - RouteStats: in-process latency percentiles per route, reported by the
    detailed health endpoint, with slow request logging

Middleware Stack:

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors)
	r.Route("/api/v1", func(r chi.Router) {
	    r.Use(rateLimit)
	    r.Use(middleware.PrometheusMetrics)
	    r.Use(stats.Middleware)
	    r.Use(middleware.Compression)
	    ...
	})

Metrics must run inside the chi router so that the route pattern is resolved
by the time the handler returns.
*/
package middleware
