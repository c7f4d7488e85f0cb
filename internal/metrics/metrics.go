// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Feed generation
	FeedGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "personafeed_generation_duration_seconds",
			Help:    "Duration of feed generation runs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"}, // "persisted", "empty", "discarded", "failed"
	)

	FeedGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personafeed_generations_total",
			Help: "Feed generation runs by outcome",
		},
		[]string{"outcome"},
	)

	FeedConcurrentGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personafeed_concurrent_generation_requests_total",
			Help: "Generation requests that found a run already in flight",
		},
		[]string{"resolution"}, // "joined" or "rejected"
	)

	FeedItemsGenerated = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "personafeed_items_per_feed",
			Help:    "Number of items persisted per feed snapshot",
			Buckets: []float64{0, 5, 10, 20, 50, 100, 200},
		},
	)

	FeedGenerationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "personafeed_generations_in_flight",
			Help: "Feed generation runs currently executing",
		},
	)

	// Candidate sources
	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "personafeed_source_fetch_duration_seconds",
			Help:    "Latency of candidate source fetches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	SourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personafeed_source_failures_total",
			Help: "Candidate source fetches that failed, timed out or were short-circuited",
		},
		[]string{"source", "reason"}, // reason: "error", "timeout", "circuit_open"
	)

	SourceCandidates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personafeed_source_candidates_total",
			Help: "Candidates returned by each source",
		},
		[]string{"source"},
	)

	CandidatesFiltered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personafeed_candidates_filtered_total",
			Help: "Candidates excluded before scoring",
		},
		[]string{"reason"},
	)

	// Reads and interactions
	FeedReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personafeed_reads_total",
			Help: "Feed page reads by state served",
		},
		[]string{"state"},
	)

	InteractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personafeed_interactions_total",
			Help: "Interactions recorded on feed items",
		},
		[]string{"type", "first"}, // first: "true" for a new flag, "false" for an idempotent repeat
	)

	PreferencesCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "personafeed_preferences_cache_hits_total",
			Help: "Preference lookups served from the cache",
		},
	)

	PreferencesCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "personafeed_preferences_cache_misses_total",
			Help: "Preference lookups that went to the database",
		},
	)

	RetiredItemsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "personafeed_retired_items_pruned_total",
			Help: "Retired feed items removed by the janitor",
		},
	)

	BackgroundRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personafeed_background_refreshes_total",
			Help: "Scheduled feed refreshes by outcome",
		},
		[]string{"outcome"}, // refreshed, skipped, failed
	)

	// Events
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personafeed_events_published_total",
			Help: "Events published to the message bus",
		},
		[]string{"topic", "status"}, // status: "ok", "error", "circuit_open"
	)

	EventsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "personafeed_events_deduplicated_total",
			Help: "Interaction events suppressed as duplicates",
		},
	)

	OutboxPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "personafeed_outbox_pending",
			Help: "Events written to the outbox but not yet confirmed",
		},
	)

	OutboxRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personafeed_outbox_retries_total",
			Help: "Outbox redelivery attempts",
		},
		[]string{"result"}, // "ok", "error", "expired"
	)

	// HTTP and WebSocket
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personafeed_api_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "personafeed_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "personafeed_websocket_connections",
			Help: "Open WebSocket connections",
		},
	)

	WSNotifications = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "personafeed_websocket_notifications_total",
			Help: "feed_ready notifications delivered to clients",
		},
	)
)

// RecordBackgroundRefresh counts one scheduled refresh.
func RecordBackgroundRefresh(outcome string) {
	BackgroundRefreshes.WithLabelValues(outcome).Inc()
}

// RecordGeneration records the end of a generation run.
func RecordGeneration(outcome string, duration time.Duration, items int) {
	FeedGenerationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	FeedGenerationsTotal.WithLabelValues(outcome).Inc()
	if outcome == "persisted" || outcome == "empty" {
		FeedItemsGenerated.Observe(float64(items))
	}
}

// RecordConcurrentGeneration counts a request that hit an in-flight run.
func RecordConcurrentGeneration(joined bool) {
	if joined {
		FeedConcurrentGenerations.WithLabelValues("joined").Inc()
		return
	}
	FeedConcurrentGenerations.WithLabelValues("rejected").Inc()
}

// RecordSourceFetch records a source call. reason is empty on success.
func RecordSourceFetch(source string, duration time.Duration, candidates int, reason string) {
	SourceFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
	if reason != "" {
		SourceFailures.WithLabelValues(source, reason).Inc()
		return
	}
	SourceCandidates.WithLabelValues(source).Add(float64(candidates))
}

// RecordFiltered adds n excluded candidates under reason.
func RecordFiltered(reason string, n int) {
	if n > 0 {
		CandidatesFiltered.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordFeedRead counts a page read.
func RecordFeedRead(state string) {
	FeedReads.WithLabelValues(state).Inc()
}

// RecordInteraction counts an interaction.
func RecordInteraction(kind string, first bool) {
	InteractionsTotal.WithLabelValues(kind, strconv.FormatBool(first)).Inc()
}

// RecordPreferencesCache counts a preferences cache lookup.
func RecordPreferencesCache(hit bool) {
	if hit {
		PreferencesCacheHits.Inc()
	} else {
		PreferencesCacheMisses.Inc()
	}
}

// RecordEventPublish counts a publish attempt.
func RecordEventPublish(topic, status string) {
	EventsPublished.WithLabelValues(topic, status).Inc()
}

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
