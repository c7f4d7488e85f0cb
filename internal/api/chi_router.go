// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/personafeed/internal/config"
	"github.com/tomtom215/personafeed/internal/middleware"
)

// Router wires the handler into a chi route tree.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. cfg may be nil in tests.
func NewRouter(handler *Handler, cfg *config.Config) *Router {
	var sec *config.SecurityConfig
	if cfg != nil {
		sec = &cfg.Security
	}
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(NewChiMiddlewareConfig(sec)),
	}
}

// Setup builds the route tree.
func (router *Router) Setup() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	// Global middleware, in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Use(h.stats.Middleware)

		// Hijacked connections must not pass through the gzip writer.
		r.Get("/ws", h.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Compression)

			r.Route("/users/{userID}", func(r chi.Router) {
				r.Delete("/", h.DeleteUser)
				r.Get("/feed", h.GetFeed)
				r.With(router.chiMiddleware.RateLimitGenerate()).Post("/feed/generate", h.GenerateFeed)
				r.Get("/feed/status", h.FeedStatus)
				r.Get("/feed/preferences", h.GetPreferences)
				r.Put("/feed/preferences", h.UpdatePreferences)
			})

			r.Post("/feed/items/{itemID}/interactions", h.TrackInteraction)
		})
	})

	return r
}
