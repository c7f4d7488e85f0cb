// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/personafeed/internal/config"
	"github.com/tomtom215/personafeed/internal/feed"
	"github.com/tomtom215/personafeed/internal/logging"
	"github.com/tomtom215/personafeed/internal/middleware"
	"github.com/tomtom215/personafeed/internal/models"
	"github.com/tomtom215/personafeed/internal/outbox"
	"github.com/tomtom215/personafeed/internal/validation"
	ws "github.com/tomtom215/personafeed/internal/websocket"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// FeedService is the part of feed.Engine the handlers use.
type FeedService interface {
	GetFeed(ctx context.Context, userID string, limit int, cursor string) (*feed.Page, error)
	GenerateFeed(ctx context.Context, userID string, opts feed.GenerateOptions) (*feed.GenerateResult, error)
	Status(ctx context.Context, userID string) (*feed.Status, error)
	GetPreferences(ctx context.Context, userID string) (*feed.Preferences, error)
	UpdatePreferences(ctx context.Context, p *feed.Preferences) (*feed.Preferences, error)
	DeleteUser(ctx context.Context, userID string) error
	TrackInteractionByName(ctx context.Context, itemID, name string) (*feed.FeedItem, bool, error)
	BreakerStates() map[feed.Source]string
}

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RecordCounter is implemented by stores that report table sizes. The
// detailed health endpoint includes them when DB implements it.
type RecordCounter interface {
	RecordCounts(ctx context.Context) (map[string]int64, error)
}

// EventsStatus exposes the event pipeline to the health endpoint.
type EventsStatus interface {
	Transport() string
	PublisherBreaker() string
	OutboxStats() outbox.Stats
	ConsumerStats() (processed, duplicates int64)
}

// Deps bundles the handler dependencies. Engine, DB and Config are
// required; the rest are optional.
type Deps struct {
	Engine  FeedService
	DB      Pinger
	Config  *config.Config
	Hub     *ws.Hub
	Events  EventsStatus
	Stats   *middleware.RouteStats
	Version string
}

// Handler serves the feed API.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, feed endpoints
//   - handlers_interactions.go: interaction tracking
//   - handlers_health.go: health and readiness
//   - handlers_websocket.go: WebSocket upgrade
type Handler struct {
	engine    FeedService
	db        Pinger
	config    *config.Config
	wsHub     *ws.Hub
	events    EventsStatus
	stats     *middleware.RouteStats
	version   string
	startTime time.Time
}

// NewHandler creates the API handler.
//
//	handler := api.NewHandler(api.Deps{Engine: engine, DB: db, Config: cfg, Hub: hub})
//	router := api.NewRouter(handler, cfg)
//	srv := &http.Server{Handler: router.Setup()}
//
//nolint:gocritic // hugeParam: deps copied once at startup
func NewHandler(deps Deps) *Handler {
	stats := deps.Stats
	if stats == nil {
		stats = middleware.NewRouteStats(512, time.Second)
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	return &Handler{
		engine:    deps.Engine,
		db:        deps.DB,
		config:    deps.Config,
		wsHub:     deps.Hub,
		events:    deps.Events,
		stats:     stats,
		version:   version,
		startTime: time.Now(),
	}
}

// GetFeed returns one page of the user's feed.
//
// A user without a feed gets an empty page in state "generating" while the
// first run starts in the background. Pass metadata.next_cursor as ?cursor=
// to continue reading the same snapshot.
func (h *Handler) GetFeed(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req := FeedPageRequest{
		UserID: chi.URLParam(r, "userID"),
		Limit:  getIntParam(r, "limit", 0),
		Cursor: r.URL.Query().Get("cursor"),
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, r, verr)
		return
	}

	page, err := h.engine.GetFeed(r.Context(), req.UserID, req.Limit, req.Cursor)
	if err != nil {
		respondFeedError(w, err)
		return
	}
	respondPage(w, r, page, page.NextCursor, start)
}

// GenerateFeed runs generation and returns the new feed.
//
// The body is optional. A run already in flight for the user is joined, or,
// when the service rejects concurrent runs, answered with 202 and state
// "generating".
func (h *Handler) GenerateFeed(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID := chi.URLParam(r, "userID")

	var req GenerateFeedRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, r, verr)
		return
	}

	res, err := h.engine.GenerateFeed(r.Context(), userID, feed.GenerateOptions{
		RefreshExisting: req.RefreshExisting,
		Categories:      req.Categories,
	})
	if errors.Is(err, feed.ErrGenerationInProgress) {
		w.Header().Set("Retry-After", retryAfterSeconds)
		respondSuccess(w, r, http.StatusAccepted, map[string]string{
			"user_id": userID,
			"state":   feed.StateGenerating.String(),
		}, start)
		return
	}
	if err != nil {
		respondFeedError(w, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, res, start)
}

// FeedStatus reports the lifecycle state of the user's feed.
func (h *Handler) FeedStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	st, err := h.engine.Status(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondFeedError(w, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, newStatusResponse(st), start)
}

// GetPreferences returns the user's preferences, creating defaults on first
// access.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	prefs, err := h.engine.GetPreferences(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondFeedError(w, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, newPreferencesResponse(prefs), start)
}

// UpdatePreferences overlays the request onto the stored preferences.
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID := chi.URLParam(r, "userID")

	var req UpdatePreferencesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, r, verr)
		return
	}

	current, err := h.engine.GetPreferences(r.Context(), userID)
	if err != nil {
		respondFeedError(w, err)
		return
	}
	req.apply(current)

	stored, err := h.engine.UpdatePreferences(r.Context(), current)
	if err != nil {
		respondFeedError(w, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, newPreferencesResponse(stored), start)
}

// DeleteUser removes every feed record of the user. It is called by the
// user service when an account is deleted.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID := chi.URLParam(r, "userID")
	if err := h.engine.DeleteUser(r.Context(), userID); err != nil {
		respondFeedError(w, err)
		return
	}
	logging.Ctx(r.Context()).Info().Str("user_id", sanitizeLogValue(userID)).Msg("User feed data deleted")
	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"deleted": true,
	}, start)
}

func respondValidationError(w http.ResponseWriter, r *http.Request, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	respondAPIError(w, r, http.StatusBadRequest, &models.APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	})
}

// decodeBody decodes a required JSON body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "Request body is required", nil)
			return false
		}
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body", err)
		return false
	}
	return true
}

// decodeOptionalBody is decodeBody that accepts an empty body.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body", err)
		return false
	}
	return true
}

// getIntParam returns the query parameter as int, or defaultValue when it is
// missing or malformed.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}
