// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/personafeed/internal/logging"
	"github.com/tomtom215/personafeed/internal/middleware"
	"github.com/tomtom215/personafeed/internal/models"
)

// healthCheckTimeout bounds the dependency checks of one probe.
const healthCheckTimeout = 2 * time.Second

// HealthLive answers 200 while the process is running, regardless of
// dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
	})
}

// HealthReady answers 200 only when the database is reachable. Open source
// breakers and a backed up outbox degrade feeds but do not stop traffic, so
// they are reported by Health instead.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.pingDB(r.Context())

	statusCode := http.StatusOK
	status := "ready"
	if !dbConnected {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondJSON(w, statusCode, &models.APIResponse{
		Status: status,
		Data: map[string]interface{}{
			"database_connected": dbConnected,
			"ready_to_serve":     dbConnected,
			"uptime":             time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
	})
}

// DetailedHealth is the payload of GET /api/v1/health.
type DetailedHealth struct {
	models.HealthStatus
	Routes []middleware.RouteStat `json:"routes"`
}

// Health reports database connectivity and table sizes, source breakers, the
// event pipeline and per-route latency.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.pingDB(r.Context())

	breakers := make(map[string]string)
	status := "healthy"
	for src, state := range h.engine.BreakerStates() {
		breakers[string(src)] = state
		if state != "closed" {
			status = "degraded"
		}
	}
	if !dbConnected {
		status = "unhealthy"
	}

	health := models.HealthStatus{
		Status:    status,
		Version:   h.version,
		Database:  dbConnected,
		Breakers:  breakers,
		Uptime:    time.Since(h.startTime).Seconds(),
		Timestamp: time.Now().UTC(),
	}

	if rc, ok := h.db.(RecordCounter); ok && dbConnected {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		counts, err := rc.RecordCounts(ctx)
		cancel()
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to read record counts")
		} else {
			health.Records = counts
		}
	}

	if h.events != nil {
		st := h.events.OutboxStats()
		processed, duplicates := h.events.ConsumerStats()
		health.Events = &models.EventsHealth{
			Transport:          h.events.Transport(),
			PublisherBreaker:   h.events.PublisherBreaker(),
			OutboxPending:      st.Pending,
			OutboxDeadLettered: st.DeadLettered,
			Processed:          processed,
			Duplicates:         duplicates,
		}
		if health.Events.PublisherBreaker != "closed" && status == "healthy" {
			health.Status = "degraded"
		}
	}

	if h.wsHub != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		health.WebSocketClients = h.wsHub.ClientCount(ctx)
		cancel()
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: DetailedHealth{
			HealthStatus: health,
			Routes:       h.stats.Snapshot(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
	})
}

func (h *Handler) pingDB(ctx context.Context) bool {
	if h.db == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return h.db.Ping(ctx) == nil
}
