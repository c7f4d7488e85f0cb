// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/personafeed/internal/logging"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		incoming string
		wantSame bool
	}{
		{"generated when missing", "", false},
		{"upstream ID kept", "abc-123", true},
		{"oversized ID replaced", strings.Repeat("x", maxRequestIDLen+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var seen string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = logging.RequestIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if got == "" || got != seen {
				t.Fatalf("header %q, context %q", got, seen)
			}
			if (got == tt.incoming) != tt.wantSame {
				t.Errorf("request ID %q, incoming %q", got, tt.incoming)
			}
		})
	}
}

func TestRoutePattern(t *testing.T) {
	t.Parallel()

	var pattern string
	r := chi.NewRouter()
	r.Get("/users/{userID}/feed", func(w http.ResponseWriter, req *http.Request) {})
	h := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req)
			pattern = RoutePattern(req)
		})
	}
	outer := chi.NewRouter()
	outer.Use(h)
	outer.Mount("/", r)

	outer.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/u-42/feed", nil))
	if pattern != "/users/{userID}/feed" {
		t.Errorf("pattern = %q", pattern)
	}

	if got := RoutePattern(httptest.NewRequest(http.MethodGet, "/x", nil)); got != unmatchedRoute {
		t.Errorf("no route context: got %q", got)
	}
}

func TestPrometheusMetrics_PassesThrough(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Post("/items/{itemID}", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items/1", nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCompression(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("persona ", 500)
	h := Compression(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	}))

	t.Run("gzip when accepted", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip, deflate")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Header().Get("Content-Encoding") != "gzip" {
			t.Fatalf("Content-Encoding = %q", rec.Header().Get("Content-Encoding"))
		}
		zr, err := gzip.NewReader(rec.Body)
		if err != nil {
			t.Fatalf("gzip reader: %v", err)
		}
		got, err := io.ReadAll(zr)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(got) != body {
			t.Error("decompressed body mismatch")
		}
	})

	t.Run("plain without accept header", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Header().Get("Content-Encoding") != "" || rec.Body.String() != body {
			t.Error("expected uncompressed body")
		}
	})

	t.Run("websocket upgrade untouched", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		req.Header.Set("Upgrade", "websocket")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Header().Get("Content-Encoding") != "" {
			t.Error("upgrade request must not be compressed")
		}
	})
}

func TestRouteStats(t *testing.T) {
	t.Parallel()

	s := NewRouteStats(4, 0)
	for i := 1; i <= 6; i++ {
		s.Record("/a", time.Duration(i)*time.Millisecond, http.StatusOK)
	}
	s.Record("/b", 50*time.Millisecond, http.StatusServiceUnavailable)

	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("routes = %d, want 2", len(snap))
	}
	a := snap[0]
	if a.Route != "/a" || a.RequestCount != 6 {
		t.Fatalf("first route = %+v", a)
	}
	// window of 4 keeps samples 3..6
	if a.MaxMs != 6 || a.P50Ms != 4 {
		t.Errorf("window stats = %+v", a)
	}
	if snap[1].ErrorCount != 1 {
		t.Errorf("error count = %d", snap[1].ErrorCount)
	}
}

func TestRouteStats_Middleware(t *testing.T) {
	t.Parallel()

	s := NewRouteStats(16, time.Nanosecond)
	r := chi.NewRouter()
	r.Use(s.Middleware)
	r.Get("/feed/{id}", func(w http.ResponseWriter, req *http.Request) {
		time.Sleep(time.Millisecond)
	})
	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/feed/"+id, nil))
	}

	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].Route != "/feed/{id}" || snap[0].RequestCount != 3 {
		t.Errorf("snapshot = %+v", snap)
	}
}
