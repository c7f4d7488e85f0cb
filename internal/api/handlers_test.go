// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/personafeed/internal/config"
	"github.com/tomtom215/personafeed/internal/feed"
	"github.com/tomtom215/personafeed/internal/models"
	"github.com/tomtom215/personafeed/internal/outbox"
)

// mockFeedService implements FeedService with canned answers.
type mockFeedService struct {
	mu sync.Mutex

	page        *feed.Page
	generate    *feed.GenerateResult
	generateErr error
	prefs       *feed.Preferences
	updateErr   error
	trackFirst  bool
	trackErr    error
	err         error

	generateCalls atomic.Int32
	deleteCalls   atomic.Int32
	lastLimit     int
	lastCursor    string
	lastOpts      feed.GenerateOptions
	lastUpdate    *feed.Preferences
}

func newMockFeedService() *mockFeedService {
	prefs := feed.DefaultPreferences("u1", feed.DefaultConfig())
	prefs.Version = 1
	return &mockFeedService{prefs: prefs}
}

func (m *mockFeedService) GetFeed(_ context.Context, userID string, limit int, cursor string) (*feed.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit, m.lastCursor = limit, cursor
	if m.err != nil {
		return nil, m.err
	}
	if err := feed.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if m.page != nil {
		return m.page, nil
	}
	return &feed.Page{UserID: userID, State: feed.StateGenerating, Items: []feed.FeedItem{}, Refreshing: true}, nil
}

func (m *mockFeedService) GenerateFeed(_ context.Context, userID string, opts feed.GenerateOptions) (*feed.GenerateResult, error) {
	m.generateCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastOpts = opts
	if m.generateErr != nil {
		return nil, m.generateErr
	}
	if m.generate != nil {
		return m.generate, nil
	}
	return &feed.GenerateResult{UserID: userID, State: feed.StateReady, Version: 1, Items: []feed.FeedItem{}}, nil
}

func (m *mockFeedService) Status(_ context.Context, userID string) (*feed.Status, error) {
	if m.err != nil {
		return nil, m.err
	}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &feed.Status{UserID: userID, State: feed.StateReady, Version: 3, GeneratedAt: &at, ItemCount: 12, RefreshInterval: time.Hour}, nil
}

func (m *mockFeedService) GetPreferences(_ context.Context, userID string) (*feed.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p := m.prefs.Clone()
	p.UserID = userID
	return p, nil
}

func (m *mockFeedService) UpdatePreferences(_ context.Context, p *feed.Preferences) (*feed.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUpdate = p.Clone()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	stored := p.Clone()
	stored.Version++
	m.prefs = stored
	return stored, nil
}

func (m *mockFeedService) DeleteUser(_ context.Context, userID string) error {
	m.deleteCalls.Add(1)
	return feed.ValidateUserID(userID)
}

func (m *mockFeedService) TrackInteractionByName(_ context.Context, itemID, name string) (*feed.FeedItem, bool, error) {
	if m.trackErr != nil {
		return nil, false, m.trackErr
	}
	if _, err := feed.ParseInteractionType(name); err != nil {
		return nil, false, err
	}
	return &feed.FeedItem{ID: itemID, UserID: "u1", Type: feed.ItemTrendingPersona, PersonaID: 7}, m.trackFirst, nil
}

func (m *mockFeedService) BreakerStates() map[feed.Source]string {
	return map[feed.Source]string{feed.SourceTrending: "closed", feed.SourceSocial: "closed"}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeEvents struct{ breaker string }

func (f fakeEvents) Transport() string        { return "gochannel" }
func (f fakeEvents) PublisherBreaker() string { return f.breaker }
func (f fakeEvents) OutboxStats() outbox.Stats {
	return outbox.Stats{Pending: 3, DeadLettered: 1}
}
func (f fakeEvents) ConsumerStats() (int64, int64) { return 10, 2 }

func testConfig() *config.Config {
	return &config.Config{
		Security: config.SecurityConfig{
			CORSOrigins:       []string{"http://localhost:3000"},
			RateLimitDisabled: true,
		},
	}
}

func newTestServer(t *testing.T, svc FeedService, mutate func(*Deps)) http.Handler {
	t.Helper()
	deps := Deps{Engine: svc, DB: fakePinger{}, Config: testConfig(), Version: "test"}
	if mutate != nil {
		mutate(&deps)
	}
	return NewRouter(NewHandler(deps), deps.Config).Setup()
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON (%d): %q", rec.Code, rec.Body.String())
	}
	return rec, resp
}

func dataMap(t *testing.T, resp models.APIResponse) map[string]interface{} {
	t.Helper()
	m, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data is %T, want object", resp.Data)
	}
	return m
}

func TestGetFeed(t *testing.T) {
	t.Parallel()

	t.Run("first read is generating", func(t *testing.T) {
		t.Parallel()
		svc := newMockFeedService()
		rec, resp := doRequest(t, newTestServer(t, svc, nil), http.MethodGet, "/api/v1/users/u1/feed", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		data := dataMap(t, resp)
		if data["state"] != "generating" || data["refreshing"] != true {
			t.Errorf("data = %v", data)
		}
		if rec.Header().Get("X-Request-ID") == "" || resp.Metadata.RequestID != rec.Header().Get("X-Request-ID") {
			t.Errorf("request ID header %q, metadata %q", rec.Header().Get("X-Request-ID"), resp.Metadata.RequestID)
		}
		if rec.Header().Get("Cache-Control") != "no-store" {
			t.Errorf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
		}
	})

	t.Run("limit and cursor forwarded, next cursor in metadata", func(t *testing.T) {
		t.Parallel()
		svc := newMockFeedService()
		svc.page = &feed.Page{UserID: "u1", State: feed.StateReady, Version: 2, Items: []feed.FeedItem{}, NextCursor: "next-token", Total: 40}
		rec, resp := doRequest(t, newTestServer(t, svc, nil), http.MethodGet, "/api/v1/users/u1/feed?limit=20&cursor=abc", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if svc.lastLimit != 20 || svc.lastCursor != "abc" {
			t.Errorf("forwarded limit=%d cursor=%q", svc.lastLimit, svc.lastCursor)
		}
		if resp.Metadata.NextCursor != "next-token" {
			t.Errorf("next cursor = %q", resp.Metadata.NextCursor)
		}
	})

	t.Run("negative limit rejected", func(t *testing.T) {
		t.Parallel()
		rec, resp := doRequest(t, newTestServer(t, newMockFeedService(), nil), http.MethodGet, "/api/v1/users/u1/feed?limit=-1", "")
		if rec.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != ErrCodeValidation {
			t.Errorf("status = %d, error = %+v", rec.Code, resp.Error)
		}
		if resp.Error.Details["field"] != "limit" {
			t.Errorf("details = %v", resp.Error.Details)
		}
	})

	t.Run("expired cursor is 410", func(t *testing.T) {
		t.Parallel()
		svc := newMockFeedService()
		svc.err = feed.ErrCursorExpired
		rec, resp := doRequest(t, newTestServer(t, svc, nil), http.MethodGet, "/api/v1/users/u1/feed?cursor=old", "")
		if rec.Code != http.StatusGone || resp.Error.Code != ErrCodeCursorExpired {
			t.Errorf("status = %d, error = %+v", rec.Code, resp.Error)
		}
	})
}

func TestGenerateFeed(t *testing.T) {
	t.Parallel()

	t.Run("empty body runs with defaults", func(t *testing.T) {
		t.Parallel()
		svc := newMockFeedService()
		rec, resp := doRequest(t, newTestServer(t, svc, nil), http.MethodPost, "/api/v1/users/u1/feed/generate", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		if dataMap(t, resp)["state"] != "ready" {
			t.Errorf("data = %v", resp.Data)
		}
		if svc.lastOpts.RefreshExisting || len(svc.lastOpts.Categories) != 0 {
			t.Errorf("opts = %+v", svc.lastOpts)
		}
	})

	t.Run("body forwarded", func(t *testing.T) {
		t.Parallel()
		svc := newMockFeedService()
		rec, _ := doRequest(t, newTestServer(t, svc, nil), http.MethodPost, "/api/v1/users/u1/feed/generate",
			`{"refresh_existing":true,"categories":["music","fitness"]}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if !svc.lastOpts.RefreshExisting || len(svc.lastOpts.Categories) != 2 {
			t.Errorf("opts = %+v", svc.lastOpts)
		}
	})

	t.Run("rejected concurrent run is 202 generating", func(t *testing.T) {
		t.Parallel()
		svc := newMockFeedService()
		svc.generateErr = feed.ErrGenerationInProgress
		rec, resp := doRequest(t, newTestServer(t, svc, nil), http.MethodPost, "/api/v1/users/u1/feed/generate", "")
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") == "" {
			t.Error("Retry-After missing")
		}
		if dataMap(t, resp)["state"] != "generating" {
			t.Errorf("data = %v", resp.Data)
		}
	})

	t.Run("persistence failure is 503", func(t *testing.T) {
		t.Parallel()
		svc := newMockFeedService()
		svc.generateErr = fmt.Errorf("%w: disk full", feed.ErrPersistence)
		rec, resp := doRequest(t, newTestServer(t, svc, nil), http.MethodPost, "/api/v1/users/u1/feed/generate", "")
		if rec.Code != http.StatusServiceUnavailable || resp.Error.Code != ErrCodePersistence {
			t.Errorf("status = %d, error = %+v", rec.Code, resp.Error)
		}
		if strings.Contains(resp.Error.Message, "disk full") {
			t.Error("internal error text leaked to client")
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name string
			body string
			code string
		}{
			{"malformed JSON", `{"categories":`, ErrCodeBadRequest},
			{"blank category", `{"categories":[" "]}`, ErrCodeValidation},
		}
		for _, tt := range tests {
			rec, resp := doRequest(t, newTestServer(t, newMockFeedService(), nil), http.MethodPost, "/api/v1/users/u1/feed/generate", tt.body)
			if rec.Code != http.StatusBadRequest || resp.Error.Code != tt.code {
				t.Errorf("%s: status = %d, error = %+v", tt.name, rec.Code, resp.Error)
			}
		}
	})
}

func TestGenerateFeed_RateLimitedPerUser(t *testing.T) {
	t.Parallel()

	svc := newMockFeedService()
	mw := DefaultChiMiddlewareConfig()
	mw.GenerateLimit = 1
	router := &Router{
		handler:       NewHandler(Deps{Engine: svc, DB: fakePinger{}}),
		chiMiddleware: NewChiMiddleware(mw),
	}
	h := router.Setup()

	rec, _ := doRequest(t, h, http.MethodPost, "/api/v1/users/u1/feed/generate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/users/u1/feed/generate", "")
	if rec.Code != http.StatusTooManyRequests || resp.Error.Code != ErrCodeRateLimited {
		t.Errorf("second request status = %d, error = %+v", rec.Code, resp.Error)
	}
	rec, _ = doRequest(t, h, http.MethodPost, "/api/v1/users/u2/feed/generate", "")
	if rec.Code != http.StatusOK {
		t.Errorf("other user status = %d", rec.Code)
	}
	if got := svc.generateCalls.Load(); got != 2 {
		t.Errorf("generate calls = %d, want 2", got)
	}
}

func TestFeedStatus(t *testing.T) {
	t.Parallel()

	rec, resp := doRequest(t, newTestServer(t, newMockFeedService(), nil), http.MethodGet, "/api/v1/users/u1/feed/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data := dataMap(t, resp)
	if data["state"] != "ready" || data["item_count"] != float64(12) || data["refresh_interval_seconds"] != float64(3600) {
		t.Errorf("data = %v", data)
	}
}

func TestPreferences(t *testing.T) {
	t.Parallel()

	t.Run("get returns defaults", func(t *testing.T) {
		t.Parallel()
		rec, resp := doRequest(t, newTestServer(t, newMockFeedService(), nil), http.MethodGet, "/api/v1/users/u9/feed/preferences", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		data := dataMap(t, resp)
		if data["user_id"] != "u9" || data["show_trending"] != true || data["refresh_interval_seconds"] != float64(3600) {
			t.Errorf("data = %v", data)
		}
	})

	t.Run("put merges partial update", func(t *testing.T) {
		t.Parallel()
		svc := newMockFeedService()
		body := `{"show_trending":false,"weights":{"social":0.9},"blocked_categories":["horror"],"refresh_interval_seconds":600}`
		rec, resp := doRequest(t, newTestServer(t, svc, nil), http.MethodPut, "/api/v1/users/u1/feed/preferences", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		got := svc.lastUpdate
		if got.ShowTrending || !got.ShowRecommendations {
			t.Errorf("toggles = %+v", got)
		}
		if got.Weights.Social != 0.9 || got.Weights.Trending != feed.DefaultWeights().Trending {
			t.Errorf("weights = %+v", got.Weights)
		}
		if len(got.BlockedCategories) != 1 || got.RefreshInterval != 10*time.Minute {
			t.Errorf("update = %+v", got)
		}
		if dataMap(t, resp)["version"] != float64(2) {
			t.Errorf("data = %v", resp.Data)
		}
	})

	t.Run("put rejected", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name      string
			body      string
			updateErr error
			code      string
		}{
			{"negative weight", `{"weights":{"trending":-1}}`, nil, ErrCodeValidation},
			{"rating above scale", `{"min_rating":6}`, nil, ErrCodeValidation},
			{"empty body", ``, nil, ErrCodeBadRequest},
			{"engine rejects", `{"max_items":10}`, fmt.Errorf("%w: category %q is both preferred and blocked", feed.ErrInvalidPreferences, "x"), ErrCodeInvalidPreferences},
		}
		for _, tt := range tests {
			svc := newMockFeedService()
			svc.updateErr = tt.updateErr
			rec, resp := doRequest(t, newTestServer(t, svc, nil), http.MethodPut, "/api/v1/users/u1/feed/preferences", tt.body)
			if rec.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != tt.code {
				t.Errorf("%s: status = %d, error = %+v", tt.name, rec.Code, resp.Error)
			}
		}
	})
}

func TestDeleteUser(t *testing.T) {
	t.Parallel()

	svc := newMockFeedService()
	rec, resp := doRequest(t, newTestServer(t, svc, nil), http.MethodDelete, "/api/v1/users/u1", "")
	if rec.Code != http.StatusOK || dataMap(t, resp)["deleted"] != true {
		t.Fatalf("status = %d, data = %v", rec.Code, resp.Data)
	}
	if svc.deleteCalls.Load() != 1 {
		t.Errorf("delete calls = %d", svc.deleteCalls.Load())
	}
}

func TestTrackInteraction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		first      bool
		trackErr   error
		wantStatus int
		wantCode   string
	}{
		{"first like accepted", `{"type":"liked"}`, true, nil, http.StatusAccepted, ""},
		{"repeat accepted but not recorded", `{"type":"view"}`, false, nil, http.StatusAccepted, ""},
		{"unknown type", `{"type":"bookmarked"}`, true, nil, http.StatusBadRequest, ErrCodeValidation},
		{"missing type", `{}`, true, nil, http.StatusBadRequest, ErrCodeValidation},
		{"unknown item", `{"type":"clicked"}`, true, feed.ErrFeedItemNotFound, http.StatusNotFound, ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := newMockFeedService()
			svc.trackFirst = tt.first
			svc.trackErr = tt.trackErr
			rec, resp := doRequest(t, newTestServer(t, svc, nil), http.MethodPost, "/api/v1/feed/items/item-1/interactions", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode != "" {
				if resp.Error == nil || resp.Error.Code != tt.wantCode {
					t.Errorf("error = %+v", resp.Error)
				}
				return
			}
			data := dataMap(t, resp)
			if data["recorded"] != tt.first || data["item_id"] != "item-1" {
				t.Errorf("data = %v", data)
			}
		})
	}
}

func TestFeedErrorStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{feed.ErrInvalidUserID, http.StatusBadRequest, ErrCodeInvalidUserID},
		{fmt.Errorf("%w: max items", feed.ErrInvalidPreferences), http.StatusBadRequest, ErrCodeInvalidPreferences},
		{feed.ErrInvalidCursor, http.StatusBadRequest, ErrCodeInvalidCursor},
		{feed.ErrUnknownInteraction, http.StatusBadRequest, ErrCodeValidation},
		{feed.ErrFeedItemNotFound, http.StatusNotFound, ErrCodeNotFound},
		{feed.ErrGenerationInProgress, http.StatusConflict, ErrCodeGenerationInProgress},
		{feed.ErrUserDeleted, http.StatusConflict, ErrCodeUserDeleted},
		{feed.ErrCursorExpired, http.StatusGone, ErrCodeCursorExpired},
		{fmt.Errorf("swap: %w", feed.ErrPersistence), http.StatusServiceUnavailable, ErrCodePersistence},
		{feed.ErrEngineClosed, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, ErrCodeTimeout},
		{errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tt := range tests {
		status, code, _ := feedErrorStatus(tt.err)
		if status != tt.wantStatus || code != tt.wantCode {
			t.Errorf("%v: got %d %s, want %d %s", tt.err, status, code, tt.wantStatus, tt.wantCode)
		}
	}

	rec := httptest.NewRecorder()
	respondFeedError(rec, feed.ErrGenerationInProgress)
	if rec.Header().Get("Retry-After") != retryAfterSeconds {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}

	_, _, msg := feedErrorStatus(fmt.Errorf("%w: max items must be in [1,500], got 0", feed.ErrInvalidPreferences))
	if msg != "max items must be in [1,500], got 0" {
		t.Errorf("public message = %q", msg)
	}
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()

	rec, resp := doRequest(t, newTestServer(t, newMockFeedService(), nil), http.MethodGet, "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("status = %d, error = %+v", rec.Code, resp.Error)
	}
}
