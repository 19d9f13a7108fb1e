package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/privileges-api/privileges/internal/model"
	"github.com/privileges-api/privileges/internal/server/middleware"
	"github.com/privileges-api/privileges/internal/service"
	"github.com/privileges-api/privileges/internal/store"
	"github.com/privileges-api/privileges/internal/token"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

const agentUA = "PrivilegesAgent/479 CFNetwork/3826.500.111.1.1 Darwin/24.4.0"

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	store     *store.Store
	tokens    *service.TokenService
	router    chi.Router
	principal *model.Principal
}

// newTestEnv creates a fresh test environment with an in-memory store and a
// Chi router with every handler mounted. Authentication is replaced by a
// middleware that attaches e.principal, so handlers are exercised directly.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.Open(context.Background(), store.Config{}) // in-memory SQLite
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := token.FixedClock(testNow)
	events := service.NewEventService(st, clock, logger)
	tokens := service.NewTokenService(st, token.NewCodec(clock), logger)

	webhooks := NewWebhookHandler(events, 1<<10, logger)
	analytics := NewAnalyticsHandler(events, logger)
	exports := NewExportHandler(events, logger)
	tokenHandler := NewTokenHandler(tokens, logger)

	env := &testEnv{store: st, tokens: tokens, principal: model.EnvironmentPrincipal()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if env.principal != nil {
				r = r.WithContext(middleware.WithPrincipal(r.Context(), env.principal))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks", webhooks.Receive)
		r.Get("/webhooks", webhooks.List)
		r.Get("/webhooks/{id}", webhooks.Get)
		r.Delete("/webhooks/{id}", webhooks.Delete)

		r.Get("/analytics/summary", analytics.Summary)
		r.Get("/analytics/events", analytics.Events)

		r.Get("/exports/csv", exports.CSV)
		r.Get("/exports/json", exports.JSON)

		r.Get("/tokens", tokenHandler.List)
		r.Post("/tokens", tokenHandler.Create)
		r.Get("/tokens/{id}", tokenHandler.Get)
		r.Delete("/tokens/{id}", tokenHandler.Manage)
	})

	env.router = r
	return env
}

// seedEvents stores n events one day apart ending at testNow. Even indexes
// are grants by ann, odd indexes revocations by bob.
func (e *testEnv) seedEvents(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		ts := model.FormatTime(testNow.Add(-time.Duration(i) * 24 * time.Hour))
		ev := &model.Event{
			ID:            "ev" + string(rune('a'+i)),
			User:          []string{"ann", "bob"}[i%2],
			Machine:       "MBP",
			Event:         []string{model.EventGranted, model.EventRevoked}[i%2],
			Reason:        "maintenance",
			Admin:         i%2 == 0,
			Timestamp:     ts,
			ReceivedAt:    ts,
			CreatedAt:     ts,
			ClientVersion: 479,
			Platform:      "macOS",
		}
		if err := e.store.InsertEvent(context.Background(), ev); err != nil {
			t.Fatalf("seedEvents: %v", err)
		}
	}
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

func newRequest(method, path, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// serve runs a prepared request, for tests that need custom headers.
func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}
