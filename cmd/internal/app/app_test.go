package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(t.Context(), cfg, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestHealth_MemoryMode(t *testing.T) {
	a := newTestApp(t, Config{})
	h := a.Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}

	var body healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.Status != "up" || body.Database != "memory" {
		t.Fatalf("unexpected health body: %+v", body)
	}
	if body.Timestamp.IsZero() {
		t.Fatal("timestamp missing")
	}
}

func TestHealthz(t *testing.T) {
	a := newTestApp(t, Config{})
	h := a.Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
}

func TestReadyz_RequireDBWithoutDB(t *testing.T) {
	a := newTestApp(t, Config{ReadinessRequireDB: true})
	h := a.Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want 503", rr.Code)
	}
}

func TestReadyz_MemoryModeReady(t *testing.T) {
	a := newTestApp(t, Config{})
	h := a.Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestApp(t, Config{})
	h := a.Handler()

	// Serve one request through the instrumented chain first.
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "trackd_http_requests_total") {
		t.Fatalf("metrics output missing request counter:\n%s", rr.Body.String())
	}
}

func TestAuthRoutesWired(t *testing.T) {
	a := newTestApp(t, Config{})
	h := a.Handler()

	req := httptest.NewRequest(http.MethodPost, "/auth/device", strings.NewReader(`{"email":"app@example.com","deviceId":"phone-1"}`))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	access, _ := body["accessToken"].(string)
	if body["ok"] != true || access == "" {
		t.Fatalf("registration through full chain failed: %v", body)
	}

	// The minted token must open the position API on the same app.
	posReq := httptest.NewRequest(http.MethodGet, "/api/position/", nil)
	posReq.Header.Set("Authorization", "Bearer "+access)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, posReq)
	if rr.Code != http.StatusOK {
		t.Fatalf("position list with fresh token: status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSecurityHeadersOnEveryResponse(t *testing.T) {
	a := newTestApp(t, Config{})
	h := a.Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("missing security headers on /health: %q", got)
	}
}
