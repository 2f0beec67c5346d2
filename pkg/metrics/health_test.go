package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type readyMock struct {
	err error
}

func (m *readyMock) Ready(context.Context) error {
	return m.err
}

type detailedReadyMock struct {
	readyMock
	result *HealthResult
}

func (m *detailedReadyMock) ReadyDetailed(context.Context) (*HealthResult, error) {
	return m.result, m.err
}

func TestHealthHandler_ReturnsOK(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	HealthHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("Expected body 'ok', got '%s'", w.Body.String())
	}
}

func TestReadyHandler_ReturnsOK_WhenReady(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	ReadyHandler(&readyMock{})(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("Expected body 'ok', got '%s'", w.Body.String())
	}
}

func TestReadyHandler_ReturnsServiceUnavailable_WhenNotReady(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	ReadyHandler(&readyMock{err: errors.New("registry primary is starting")})(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
	if !strings.Contains(w.Body.String(), "registry primary is starting") {
		t.Errorf("Expected body to contain the error, got: %s", w.Body.String())
	}
}

func TestReadyDetailedHandler_UsesDetailedChecker(t *testing.T) {
	checker := &detailedReadyMock{
		result: &HealthResult{
			Healthy:   true,
			Message:   "2 registries running",
			Duration:  DurationMillis(1500 * time.Millisecond),
			Details:   map[string]string{"primary": "running"},
			CheckedAt: time.Now(),
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/ready/detailed", nil)
	w := httptest.NewRecorder()

	ReadyDetailedHandler(checker)(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["duration_ms"] != float64(1500) {
		t.Errorf("duration_ms = %v, want 1500", body["duration_ms"])
	}
	if body["message"] != "2 registries running" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestReadyDetailedHandler_FallsBackToBasicCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ready/detailed", nil)
	w := httptest.NewRecorder()

	ReadyDetailedHandler(&readyMock{err: errors.New("broker down")})(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	var result struct {
		Healthy bool              `json:"healthy"`
		Details map[string]string `json:"details"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if result.Healthy {
		t.Error("healthy = true, want false")
	}
	if result.Details["error"] != "broker down" {
		t.Errorf("details.error = %q, want %q", result.Details["error"], "broker down")
	}
}

func TestReadyDetailedHandler_NilResult(t *testing.T) {
	checker := &detailedReadyMock{readyMock: readyMock{err: errors.New("no topology")}}
	req := httptest.NewRequest(http.MethodGet, "/ready/detailed", nil)
	w := httptest.NewRecorder()

	ReadyDetailedHandler(checker)(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestMux_Routes(t *testing.T) {
	Registry = nil
	Initialize()
	defer func() { Registry = nil }()

	mux := Mux(&readyMock{})
	for _, path := range []string{"/metrics", "/health", "/ready", "/ready/detailed"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, w.Code, http.StatusOK)
		}
	}
}
