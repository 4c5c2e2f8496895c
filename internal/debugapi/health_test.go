package debugapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakePollerStatus struct{ has bool }

func (f fakePollerStatus) HasSnapshot() bool { return f.has }

func TestHealthHandlerReportsDegradedWithoutSnapshot(t *testing.T) {
	h := NewHealthHandler(fakePollerStatus{has: false}, true, "test", time.Now())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "degraded" {
		t.Fatalf("expected degraded status, got %q", resp.Status)
	}
	if resp.Checks["surveillance"] != "no_snapshot_yet" {
		t.Fatalf("unexpected surveillance check: %q", resp.Checks["surveillance"])
	}
}

func TestHealthHandlerReportsHealthyWithSnapshot(t *testing.T) {
	h := NewHealthHandler(fakePollerStatus{has: true}, true, "test", time.Now())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Fatalf("expected healthy status, got %q", resp.Status)
	}
}

func TestHealthHandlerSkipsSurveillanceWhenNotConfigured(t *testing.T) {
	h := NewHealthHandler(nil, false, "test", time.Now())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Checks["surveillance"] != "not_configured" {
		t.Fatalf("unexpected surveillance check: %q", resp.Checks["surveillance"])
	}
	if resp.Checks["correlation"] != "not_configured" {
		t.Fatalf("unexpected correlation check: %q", resp.Checks["correlation"])
	}
}
