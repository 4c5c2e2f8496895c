package debugapi

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse mirrors the shape of the engine's component checks.
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

// PollerStatus reports whether the surveillance poller has published at
// least one snapshot; neither its age nor its contact count is checked.
type PollerStatus interface {
	HasSnapshot() bool
}

type HealthHandler struct {
	poller    PollerStatus // nil if ADS-B surveillance is disabled
	correlationEnabled bool
	version   string
	startTime time.Time
}

func NewHealthHandler(poller PollerStatus, correlationEnabled bool, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{poller: poller, correlationEnabled: correlationEnabled, version: version, startTime: startTime}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"

	if h.poller != nil {
		if h.poller.HasSnapshot() {
			checks["surveillance"] = "ok"
		} else {
			checks["surveillance"] = "no_snapshot_yet"
			status = "degraded"
		}
	} else {
		checks["surveillance"] = "not_configured"
	}

	if h.correlationEnabled {
		checks["correlation"] = "ok"
	} else {
		checks["correlation"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
