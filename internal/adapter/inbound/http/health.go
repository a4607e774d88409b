package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/wl4g-collab/botwaf-go/internal/domain/blocklist"
	"github.com/wl4g-collab/botwaf-go/internal/domain/registry"
)

// HealthResponse is the JSON response from the /healthz endpoint.
type HealthResponse struct {
	Status  string            `json:"status"`            // "healthy" or "unhealthy"
	Checks  map[string]string `json:"checks"`            // Component check results
	Version string            `json:"version,omitempty"` // Optional version info
}

// HealthChecker verifies that the rule engine has a ruleset loaded and that
// the IP blocklist backend is reachable. A blocklist outage is reported as
// degraded, not unhealthy -- the filter itself fails open (§4.3), so a down
// backend never stops request handling.
type HealthChecker struct {
	ruleSets  *registry.RuleSetHolder
	blockList blocklist.BlockList
	version   string
}

// NewHealthChecker creates a HealthChecker. blockList may be nil when IP
// filtering is disabled.
func NewHealthChecker(ruleSets *registry.RuleSetHolder, blockList blocklist.BlockList, version string) *HealthChecker {
	return &HealthChecker{ruleSets: ruleSets, blockList: blockList, version: version}
}

// Check performs health checks on all components.
func (h *HealthChecker) Check(ctx context.Context) HealthResponse {
	checks := make(map[string]string)
	healthy := true

	if h.ruleSets != nil && h.ruleSets.Load() != nil {
		checks["ruleset"] = "ok"
	} else {
		checks["ruleset"] = "not loaded"
		healthy = false
	}

	if h.blockList != nil {
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := h.blockList.IsBlocked(probeCtx, "0.0.0.0")
		cancel()
		if err != nil {
			checks["blocklist"] = fmt.Sprintf("degraded: %v", err)
		} else {
			checks["blocklist"] = "ok"
		}
	} else {
		checks["blocklist"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	return HealthResponse{
		Status:  status,
		Checks:  checks,
		Version: h.version,
	}
}

// Handler returns an HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(health)
	})
}
