package handlers

import (
	"net/http"
	"sync"
	"time"
)

var (
	startTime time.Time
	startOnce sync.Once
)

// InitStartTime records the server start time. Called once at startup.
func InitStartTime() {
	startOnce.Do(func() {
		startTime = time.Now()
	})
}

// HealthStats is a point-in-time snapshot of the agent behind the
// gateway.
type HealthStats struct {
	// Tools is the number of registered capabilities.
	Tools int `json:"tools"`

	// PendingApprovals counts permission escalations awaiting a decision.
	PendingApprovals int `json:"pending_approvals"`
}

// HealthResponse is the health check response body.
type HealthResponse struct {
	Status  string      `json:"status"`
	Version string      `json:"version"`
	Uptime  int64       `json:"uptime"`
	Stats   HealthStats `json:"stats"`
}

// HealthHandler returns the health check handler. stats may be nil when
// the server runs without an agent wired in.
func HealthHandler(version string, stats func() HealthStats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(0)
		if !startTime.IsZero() {
			uptime = int64(time.Since(startTime).Seconds())
		}

		resp := HealthResponse{
			Status:  "ok",
			Version: version,
			Uptime:  uptime,
		}
		if stats != nil {
			resp.Stats = stats()
		}

		SendJSON(w, http.StatusOK, resp)
	}
}
