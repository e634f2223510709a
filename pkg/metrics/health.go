package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthStatus is the payload served on /health
type HealthStatus struct {
	Status    string            `json:"status"` // "healthy" or "degraded"
	Timestamp time.Time         `json:"timestamp"`
	Gerrits   map[string]string `json:"gerrits,omitempty"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
}

var healthChecker = &HealthChecker{
	gerrits:   make(map[string]bool),
	startTime: time.Now(),
}

// HealthChecker tracks per-source connection health for the /health endpoint
type HealthChecker struct {
	mu        sync.RWMutex
	gerrits   map[string]bool
	startTime time.Time
	version   string
}

// SetVersion sets the version string for health responses
func SetVersion(version string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.version = version
}

// SetGerritStatus records whether a source's client is currently active
func SetGerritStatus(name string, active bool) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.gerrits[name] = active
}

// RemoveGerrit drops a source from health reporting after a reload
// removed it from the config
func RemoveGerrit(name string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	delete(healthChecker.gerrits, name)
}

// HealthHandler serves the /health endpoint. The daemon reports degraded
// when any configured source is disconnected; it is never unhealthy
// while the process loop runs, because reconnection is automatic.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		healthChecker.mu.RLock()
		status := HealthStatus{
			Status:    "healthy",
			Timestamp: time.Now(),
			Gerrits:   make(map[string]string, len(healthChecker.gerrits)),
			Version:   healthChecker.version,
			Uptime:    time.Since(healthChecker.startTime).Round(time.Second).String(),
		}
		for name, active := range healthChecker.gerrits {
			if active {
				status.Gerrits[name] = "connected"
			} else {
				status.Gerrits[name] = "disconnected"
				status.Status = "degraded"
			}
		}
		healthChecker.mu.RUnlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	})
}
