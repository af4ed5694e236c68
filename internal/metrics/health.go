package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus is the JSON body served by the health endpoints.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

var version = "dev"

// SetVersion records the build version reported by the health endpoints.
func SetVersion(v string) {
	version = v
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Version:   version,
	})
}

// LivenessHandler answers /healthz: the process is up.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "alive")
	}
}

// ReadinessHandler answers /readyz. readyCheck, when non-nil, probes the
// long-lived dependencies of the running command (push and mount pass a
// catalog ping); a failing probe reports 503.
func ReadinessHandler(readyCheck func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if readyCheck != nil {
			if err := readyCheck(r.Context()); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, "not_ready")
				return
			}
		}
		writeStatus(w, http.StatusOK, "ready")
	}
}
