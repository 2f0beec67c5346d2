package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/abtreece/karapace-testcontainers/pkg/log"
)

const healthCheckTimeout = 5 * time.Second

// HealthHandler is the liveness probe: it answers "ok" as long as the process
// serves requests, whatever the state of the containers.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "ok")
	}
}

// ReadyHandler answers 200 "ok" once the topology is running and 503 with the
// reason otherwise.
func ReadyHandler(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := checker.Ready(ctx); err != nil {
			writeText(w, http.StatusServiceUnavailable, "not ready: "+err.Error())
			return
		}
		writeText(w, http.StatusOK, "ok")
	}
}

// ReadyDetailedHandler reports the state of every component as JSON, with
// the same status codes as ReadyHandler.
func ReadyDetailedHandler(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		result := check(ctx, checker)
		code := http.StatusOK
		if !result.Healthy {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(result); err != nil {
			log.Error("Failed to write detailed readiness response: %v", err)
		}
	}
}

// check asks checker for a detailed result when it can give one and builds
// one from Ready otherwise. The result is never nil and is unhealthy whenever
// the check failed.
func check(ctx context.Context, checker ReadinessChecker) *HealthResult {
	start := time.Now()

	if detailed, ok := checker.(DetailedReadinessChecker); ok {
		result, err := detailed.ReadyDetailed(ctx)
		if result == nil {
			result = &HealthResult{CheckedAt: time.Now(), Duration: DurationMillis(time.Since(start))}
		}
		if err != nil {
			result.Healthy = false
			if result.Message == "" {
				result.Message = err.Error()
			}
		}
		return result
	}

	result := &HealthResult{Healthy: true, Message: "ready", Details: map[string]string{}}
	if err := checker.Ready(ctx); err != nil {
		result.Healthy = false
		result.Message = err.Error()
		result.Details["error"] = err.Error()
	}
	result.Duration = DurationMillis(time.Since(start))
	result.CheckedAt = time.Now()
	return result
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.WriteHeader(code)
	if _, err := w.Write([]byte(body)); err != nil {
		log.Error("Failed to write probe response: %v", err)
	}
}

// Mux returns a mux serving /metrics, /health, /ready and /ready/detailed.
func Mux(checker ReadinessChecker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", HealthHandler())
	mux.HandleFunc("/ready", ReadyHandler(checker))
	mux.HandleFunc("/ready/detailed", ReadyDetailedHandler(checker))
	return mux
}
