package metrics

import (
	"context"
	"encoding/json"
	"time"
)

// DurationMillis is a time.Duration that marshals to JSON as milliseconds.
type DurationMillis time.Duration

// MarshalJSON implements json.Marshaler for DurationMillis.
func (d DurationMillis) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).Milliseconds())
}

// HealthResult contains detailed readiness information.
type HealthResult struct {
	Healthy   bool              `json:"healthy"`
	Message   string            `json:"message"`
	Duration  DurationMillis    `json:"duration_ms"`
	Details   map[string]string `json:"details,omitempty"`
	CheckedAt time.Time         `json:"checked_at"`
}

// ReadinessChecker reports whether a topology is ready to serve requests.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// DetailedReadinessChecker is an optional interface for checkers that report
// per-component state.
type DetailedReadinessChecker interface {
	ReadyDetailed(ctx context.Context) (*HealthResult, error)
}
