//go:build e2e

package operations

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
)

// TestMetrics_RegistryStarts verifies that a successful start is counted and
// the registry is reported as running.
func TestMetrics_RegistryStarts(t *testing.T) {
	_, addr := startUp(t, "--storage", "redpanda")

	code, body := get(t, fmt.Sprintf("http://%s/metrics", addr))
	if code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", code)
	}
	if !strings.Contains(body, "# HELP") {
		t.Error("Expected Prometheus text format")
	}

	want := []string{
		`karapace_tc_registry_starts_total{registry="karapace-schema-registry",status="success",storage="redpanda"} 1`,
		`karapace_tc_registry_running{registry="karapace-schema-registry"} 1`,
		`karapace_tc_registry_start_duration_seconds_count{registry="karapace-schema-registry",storage="redpanda"} 1`,
	}
	for _, line := range want {
		if !strings.Contains(body, line) {
			t.Errorf("Expected metrics to contain %q", line)
		}
	}
}
