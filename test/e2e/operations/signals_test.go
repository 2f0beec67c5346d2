//go:build e2e

package operations

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"syscall"
	"testing"
	"time"
)

const topologyTOML = `
[storage]
kind = "kafka"

[[registry]]
name = "from-file"
`

// TestSignals_SIGTERM_GracefulShutdown verifies that SIGTERM tears the
// containers down and the process exits cleanly.
func TestSignals_SIGTERM_GracefulShutdown(t *testing.T) {
	bin, addr := startUp(t, "--config-file", WriteTopology(t, "topology.toml", topologyTOML))

	code, body := get(t, fmt.Sprintf("http://%s/ready/detailed", addr))
	if code != http.StatusOK || !strings.Contains(body, `"from-file":"running"`) {
		t.Fatalf("Expected the registry from the topology file to run, got %d %s", code, body)
	}

	if err := bin.SendSignal(syscall.SIGTERM); err != nil {
		t.Fatalf("Failed to send SIGTERM: %v", err)
	}

	exitCodeChan := make(chan int, 1)
	errChan := make(chan error, 1)
	go func() {
		code, err := bin.Wait()
		if err != nil {
			errChan <- err
			return
		}
		exitCodeChan <- code
	}()

	select {
	case exitCode := <-exitCodeChan:
		if exitCode != 0 {
			t.Errorf("karapace-tc exited with code %d, want 0", exitCode)
		}
	case err := <-errChan:
		t.Fatalf("Error waiting for process: %v", err)
	case <-time.After(2 * time.Minute):
		t.Fatal("Timeout waiting for karapace-tc to exit after SIGTERM")
	}

	if !strings.Contains(bin.Output(), "from-file\thttp://") {
		t.Errorf("Expected the endpoint of from-file on stdout, got %q", bin.Output())
	}
}

// TestSignals_InvalidImageFailsFast verifies that an incompatible registry
// image is rejected before any container starts.
func TestSignals_InvalidImageFailsFast(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	bin := NewBinary(t)
	if err := bin.Start(ctx, "up", "--image", "example.com/other:1.0"); err != nil {
		t.Fatalf("Failed to start karapace-tc: %v", err)
	}

	code, err := bin.Wait()
	if err != nil {
		t.Fatalf("Error waiting for process: %v", err)
	}
	if code == 0 {
		t.Error("Expected a non-zero exit code for an incompatible image")
	}
}
