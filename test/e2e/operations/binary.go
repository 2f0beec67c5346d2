//go:build e2e

package operations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"testing"
	"time"
)

var (
	buildOnce   sync.Once
	binaryPath  string
	buildErr    error
	projectRoot string
)

// findProjectRoot walks up from the current directory to find the project root
// (identified by the presence of go.mod).
func findProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to get caller information")
	}

	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root (no go.mod found)")
		}
		dir = parent
	}
}

// BuildBinary builds the karapace-tc binary once and returns the path.
// Uses sync.Once to avoid rebuilding across multiple tests.
func BuildBinary(t *testing.T) string {
	t.Helper()

	buildOnce.Do(func() {
		projectRoot, buildErr = findProjectRoot()
		if buildErr != nil {
			return
		}

		binaryPath = filepath.Join(projectRoot, "bin", "karapace-tc")

		cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/karapace-tc")
		cmd.Dir = projectRoot
		output, err := cmd.CombinedOutput()
		if err != nil {
			buildErr = fmt.Errorf("failed to build karapace-tc: %w\nOutput: %s", err, output)
			return
		}

		if _, err := os.Stat(binaryPath); err != nil {
			buildErr = fmt.Errorf("binary not found after build: %w", err)
		}
	})

	if buildErr != nil {
		t.Fatalf("Failed to build karapace-tc: %v", buildErr)
	}

	return binaryPath
}

// Binary is a karapace-tc process started by a test.
type Binary struct {
	path   string
	args   []string
	cmd    *exec.Cmd
	stdout bytes.Buffer
	stderr bytes.Buffer

	// exited is closed once the process exited; exitCode and waitErr are
	// valid afterwards.
	exited   chan struct{}
	exitCode int
	waitErr  error
}

// NewBinary returns a Binary for the freshly built karapace-tc.
func NewBinary(t *testing.T) *Binary {
	t.Helper()
	return &Binary{path: BuildBinary(t)}
}

// Start starts karapace-tc with args and returns once the process runs.
// Cancelling ctx sends SIGTERM so the process still tears its containers down.
func (b *Binary) Start(ctx context.Context, args ...string) error {
	b.args = args
	b.cmd = exec.CommandContext(ctx, b.path, args...)
	b.cmd.Stdout = &b.stdout
	b.cmd.Stderr = &b.stderr
	b.cmd.Cancel = func() error {
		return b.cmd.Process.Signal(syscall.SIGTERM)
	}
	b.cmd.WaitDelay = time.Minute

	if err := b.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start karapace-tc: %w", err)
	}

	b.exited = make(chan struct{})
	go func() {
		defer close(b.exited)
		err := b.cmd.Wait()
		var exitErr *exec.ExitError
		switch {
		case err == nil:
		case errors.As(err, &exitErr):
			b.exitCode = exitErr.ExitCode()
		default:
			b.exitCode = -1
			b.waitErr = err
		}
	}()
	return nil
}

// Output returns the process stdout. Only call it after the process exited.
func (b *Binary) Output() string {
	return b.stdout.String()
}

// WaitForReady polls /ready on addr until it answers 200, the process exits
// or timeout passes.
func (b *Binary) WaitForReady(ctx context.Context, addr string, timeout time.Duration) error {
	url := fmt.Sprintf("http://%s/ready", addr)
	client := &http.Client{Timeout: time.Second}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		if resp, err := client.Get(url); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %s: %w", url, ctx.Err())
		case <-b.exited:
			return fmt.Errorf("karapace-tc %v exited with code %d: %s", b.args, b.exitCode, b.stderr.String())
		case <-ticker.C:
		}
	}
}

// SendSignal sends sig to the process.
func (b *Binary) SendSignal(sig syscall.Signal) error {
	if b.cmd == nil || b.cmd.Process == nil {
		return fmt.Errorf("process not running")
	}
	return b.cmd.Process.Signal(sig)
}

// Wait blocks until the process exited and returns its exit code.
func (b *Binary) Wait() (int, error) {
	if b.exited == nil {
		return -1, fmt.Errorf("process not started")
	}
	<-b.exited
	return b.exitCode, b.waitErr
}

// Stop sends SIGTERM and waits up to a minute for teardown before killing the
// process.
func (b *Binary) Stop() error {
	if b.exited == nil {
		return nil
	}
	select {
	case <-b.exited:
		return nil
	default:
	}

	if err := b.SendSignal(syscall.SIGTERM); err != nil {
		return nil
	}
	select {
	case <-b.exited:
		return nil
	case <-time.After(time.Minute):
		return b.cmd.Process.Kill()
	}
}

// GetFreePort returns an available TCP port.
func GetFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("Failed to get free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()
	return port
}

// WriteTopology writes a topology file into a temp directory.
func WriteTopology(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write topology %s: %v", name, err)
	}
	return path
}
