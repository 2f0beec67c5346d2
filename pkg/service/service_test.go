package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) Ready(ctx context.Context) error { return f(ctx) }

func TestNotifier_WithoutSocket(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	for _, enabled := range []bool{false, true} {
		n := NewNotifier(enabled, 0)
		if err := n.Ready("2 registries running"); err != nil {
			t.Errorf("Ready() enabled=%v error = %v", enabled, err)
		}
		if err := n.Status("starting containers"); err != nil {
			t.Errorf("Status() enabled=%v error = %v", enabled, err)
		}
		if err := n.Stopping(); err != nil {
			t.Errorf("Stopping() enabled=%v error = %v", enabled, err)
		}
	}
}

func TestNotifier_WatchdogWithoutInterval(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")

	var called atomic.Bool
	n := NewNotifier(true, 0)
	n.Watchdog(context.Background(), checkerFunc(func(context.Context) error {
		called.Store(true)
		return errors.New("not ready")
	}))
	time.Sleep(10 * time.Millisecond)
	if called.Load() {
		t.Error("watchdog without an interval must not consult the checker")
	}
}

func TestNotifier_WatchdogConsultsChecker(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checked := make(chan struct{}, 1)
	n := NewNotifier(true, 5*time.Millisecond)
	n.Watchdog(ctx, checkerFunc(func(context.Context) error {
		select {
		case checked <- struct{}{}:
		default:
		}
		return errors.New("broker is not running")
	}))

	if runtime.GOOS != "linux" {
		t.Skip("watchdog is a no-op outside Linux")
	}
	select {
	case <-checked:
	case <-time.After(time.Second):
		t.Error("watchdog never consulted the checker")
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv, err := Listen("127.0.0.1:0", mux)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	srv.Serve()

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("GET /health = %d %q, want 200 ok", resp.StatusCode, body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if _, err := http.Get("http://" + srv.Addr() + "/health"); err == nil {
		t.Error("server still answering after Shutdown()")
	}
}

func TestListen_InvalidAddress(t *testing.T) {
	if _, err := Listen("not-an-address", http.NotFoundHandler()); err == nil {
		t.Error("Listen() error = nil, want error")
	}
}
