package container

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type fakeNetwork struct {
	created int
	removed int
}

func (n *fakeNetwork) Name() string {
	if n.created > n.removed {
		return "fake-net"
	}
	return ""
}

func (n *fakeNetwork) Create(context.Context) error {
	n.created++
	return nil
}

func (n *fakeNetwork) Remove(context.Context) error {
	n.removed++
	return nil
}

func TestStrategy(t *testing.T) {
	tests := []struct {
		name string
		wait Wait
		want any
	}{
		{"none", Wait{}, nil},
		{"log", ForLog(`.*Ready.*`, 2, time.Second), &wait.LogStrategy{}},
		{"http", ForHTTP("/_health", "8081/tcp", time.Second), &wait.HTTPStrategy{}},
		{"exit", ForExit(time.Second), &wait.ExitStrategy{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Strategy(tt.wait)
			switch tt.want.(type) {
			case nil:
				if got != nil {
					t.Errorf("Strategy() = %T, want nil", got)
				}
			case *wait.LogStrategy:
				s, ok := got.(*wait.LogStrategy)
				if !ok {
					t.Fatalf("Strategy() = %T, want *wait.LogStrategy", got)
				}
				if s.Occurrence != 2 || !s.IsRegexp {
					t.Errorf("log strategy occurrence = %d regexp = %v", s.Occurrence, s.IsRegexp)
				}
			case *wait.HTTPStrategy:
				s, ok := got.(*wait.HTTPStrategy)
				if !ok {
					t.Fatalf("Strategy() = %T, want *wait.HTTPStrategy", got)
				}
				if s.Path != "/_health" || s.Port != "8081/tcp" {
					t.Errorf("http strategy path = %s port = %s", s.Path, s.Port)
				}
			case *wait.ExitStrategy:
				if _, ok := got.(*wait.ExitStrategy); !ok {
					t.Fatalf("Strategy() = %T, want *wait.ExitStrategy", got)
				}
			}
		})
	}
}

func TestWaitKind_String(t *testing.T) {
	tests := map[WaitKind]string{
		WaitNone:     "none",
		WaitLog:      "log",
		WaitHTTP:     "http",
		WaitExit:     "exit",
		WaitKind(42): "unknown",
	}
	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("WaitKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestDocker_NotStarted(t *testing.T) {
	d := Generic(Request{Image: "ghcr.io/aiven-open/karapace:5.0.3", Aliases: []string{"registry"}})
	ctx := context.Background()

	if d.Name() != "registry" {
		t.Errorf("Name() = %q, want alias", d.Name())
	}
	if d.IsRunning() {
		t.Error("IsRunning() = true before Start")
	}
	if _, err := d.Host(ctx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Host() error = %v, want ErrNotStarted", err)
	}
	if _, err := d.MappedPort(ctx, "8081/tcp"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("MappedPort() error = %v, want ErrNotStarted", err)
	}
	if _, err := d.Logs(ctx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Logs() error = %v, want ErrNotStarted", err)
	}
	if err := d.Stop(ctx); err != nil {
		t.Errorf("Stop() before Start error = %v", err)
	}
}

func TestDocker_StopRemovesOwnedNetwork(t *testing.T) {
	nw := &fakeNetwork{}
	owned := NewDocker("kafka", nw, true, nil)
	shared := NewDocker("registry", nw, false, nil)
	ctx := context.Background()

	if err := shared.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if nw.removed != 0 {
		t.Errorf("non-owner Stop removed network %d times", nw.removed)
	}

	if err := owned.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if nw.removed != 1 {
		t.Errorf("owner Stop removed network %d times, want 1", nw.removed)
	}
}

func TestDocker_StartFailureKeepsNothing(t *testing.T) {
	nw := &fakeNetwork{}
	boom := errors.New("boom")
	var gotNetwork string
	d := NewDocker("kcat", nw, false, func(_ context.Context, networkName string) (testcontainers.Container, error) {
		gotNetwork = networkName
		return nil, boom
	})

	err := d.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Start() error = %v, want wrapped boom", err)
	}
	if gotNetwork != "fake-net" {
		t.Errorf("run received network %q, want fake-net", gotNetwork)
	}
	if nw.created != 1 {
		t.Errorf("network created %d times, want 1", nw.created)
	}
	if d.Container() != nil {
		t.Error("Container() non-nil after failed start")
	}
}

func TestNewNetwork(t *testing.T) {
	a := NewNetwork("bridge")
	b := NewNetwork("bridge")
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("network ids %q and %q must be unique", a.ID(), b.ID())
	}
	if a.Name() != "" {
		t.Errorf("Name() = %q before Create", a.Name())
	}
	if err := a.Remove(context.Background()); err != nil {
		t.Errorf("Remove() before Create error = %v", err)
	}
}
