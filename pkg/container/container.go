// Package container describes the container runtime collaborator used by the
// orchestration core: lazily materialized container handles, the networks they
// join and the readiness strategies that gate them.
//
// The Docker implementation is built on testcontainers-go. Tests substitute
// their own Runtime and Handle implementations.
package container

import (
	"context"
	"time"
)

// Handle is a container that may or may not be running yet. Start
// materializes the container on first use.
type Handle interface {
	// Name returns a short label for logs, usually the image or network alias.
	Name() string

	// IsRunning reports whether the container process is up.
	IsRunning() bool

	// Start creates and starts the container and blocks until its wait
	// strategy is satisfied.
	Start(ctx context.Context) error

	// Stop stops and removes the container. Stopping a container that is not
	// running is a no-op.
	Stop(ctx context.Context) error

	// Host returns the host on which mapped ports are reachable.
	Host(ctx context.Context) (string, error)

	// MappedPort returns the host port bound to the given container port,
	// for example "8081/tcp".
	MappedPort(ctx context.Context, port string) (int, error)

	// Logs returns everything the container has written so far.
	Logs(ctx context.Context) (string, error)

	// Network returns the network the container joins, or nil.
	Network() Network
}

// Network is a container network that is created on first use.
type Network interface {
	// Name returns the runtime name, empty until the network is created.
	Name() string

	// Create creates the network if it does not exist yet.
	Create(ctx context.Context) error

	// Remove removes the network. Removing a network that was never created
	// is a no-op.
	Remove(ctx context.Context) error
}

// Request describes a container to materialize.
type Request struct {
	Image        string
	Entrypoint   []string
	Cmd          []string
	Env          map[string]string
	ExposedPorts []string
	Labels       map[string]string

	// Network to join and the aliases to register on it.
	Network Network
	Aliases []string

	WaitingFor Wait
}

// Runtime materializes container handles from requests.
type Runtime interface {
	Define(req Request) Handle
}

// WaitKind enumerates the readiness strategies the core selects from.
type WaitKind int

const (
	// WaitNone considers the container ready once it has started.
	WaitNone WaitKind = iota
	// WaitLog waits for a log pattern to appear a minimum number of times.
	WaitLog
	// WaitHTTP polls an HTTP path until it answers successfully.
	WaitHTTP
	// WaitExit waits for the container process to exit.
	WaitExit
)

func (k WaitKind) String() string {
	switch k {
	case WaitNone:
		return "none"
	case WaitLog:
		return "log"
	case WaitHTTP:
		return "http"
	case WaitExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Wait is a readiness strategy descriptor.
type Wait struct {
	Kind WaitKind

	// Pattern is a regular expression matched against log lines (WaitLog).
	Pattern string
	// Occurrences is the minimum number of matches required (WaitLog).
	Occurrences int

	// Path and Port identify the HTTP endpoint to poll (WaitHTTP).
	Path string
	Port string

	// Timeout bounds the wait. Zero means the runtime default.
	Timeout time.Duration
}

// ForLog waits until pattern has been logged at least occurrences times.
func ForLog(pattern string, occurrences int, timeout time.Duration) Wait {
	return Wait{Kind: WaitLog, Pattern: pattern, Occurrences: occurrences, Timeout: timeout}
}

// ForHTTP waits until GET path on port answers with a 2xx status.
func ForHTTP(path, port string, timeout time.Duration) Wait {
	return Wait{Kind: WaitHTTP, Path: path, Port: port, Timeout: timeout}
}

// ForExit waits until the container process exits.
func ForExit(timeout time.Duration) Wait {
	return Wait{Kind: WaitExit, Timeout: timeout}
}
