package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"sync"

	"github.com/containerd/errdefs"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/abtreece/karapace-testcontainers/pkg/log"
)

// ErrNotStarted is returned when a handle is queried before it was started.
var ErrNotStarted = errors.New("container not started")

// Logger routes testcontainers output through the package logger at debug level.
var Logger tclog.Logger = logAdapter{}

type logAdapter struct{}

func (logAdapter) Printf(format string, v ...any) {
	log.Debug(format, v...)
}

// RunFunc creates and starts a container attached to the named network. The
// network name is empty when the container joins no network. On failure the
// returned container, when non-nil, is kept so that Stop can remove it.
type RunFunc func(ctx context.Context, networkName string) (testcontainers.Container, error)

// Docker is a Handle backed by a testcontainers container.
type Docker struct {
	name        string
	network     Network
	ownsNetwork bool
	run         RunFunc

	mu  sync.Mutex
	ctr testcontainers.Container
}

// NewDocker returns a handle that materializes its container with run on
// first Start. When ownsNetwork is set, Stop also removes nw.
func NewDocker(name string, nw Network, ownsNetwork bool, run RunFunc) *Docker {
	return &Docker{
		name:        name,
		network:     nw,
		ownsNetwork: ownsNetwork,
		run:         run,
	}
}

// Generic returns a handle for a plain image described by req.
func Generic(req Request) *Docker {
	name := req.Image
	if len(req.Aliases) > 0 {
		name = req.Aliases[0]
	}

	return NewDocker(name, req.Network, false, func(ctx context.Context, networkName string) (testcontainers.Container, error) {
		cr := testcontainers.ContainerRequest{
			Image:        req.Image,
			Entrypoint:   req.Entrypoint,
			Cmd:          req.Cmd,
			Env:          maps.Clone(req.Env),
			ExposedPorts: req.ExposedPorts,
			Labels:       maps.Clone(req.Labels),
			WaitingFor:   Strategy(req.WaitingFor),
		}
		if networkName != "" {
			cr.Networks = []string{networkName}
			cr.NetworkAliases = map[string][]string{networkName: req.Aliases}
		}

		return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: cr,
			Started:          true,
			Logger:           Logger,
		})
	})
}

// DockerRuntime defines generic testcontainers handles.
type DockerRuntime struct{}

// Define implements Runtime.
func (DockerRuntime) Define(req Request) Handle {
	return Generic(req)
}

// Strategy converts a Wait descriptor into a testcontainers wait strategy.
// WaitNone yields nil.
func Strategy(w Wait) wait.Strategy {
	switch w.Kind {
	case WaitLog:
		occurrences := w.Occurrences
		if occurrences < 1 {
			occurrences = 1
		}
		s := wait.ForLog(w.Pattern).AsRegexp().WithOccurrence(occurrences)
		if w.Timeout > 0 {
			s = s.WithStartupTimeout(w.Timeout)
		}
		return s
	case WaitHTTP:
		s := wait.ForHTTP(w.Path).WithPort(nat.Port(w.Port))
		if w.Timeout > 0 {
			s = s.WithStartupTimeout(w.Timeout)
		}
		return s
	case WaitExit:
		s := wait.ForExit()
		if w.Timeout > 0 {
			s = s.WithExitTimeout(w.Timeout)
		}
		return s
	default:
		return nil
	}
}

// Name implements Handle.
func (d *Docker) Name() string {
	return d.name
}

// Network implements Handle.
func (d *Docker) Network() Network {
	return d.network
}

// Container returns the underlying testcontainers container, nil until started.
func (d *Docker) Container() testcontainers.Container {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctr
}

// IsRunning implements Handle.
func (d *Docker) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctr != nil && d.ctr.IsRunning()
}

// Start implements Handle.
func (d *Docker) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctr != nil {
		if d.ctr.IsRunning() {
			return nil
		}
		if err := d.ctr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start %s container: %w", d.name, err)
		}
		return nil
	}

	networkName := ""
	if d.network != nil {
		if err := d.network.Create(ctx); err != nil {
			return fmt.Errorf("failed to create network for %s: %w", d.name, err)
		}
		networkName = d.network.Name()
	}

	log.Debug("Starting %s container (network %q)", d.name, networkName)
	ctr, err := d.run(ctx, networkName)
	if ctr != nil {
		d.ctr = ctr
	}
	if err != nil {
		return fmt.Errorf("failed to start %s container: %w", d.name, err)
	}
	return nil
}

// Stop implements Handle. The container is removed; a missing container is
// treated as already stopped.
func (d *Docker) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	if d.ctr != nil {
		if err := d.ctr.Terminate(ctx); err != nil && !errdefs.IsNotFound(err) {
			errs = append(errs, fmt.Errorf("failed to terminate %s container: %w", d.name, err))
		}
		d.ctr = nil
	}

	if d.ownsNetwork && d.network != nil {
		if err := d.network.Remove(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove network of %s: %w", d.name, err))
		}
	}

	return errors.Join(errs...)
}

// Host implements Handle.
func (d *Docker) Host(ctx context.Context) (string, error) {
	ctr := d.Container()
	if ctr == nil {
		return "", fmt.Errorf("%s: %w", d.name, ErrNotStarted)
	}
	return ctr.Host(ctx)
}

// MappedPort implements Handle.
func (d *Docker) MappedPort(ctx context.Context, port string) (int, error) {
	ctr := d.Container()
	if ctr == nil {
		return 0, fmt.Errorf("%s: %w", d.name, ErrNotStarted)
	}
	p, err := ctr.MappedPort(ctx, nat.Port(port))
	if err != nil {
		return 0, fmt.Errorf("failed to get mapped port %s of %s: %w", port, d.name, err)
	}
	return p.Int(), nil
}

// Logs implements Handle.
func (d *Docker) Logs(ctx context.Context) (string, error) {
	ctr := d.Container()
	if ctr == nil {
		return "", fmt.Errorf("%s: %w", d.name, ErrNotStarted)
	}
	rc, err := ctr.Logs(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read logs of %s: %w", d.name, err)
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read logs of %s: %w", d.name, err)
	}
	return string(b), nil
}
