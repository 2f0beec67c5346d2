// Package registry runs a Karapace schema registry against a Kafka or Redpanda
// broker.
//
// A Container is built once with New and follows a single lifecycle:
//
//	NotStarted -> Starting -> Running -> Stopped
//
// Start brings up the broker first when it is not running yet, then the
// registry, honouring the broker's readiness delays. Stop always stops the
// registry and stops the broker only when this Container owns it.
package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/abtreece/karapace-testcontainers/pkg/container"
	"github.com/abtreece/karapace-testcontainers/pkg/image"
	"github.com/abtreece/karapace-testcontainers/pkg/log"
	"github.com/abtreece/karapace-testcontainers/pkg/metrics"
	"github.com/abtreece/karapace-testcontainers/pkg/storage"
)

const (
	readyLogPattern = `.*Ready in \d+\.\d+ seconds.*`
	// The registry logs the ready line once for its internal bootstrap and
	// again once it is reachable from outside.
	readyLogOccurrences = 2
	healthPath          = "/_health"
)

var command = []string{"python3", "-m", "karapace"}

// State is the lifecycle state of a Container.
type State int

const (
	NotStarted State = iota
	Starting
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Container is a schema registry and its backing broker.
type Container struct {
	cfg         Config
	storage     *storage.Backend
	broker      container.Handle
	ownsStorage bool
	env         map[string]string
	wait        container.Wait
	handle      container.Handle
	sleep       func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	state State
}

// New validates the configuration, asserts image compatibility, acquires the
// broker and defines the registry container. Nothing is started.
func New(opts ...Option) (*Container, error) {
	b := &builder{
		cfg:     DefaultConfig(),
		runtime: container.DockerRuntime{},
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(b)
	}

	cfg := b.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.CompatibilityCheck {
		if err := image.AssertCompatible(cfg.Image, CompatibleImage); err != nil {
			return nil, &CompatibilityError{Image: cfg.Image, Base: CompatibleImage, Err: err}
		}
	}
	if b.runtime == nil {
		return nil, &ConfigError{Field: "runtime", Err: errors.New("must not be nil")}
	}

	if cfg.Storage == nil {
		cfg.Storage = storage.KafkaImage("")
	}
	broker, owns := cfg.Storage.Acquire()

	c := &Container{
		cfg:         cfg,
		storage:     cfg.Storage,
		broker:      broker,
		ownsStorage: owns,
		env:         deriveEnv(cfg, cfg.Storage.BootstrapURI()),
		wait:        waitStrategy(cfg),
		sleep:       b.sleep,
	}

	nw := broker.Network()
	if nw == nil {
		log.Warning("Storage %s joins no network; %s will not resolve %s", broker.Name(), cfg.AdvertisedName, cfg.Storage.BootstrapURI())
	}
	c.handle = metrics.WrapHandle(b.runtime.Define(container.Request{
		Image:        cfg.Image,
		Cmd:          command,
		Env:          maps.Clone(c.env),
		ExposedPorts: []string{Port},
		Network:      nw,
		Aliases:      []string{cfg.AdvertisedName},
		WaitingFor:   c.wait,
	}), "registry")

	log.Debug("Defined registry %s (image %s, storage %s, owns storage %t, wait %s)",
		cfg.AdvertisedName, cfg.Image, cfg.Storage.Kind(), owns, c.wait.Kind)
	return c, nil
}

// Run builds a Container and starts it. On a failed start the Container is
// still returned so the caller can Stop it.
func Run(ctx context.Context, opts ...Option) (*Container, error) {
	c, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		return c, err
	}
	return c, nil
}

func waitStrategy(cfg Config) container.Wait {
	if cfg.ExpectedPrimary {
		return container.ForLog(readyLogPattern, readyLogOccurrences, cfg.StartupTimeout)
	}
	return container.ForHTTP(healthPath, Port, cfg.StartupTimeout)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Start starts the broker when it is not running, waits the broker's
// pre-start delay, starts the registry and blocks until its wait strategy is
// satisfied, then waits the broker's post-start delay.
//
// Start may be called once. A failed Start leaves the Container in Starting;
// call Stop to release whatever was started.
func (c *Container) Start(ctx context.Context) error {
	name := c.cfg.AdvertisedName

	c.mu.Lock()
	if c.state != NotStarted {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot start %s while %s", ErrInvalidState, name, st)
	}
	c.state = Starting
	c.mu.Unlock()

	began := time.Now()
	err := c.start(ctx)
	metrics.RecordStart(name, c.storage.Kind().String(), time.Since(began), err)
	if err != nil {
		log.Error("Registry %s failed to start: %v", name, err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Starting {
		return fmt.Errorf("%w: %s was stopped while starting", ErrInvalidState, name)
	}
	c.state = Running
	metrics.SetRunning(name, true)
	log.Info("Registry %s is running (storage %s, took %s)", name, c.storage.Kind(), time.Since(began).Round(time.Millisecond))
	return nil
}

func (c *Container) start(ctx context.Context) error {
	name := c.cfg.AdvertisedName

	// Not synchronized with other registries sharing the broker; callers that
	// start peers concurrently should start the broker first.
	if !c.broker.IsRunning() {
		log.Info("Starting %s storage %s for %s", c.storage.Kind(), c.broker.Name(), name)
		if err := c.broker.Start(ctx); err != nil {
			return &StartupError{Name: name, Phase: "storage", Err: err}
		}
	}

	if err := c.delay(ctx, "pre-start", c.storage.PreStartDelay()); err != nil {
		return &StartupError{Name: name, Phase: "pre-start delay", Err: err}
	}

	log.Info("Starting registry %s from %s", name, c.cfg.Image)
	if err := c.handle.Start(ctx); err != nil {
		return &StartupError{Name: name, Phase: "registry", Err: err}
	}

	if err := c.delay(ctx, "post-start", c.storage.PostStartDelay()); err != nil {
		return &StartupError{Name: name, Phase: "post-start delay", Err: err}
	}
	return nil
}

// delay sleeps for one of the broker's readiness workarounds.
func (c *Container) delay(ctx context.Context, phase string, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	log.Debug("Waiting %s %s delay for %s storage", d, phase, c.storage.Kind())
	metrics.RecordDelay(c.storage.Kind().String(), phase, d)
	return c.sleep(ctx, d)
}

// Stop stops the registry and, when this Container owns it, the broker. The
// Container ends in Stopped even when teardown fails; failures are logged and
// returned wrapped in ErrTeardown. Stopping a stopped Container is a no-op.
func (c *Container) Stop(ctx context.Context) error {
	name := c.cfg.AdvertisedName

	c.mu.Lock()
	if c.state == Stopped {
		c.mu.Unlock()
		return nil
	}
	c.state = Stopped
	c.mu.Unlock()

	var errs []error
	if err := c.handle.Stop(ctx); err != nil {
		log.Warning("Failed to stop registry %s: %v", name, err)
		errs = append(errs, fmt.Errorf("failed to stop registry %s: %w", name, err))
	}

	if c.ownsStorage {
		log.Info("Stopping %s storage %s owned by %s", c.storage.Kind(), c.broker.Name(), name)
		if err := c.broker.Stop(ctx); err != nil {
			log.Warning("Failed to stop storage of %s: %v", name, err)
			errs = append(errs, fmt.Errorf("failed to stop storage of %s: %w", name, err))
		}
	} else {
		log.Debug("Leaving storage %s running; %s does not own it", c.broker.Name(), name)
	}

	metrics.SetRunning(name, false)
	if len(errs) > 0 {
		err := fmt.Errorf("%w: %w", ErrTeardown, errors.Join(errs...))
		metrics.RecordStop(name, err)
		return err
	}
	metrics.RecordStop(name, nil)
	log.Info("Registry %s stopped", name)
	return nil
}

// State returns the current lifecycle state.
func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Name returns the advertised name.
func (c *Container) Name() string {
	return c.cfg.AdvertisedName
}

// Config returns the frozen configuration.
func (c *Container) Config() Config {
	return c.cfg
}

// Storage returns the backing broker definition.
func (c *Container) Storage() *storage.Backend {
	return c.storage
}

// OwnsStorage reports whether Stop also stops the broker.
func (c *Container) OwnsStorage() bool {
	return c.ownsStorage
}

// Env returns a copy of the environment passed to the registry process.
func (c *Container) Env() map[string]string {
	return maps.Clone(c.env)
}

// WaitStrategy returns the readiness strategy gating Start.
func (c *Container) WaitStrategy() container.Wait {
	return c.wait
}

// Host returns the host the registry port is reachable on.
func (c *Container) Host(ctx context.Context) (string, error) {
	if err := c.requireRunning(); err != nil {
		return "", err
	}
	return c.handle.Host(ctx)
}

// MappedPort returns the host port bound to the registry HTTP port.
func (c *Container) MappedPort(ctx context.Context) (int, error) {
	if err := c.requireRunning(); err != nil {
		return 0, err
	}
	return c.handle.MappedPort(ctx, Port)
}

// Endpoint returns the registry base URL, for example http://localhost:32768.
func (c *Container) Endpoint(ctx context.Context) (string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := c.MappedPort(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://%s:%d", host, port), nil
}

// Logs returns the registry container output.
func (c *Container) Logs(ctx context.Context) (string, error) {
	return c.handle.Logs(ctx)
}

func (c *Container) requireRunning() error {
	if st := c.State(); st != Running {
		return fmt.Errorf("%w: %s is %s", ErrNotRunning, c.cfg.AdvertisedName, st)
	}
	return nil
}
