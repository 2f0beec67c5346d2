// Package topology runs one shared broker with several schema registries
// attached to it, such as a primary and its followers.
//
// The broker is owned by the Topology rather than by any registry: it is
// started before the first registry and stopped after the last one.
package topology

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abtreece/karapace-testcontainers/pkg/container"
	"github.com/abtreece/karapace-testcontainers/pkg/log"
	"github.com/abtreece/karapace-testcontainers/pkg/metrics"
	"github.com/abtreece/karapace-testcontainers/pkg/registry"
	"github.com/abtreece/karapace-testcontainers/pkg/storage"
)

// Topology is a shared broker and its registries.
type Topology struct {
	cfg        Config
	kind       storage.Kind
	runtime    container.Runtime
	broker     container.Handle
	storage    *storage.Backend
	registries []*registry.Container

	mu      sync.Mutex
	started bool
}

// Option configures a Topology.
type Option func(*Topology)

// WithRuntime sets the runtime used to materialize registries.
func WithRuntime(rt container.Runtime) Option {
	return func(t *Topology) {
		t.runtime = rt
	}
}

// WithBroker uses an existing broker instead of materializing the configured
// one. The Topology still starts and stops it.
func WithBroker(h container.Handle) Option {
	return func(t *Topology) {
		t.broker = h
	}
}

// New validates cfg and defines the broker and every registry. Nothing is
// started.
func New(cfg Config, opts ...Option) (*Topology, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}
	kind, _ := storage.ParseKind(cfg.Storage.Kind)

	t := &Topology{cfg: cfg, kind: kind}
	for _, opt := range opts {
		opt(t)
	}

	if t.broker == nil {
		switch kind {
		case storage.Kafka:
			t.broker = storage.DefaultKafka(cfg.Storage.Image)
		case storage.Redpanda:
			t.broker = storage.DefaultRedpanda(cfg.Storage.Image)
		}
	}
	t.broker = metrics.WrapHandle(t.broker, "broker")

	// The registries see a caller-managed broker so none of them stops it.
	switch kind {
	case storage.Kafka:
		t.storage = storage.KafkaContainer(t.broker)
	case storage.Redpanda:
		t.storage = storage.RedpandaContainer(t.broker)
	}

	for _, rc := range cfg.Registries {
		ropts := append(rc.options(), registry.WithStorage(t.storage))
		if t.runtime != nil {
			ropts = append(ropts, registry.WithRuntime(t.runtime))
		}
		r, err := registry.New(ropts...)
		if err != nil {
			return nil, fmt.Errorf("registry %s: %w", rc.Name, err)
		}
		t.registries = append(t.registries, r)
	}

	log.Debug("Defined topology: %s broker %s, %d registries", kind, t.broker.Name(), len(t.registries))
	return t, nil
}

// Start starts the broker, then every registry in configuration order. It
// stops at the first failure; call Stop to release what was started.
func (t *Topology) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return errors.New("topology already started")
	}
	t.started = true
	t.mu.Unlock()

	log.Info("Starting %s broker %s", t.kind, t.broker.Name())
	if err := t.broker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start %s broker: %w", t.kind, err)
	}

	for _, r := range t.registries {
		if err := r.Start(ctx); err != nil {
			return err
		}
	}
	log.Info("Topology ready: %d registries on %s", len(t.registries), t.kind)
	return nil
}

// Stop stops the registries in reverse order, then the broker. Every
// component is stopped even when an earlier one fails; errors are joined.
func (t *Topology) Stop(ctx context.Context) error {
	var errs []error
	for i := len(t.registries) - 1; i >= 0; i-- {
		if err := t.registries[i].Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	log.Info("Stopping %s broker %s", t.kind, t.broker.Name())
	if err := t.broker.Stop(ctx); err != nil {
		log.Warning("Failed to stop broker: %v", err)
		errs = append(errs, fmt.Errorf("failed to stop %s broker: %w", t.kind, err))
	}
	return errors.Join(errs...)
}

// Ready returns nil when the broker and every registry are running.
func (t *Topology) Ready(_ context.Context) error {
	if !t.broker.IsRunning() {
		return fmt.Errorf("%s broker is not running", t.kind)
	}
	for _, r := range t.registries {
		if st := r.State(); st != registry.Running {
			return fmt.Errorf("registry %s is %s", r.Name(), st)
		}
	}
	return nil
}

// ReadyDetailed reports the state of every component.
func (t *Topology) ReadyDetailed(ctx context.Context) (*metrics.HealthResult, error) {
	start := time.Now()
	err := t.Ready(ctx)

	details := map[string]string{
		"broker": t.kind.String() + " " + brokerState(t.broker),
	}
	for _, r := range t.registries {
		details[r.Name()] = r.State().String()
	}

	result := &metrics.HealthResult{
		Healthy:   err == nil,
		Message:   fmt.Sprintf("%d registries on %s", len(t.registries), t.kind),
		Duration:  metrics.DurationMillis(time.Since(start)),
		Details:   details,
		CheckedAt: time.Now(),
	}
	if err != nil {
		result.Message = err.Error()
	}
	return result, err
}

func brokerState(h container.Handle) string {
	if h.IsRunning() {
		return "running"
	}
	return "not running"
}

// Endpoints returns the base URL of every running registry keyed by name.
func (t *Topology) Endpoints(ctx context.Context) (map[string]string, error) {
	endpoints := make(map[string]string, len(t.registries))
	for _, r := range t.registries {
		ep, err := r.Endpoint(ctx)
		if err != nil {
			return nil, err
		}
		endpoints[r.Name()] = ep
	}
	return endpoints, nil
}

// Brokers returns the host-reachable bootstrap address of the broker.
func (t *Topology) Brokers(ctx context.Context) (string, error) {
	return t.storage.Brokers(ctx)
}

// Storage returns the shared broker definition.
func (t *Topology) Storage() *storage.Backend {
	return t.storage
}

// Registries returns the registries in configuration order.
func (t *Topology) Registries() []*registry.Container {
	return t.registries
}
