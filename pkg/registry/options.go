package registry

import (
	"context"
	"time"

	"github.com/abtreece/karapace-testcontainers/pkg/container"
	"github.com/abtreece/karapace-testcontainers/pkg/log"
	"github.com/abtreece/karapace-testcontainers/pkg/storage"
)

type builder struct {
	cfg     Config
	runtime container.Runtime
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures a registry built by New.
type Option func(*builder)

// WithConfig replaces the whole configuration, storage selector included.
// Options given after it still apply.
func WithConfig(cfg Config) Option {
	return func(b *builder) {
		b.cfg = cfg
	}
}

// WithAdvertisedName sets the network alias, advertised hostname, client id
// and app tag of the registry.
func WithAdvertisedName(name string) Option {
	return func(b *builder) {
		b.cfg.AdvertisedName = name
	}
}

// WithImage sets the registry image.
func WithImage(image string) Option {
	return func(b *builder) {
		b.cfg.Image = image
	}
}

// WithElectionStrategy sets the primary election strategy.
func WithElectionStrategy(s ElectionStrategy) Option {
	return func(b *builder) {
		b.cfg.ElectionStrategy = s
	}
}

// WithExpectedPrimary sets whether the registry is expected to become
// primary, which selects its wait strategy.
func WithExpectedPrimary(primary bool) Option {
	return func(b *builder) {
		b.cfg.ExpectedPrimary = primary
	}
}

// WithCompatibilityCheck enables or disables the image family assertion.
func WithCompatibilityCheck(enabled bool) Option {
	return func(b *builder) {
		b.cfg.CompatibilityCheck = enabled
	}
}

// WithStartupTimeout bounds the registry wait strategy.
func WithStartupTimeout(d time.Duration) Option {
	return func(b *builder) {
		b.cfg.StartupTimeout = d
	}
}

// WithStorage selects the backing broker. Storage selectors are last write
// wins: a later selector replaces an earlier one. Nil restores the default.
func WithStorage(backend *storage.Backend) Option {
	return func(b *builder) {
		if b.cfg.Storage != nil && backend != nil {
			log.Debug("Storage selector %s replaced by %s", b.cfg.Storage, backend)
		}
		b.cfg.Storage = backend
	}
}

// WithKafkaImage selects an owned Kafka broker materialized from image.
func WithKafkaImage(image string) Option {
	return WithStorage(storage.KafkaImage(image))
}

// WithKafkaContainer selects a caller-managed Kafka broker.
func WithKafkaContainer(h container.Handle) Option {
	return WithStorage(storage.KafkaContainer(h))
}

// WithRedpandaImage selects an owned Redpanda broker materialized from image.
func WithRedpandaImage(image string) Option {
	return WithStorage(storage.RedpandaImage(image))
}

// WithRedpandaContainer selects a caller-managed Redpanda broker.
func WithRedpandaContainer(h container.Handle) Option {
	return WithStorage(storage.RedpandaContainer(h))
}

// WithRuntime replaces the runtime used to materialize the registry
// container. The default is container.DockerRuntime.
func WithRuntime(rt container.Runtime) Option {
	return func(b *builder) {
		b.runtime = rt
	}
}
