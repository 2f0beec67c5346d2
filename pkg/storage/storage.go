// Package storage describes the Kafka-protocol broker backing a schema
// registry. A Backend is one of two kinds, Kafka or Redpanda, and is either
// materialized from an image (and then owned by whoever acquires it first) or
// wraps a caller-supplied handle that is never owned.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/abtreece/karapace-testcontainers/pkg/container"
	"github.com/abtreece/karapace-testcontainers/pkg/log"
)

// Alias is the network alias brokers of both kinds are reachable under.
const Alias = "kafka"

// ErrInvalidBackend is matched by every error returned from Backend.Validate.
var ErrInvalidBackend = errors.New("invalid storage backend")

// Kind identifies a broker implementation.
type Kind int

const (
	// Kafka is Apache Kafka running in KRaft mode.
	Kafka Kind = iota + 1
	// Redpanda is a Redpanda broker.
	Redpanda
)

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "kafka":
		return Kafka, nil
	case "redpanda":
		return Redpanda, nil
	default:
		return 0, fmt.Errorf("invalid storage kind: %s (must be 'kafka' or 'redpanda')", s)
	}
}

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case Kafka:
		return "kafka"
	case Redpanda:
		return "redpanda"
	default:
		return "unknown"
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	v, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// profile is the fixed per-kind behaviour table. preStart is slept after the
// broker is running and before the registry starts: Kafka's KRaft image logs
// readiness before its metadata is consistent. postStart is slept after the
// registry reports healthy: with Redpanda the registry answers before topic
// metadata has propagated. Both are workarounds for upstream readiness races.
type profile struct {
	bootstrapPort int
	preStart      time.Duration
	postStart     time.Duration
	defaultImage  string
	materialize   func(image string) container.Handle
}

func profileOf(k Kind) profile {
	switch k {
	case Kafka:
		return profile{
			bootstrapPort: KafkaBrokerPort,
			preStart:      time.Second,
			defaultImage:  DefaultKafkaImage,
			materialize:   func(image string) container.Handle { return DefaultKafka(image) },
		}
	case Redpanda:
		return profile{
			bootstrapPort: RedpandaListenerPort,
			postStart:     5 * time.Second,
			defaultImage:  DefaultRedpandaImage,
			materialize:   func(image string) container.Handle { return DefaultRedpanda(image) },
		}
	}
	panic(fmt.Sprintf("storage: unknown kind %d", int(k)))
}

// Backend is a broker definition. Construct it with KafkaImage, KafkaContainer,
// RedpandaImage or RedpandaContainer; a zero Backend is invalid.
type Backend struct {
	kind  Kind
	image string
	// handle is the caller-supplied broker. Exactly one of image and handle is set.
	handle      container.Handle
	materialize func(image string) container.Handle

	mu       sync.Mutex
	resolved container.Handle
	acquired bool
}

// KafkaImage returns a Kafka backend materialized from image on first use.
// An empty image selects DefaultKafkaImage.
func KafkaImage(image string) *Backend {
	return fromImage(Kafka, image)
}

// KafkaContainer returns a Kafka backend wrapping a caller-managed broker.
func KafkaContainer(h container.Handle) *Backend {
	return &Backend{kind: Kafka, handle: h}
}

// RedpandaImage returns a Redpanda backend materialized from image on first use.
// An empty image selects DefaultRedpandaImage.
func RedpandaImage(image string) *Backend {
	return fromImage(Redpanda, image)
}

// RedpandaContainer returns a Redpanda backend wrapping a caller-managed broker.
func RedpandaContainer(h container.Handle) *Backend {
	return &Backend{kind: Redpanda, handle: h}
}

func fromImage(k Kind, image string) *Backend {
	if image == "" {
		image = profileOf(k).defaultImage
	}
	return &Backend{kind: k, image: image}
}

// WithMaterializer replaces the function an image backend builds its broker
// with, DefaultKafka or DefaultRedpanda otherwise. It has no effect once the
// backend has been resolved or on caller-supplied brokers.
func (b *Backend) WithMaterializer(fn func(image string) container.Handle) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.materialize = fn
	return b
}

// Validate reports a backend that has an unknown kind or neither an image
// nor a broker, such as a zero Backend or KafkaContainer(nil).
func (b *Backend) Validate() error {
	if b.kind != Kafka && b.kind != Redpanda {
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidBackend, int(b.kind))
	}
	if b.image == "" && b.handle == nil {
		return fmt.Errorf("%w: %s backend has neither an image nor a broker container", ErrInvalidBackend, b.kind)
	}
	return nil
}

// String describes the backend for logs.
func (b *Backend) String() string {
	switch {
	case b.handle != nil:
		return b.kind.String() + " container " + b.handle.Name()
	case b.image != "":
		return b.kind.String() + " image " + b.image
	default:
		return b.kind.String() + " without broker"
	}
}

// Kind returns the broker kind.
func (b *Backend) Kind() Kind {
	return b.kind
}

// Image returns the image the backend is materialized from, or "" for
// caller-supplied brokers.
func (b *Backend) Image() string {
	return b.image
}

// BootstrapURI returns the address the registry uses to reach the broker on
// the shared network.
func (b *Backend) BootstrapURI() string {
	return Alias + ":" + strconv.Itoa(profileOf(b.kind).bootstrapPort)
}

// PreStartDelay returns how long to wait between broker start and registry start.
func (b *Backend) PreStartDelay() time.Duration {
	return profileOf(b.kind).preStart
}

// PostStartDelay returns how long to wait after the registry reports ready.
func (b *Backend) PostStartDelay() time.Duration {
	return profileOf(b.kind).postStart
}

// OwnsLifecycle reports whether the backend is materialized from an image
// rather than supplied by the caller.
func (b *Backend) OwnsLifecycle() bool {
	return b.handle == nil && b.image != ""
}

// Resolve returns the broker handle. Image backends materialize their default
// topology on the first call and return the same handle afterwards. The
// broker itself is not started.
func (b *Backend) Resolve() container.Handle {
	if b.handle != nil {
		return b.handle
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.resolved == nil {
		log.Debug("Materializing %s storage from %s", b.kind, b.image)
		materialize := b.materialize
		if materialize == nil {
			materialize = profileOf(b.kind).materialize
		}
		b.resolved = materialize(b.image)
	}
	return b.resolved
}

// Acquire resolves the broker and reports whether the caller is responsible
// for stopping it. Only the first acquirer of an image backend owns it;
// caller-supplied brokers are never owned.
func (b *Backend) Acquire() (container.Handle, bool) {
	h := b.Resolve()
	if !b.OwnsLifecycle() {
		return h, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	owns := !b.acquired
	b.acquired = true
	return h, owns
}

// Brokers returns the host-reachable bootstrap address of a running broker.
func (b *Backend) Brokers(ctx context.Context) (string, error) {
	h := b.Resolve()
	host, err := h.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := h.MappedPort(ctx, ExternalPort)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", host, port), nil
}
