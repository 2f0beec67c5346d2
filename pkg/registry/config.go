package registry

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/abtreece/karapace-testcontainers/pkg/image"
	"github.com/abtreece/karapace-testcontainers/pkg/storage"
)

const (
	// DefaultImage is the registry image used when none is configured.
	DefaultImage = "ghcr.io/aiven-open/karapace:5.0.3"
	// CompatibleImage is the repository every registry image must belong to
	// unless the compatibility check is disabled.
	CompatibleImage = "ghcr.io/aiven-open/karapace"
	// DefaultAdvertisedName is the default network alias and client id.
	DefaultAdvertisedName = "karapace-schema-registry"
	// DefaultStartupTimeout bounds the registry wait strategy.
	DefaultStartupTimeout = 60 * time.Second
	// Port is the registry HTTP port inside the container.
	Port = "8081/tcp"
)

var dnsLabel = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// Config is the registry configuration. It is frozen by New; later changes to
// the value passed in have no effect on the built Container.
type Config struct {
	// AdvertisedName is used as network alias, advertised hostname, client id
	// and app tag. It must be unique among registries sharing a broker.
	AdvertisedName string
	Image          string

	// Storage is the backing broker. Nil selects an owned Kafka broker
	// from storage.DefaultKafkaImage.
	Storage *storage.Backend

	ElectionStrategy ElectionStrategy

	// ExpectedPrimary selects the wait strategy only. It has no effect on
	// which peer is elected.
	ExpectedPrimary    bool
	CompatibilityCheck bool
	StartupTimeout     time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		AdvertisedName:     DefaultAdvertisedName,
		Image:              DefaultImage,
		ElectionStrategy:   Highest,
		ExpectedPrimary:    true,
		CompatibilityCheck: true,
		StartupTimeout:     DefaultStartupTimeout,
	}
}

// Validate reports the first invalid field as a *ConfigError. Image
// compatibility is checked separately by New.
func (c Config) Validate() error {
	switch {
	case c.AdvertisedName == "":
		return &ConfigError{Field: "advertised name", Err: errors.New("must not be empty")}
	case len(c.AdvertisedName) > 63 || !dnsLabel.MatchString(c.AdvertisedName):
		return &ConfigError{Field: "advertised name", Err: fmt.Errorf("%q is not a valid DNS label", c.AdvertisedName)}
	}

	if _, err := image.Parse(c.Image); err != nil {
		return &ConfigError{Field: "image", Err: err}
	}

	if c.Storage != nil {
		if err := c.Storage.Validate(); err != nil {
			return &ConfigError{Field: "storage", Err: err}
		}
	}

	if c.ElectionStrategy != Highest && c.ElectionStrategy != Lowest {
		return &ConfigError{Field: "election strategy", Err: fmt.Errorf("unknown value %d", int(c.ElectionStrategy))}
	}

	if c.StartupTimeout <= 0 {
		return &ConfigError{Field: "startup timeout", Err: fmt.Errorf("must be positive, got %s", c.StartupTimeout)}
	}
	return nil
}
