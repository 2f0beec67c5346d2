package topology

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.yaml.in/yaml/v3"

	"github.com/abtreece/karapace-testcontainers/pkg/registry"
	"github.com/abtreece/karapace-testcontainers/pkg/storage"
)

// Config describes one shared broker and the registries attached to it.
type Config struct {
	Storage    StorageConfig    `toml:"storage" yaml:"storage"`
	Registries []RegistryConfig `toml:"registry" yaml:"registries"`
}

// StorageConfig selects the shared broker.
type StorageConfig struct {
	Kind  string `toml:"kind" yaml:"kind"`
	Image string `toml:"image" yaml:"image"`
}

// RegistryConfig describes one registry.
type RegistryConfig struct {
	Name             string `toml:"name" yaml:"name"`
	Image            string `toml:"image" yaml:"image"`
	ElectionStrategy string `toml:"election_strategy" yaml:"election_strategy"`
	StartupTimeout   string `toml:"startup_timeout" yaml:"startup_timeout"`

	// Pointers to distinguish unset from false
	Primary            *bool `toml:"primary" yaml:"primary"`
	CompatibilityCheck *bool `toml:"compatibility_check" yaml:"compatibility_check"`
}

// Default returns a topology of a single registry on the default Kafka broker.
func Default() Config {
	return Config{
		Storage:    StorageConfig{Kind: storage.Kafka.String()},
		Registries: []RegistryConfig{{Name: registry.DefaultAdvertisedName}},
	}
}

// Load reads a topology from a .toml, .yaml or .yml file. Unknown keys are
// rejected.
func Load(path string) (Config, error) {
	var cfg Config

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("unknown keys in %s: %v", path, undecoded)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported topology file extension %q (must be .toml, .yaml or .yml)", ext)
	}

	return cfg, nil
}

// Validate fills defaults in place and reports the first invalid setting.
// An empty topology gets one registry with the default name; the first
// registry is expected to become primary unless configured otherwise.
func (c *Config) Validate() error {
	if c.Storage.Kind == "" {
		c.Storage.Kind = storage.Kafka.String()
	}
	if _, err := storage.ParseKind(c.Storage.Kind); err != nil {
		return err
	}

	if len(c.Registries) == 0 {
		c.Registries = []RegistryConfig{{Name: registry.DefaultAdvertisedName}}
	}
	if len(c.Registries) == 1 && c.Registries[0].Name == "" {
		c.Registries[0].Name = registry.DefaultAdvertisedName
	}

	seen := make(map[string]bool, len(c.Registries))
	for i := range c.Registries {
		r := &c.Registries[i]
		if r.Name == "" {
			return fmt.Errorf("registry %d: name is required when a topology has several registries", i+1)
		}
		if seen[r.Name] {
			return fmt.Errorf("registry %d: duplicate name %q", i+1, r.Name)
		}
		seen[r.Name] = true

		if r.Primary == nil {
			primary := i == 0
			r.Primary = &primary
		}
		if r.ElectionStrategy != "" {
			if _, err := registry.ParseElectionStrategy(r.ElectionStrategy); err != nil {
				return fmt.Errorf("registry %s: %w", r.Name, err)
			}
		}
		if r.StartupTimeout != "" {
			if _, err := time.ParseDuration(r.StartupTimeout); err != nil {
				return fmt.Errorf("registry %s: invalid startup_timeout: %w", r.Name, err)
			}
		}
	}
	return nil
}

// options converts a validated registry entry into registry options.
func (r RegistryConfig) options() []registry.Option {
	opts := []registry.Option{registry.WithAdvertisedName(r.Name)}
	if r.Image != "" {
		opts = append(opts, registry.WithImage(r.Image))
	}
	if r.ElectionStrategy != "" {
		s, _ := registry.ParseElectionStrategy(r.ElectionStrategy)
		opts = append(opts, registry.WithElectionStrategy(s))
	}
	if r.StartupTimeout != "" {
		d, _ := time.ParseDuration(r.StartupTimeout)
		opts = append(opts, registry.WithStartupTimeout(d))
	}
	if r.Primary != nil {
		opts = append(opts, registry.WithExpectedPrimary(*r.Primary))
	}
	if r.CompatibilityCheck != nil {
		opts = append(opts, registry.WithCompatibilityCheck(*r.CompatibilityCheck))
	}
	return opts
}
