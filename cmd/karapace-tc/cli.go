package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/alecthomas/kong"

	"github.com/abtreece/karapace-testcontainers/pkg/container"
	"github.com/abtreece/karapace-testcontainers/pkg/diag"
	"github.com/abtreece/karapace-testcontainers/pkg/log"
	"github.com/abtreece/karapace-testcontainers/pkg/metrics"
	"github.com/abtreece/karapace-testcontainers/pkg/registry"
	"github.com/abtreece/karapace-testcontainers/pkg/service"
	"github.com/abtreece/karapace-testcontainers/pkg/shutdown"
	"github.com/abtreece/karapace-testcontainers/pkg/storage"
	"github.com/abtreece/karapace-testcontainers/pkg/topology"
)

const (
	defaultStorageKind      = "kafka"
	defaultElection         = "highest"
	defaultFollowerElection = "lowest"
	defaultShutdownTimeout  = 30 * time.Second
)

// CLI is the root command structure
type CLI struct {
	LogLevel   string `name:"log-level" help:"log level (debug, info, warn, error)" default:""`
	LogFormat  string `name:"log-format" help:"log format (text, json)" default:""`
	ConfigFile string `name:"config-file" help:"topology file (.toml, .yaml or .yml)" env:"KARAPACE_TC_CONFIG" type:"path"`

	Version VersionFlag `help:"print version and exit"`

	Up        UpCmd        `cmd:"" name:"up" help:"Run a broker and its schema registries until signalled"`
	Listeners ListenersCmd `cmd:"" name:"listeners" help:"Start a broker and print the listeners it advertises"`
}

// VersionFlag is a custom flag type that prints version and exits
type VersionFlag bool

func (v VersionFlag) BeforeApply(app *kong.Kong) error {
	fmt.Printf("karapace-tc %s (Git SHA: %s, Go Version: %s)\n", Version, GitSHA, runtime.Version())
	os.Exit(0)
	return nil
}

// parserOptions are shared by main and the tests.
func parserOptions() []kong.Option {
	return []kong.Option{
		kong.Name("karapace-tc"),
		kong.Description("Run Karapace schema registries on a Kafka or Redpanda broker in containers"),
		kong.UsageOnError(),
		kong.Vars{
			"default_name":            registry.DefaultAdvertisedName,
			"default_image":           registry.DefaultImage,
			"default_startup_timeout": registry.DefaultStartupTimeout.String(),
			"default_shutdown":        defaultShutdownTimeout.String(),
		},
	}
}

// StorageFlags select the broker.
type StorageFlags struct {
	Storage      string `help:"storage backend (kafka, redpanda)" default:"kafka" enum:"kafka,redpanda"`
	StorageImage string `name:"storage-image" help:"storage image (defaults to the backend's default image)"`
}

func (s StorageFlags) backend() (*storage.Backend, error) {
	kind, err := storage.ParseKind(s.Storage)
	if err != nil {
		return nil, err
	}
	if kind == storage.Redpanda {
		return storage.RedpandaImage(s.StorageImage), nil
	}
	return storage.KafkaImage(s.StorageImage), nil
}

// UpCmd runs a topology until SIGINT or SIGTERM.
type UpCmd struct {
	StorageFlags

	Name                 string        `help:"advertised name of the primary registry" default:"${default_name}"`
	Image                string        `help:"registry image" default:"${default_image}"`
	ElectionStrategy     string        `name:"election-strategy" help:"election strategy of the primary (highest, lowest)" default:"highest" enum:"highest,lowest"`
	Followers            int           `help:"number of follower registries sharing the broker" default:"0"`
	FollowerElection     string        `name:"follower-election-strategy" help:"election strategy of the followers (highest, lowest)" default:"lowest" enum:"highest,lowest"`
	NoCompatibilityCheck bool          `name:"no-compatibility-check" help:"allow images outside the Karapace repository"`
	StartupTimeout       time.Duration `name:"startup-timeout" help:"how long each registry may take to become ready" default:"${default_startup_timeout}"`

	MetricsAddr      string        `name:"metrics-addr" help:"address to serve /metrics, /health and /ready on (e.g. :9100)"`
	LogListeners     bool          `name:"log-listeners" help:"log the broker's advertised listeners once started"`
	SystemdNotify    bool          `name:"systemd-notify" help:"send readiness notifications to systemd"`
	WatchdogInterval time.Duration `name:"watchdog-interval" help:"systemd watchdog ping interval (defaults to half of WatchdogSec)"`
	ShutdownTimeout  time.Duration `name:"shutdown-timeout" help:"how long teardown may take" default:"${default_shutdown}"`
}

// Validate is called by kong after parsing.
func (u *UpCmd) Validate() error {
	if u.Followers < 0 {
		return fmt.Errorf("--followers must not be negative, got %d", u.Followers)
	}
	if u.StartupTimeout <= 0 {
		return fmt.Errorf("--startup-timeout must be positive, got %v", u.StartupTimeout)
	}
	if u.ShutdownTimeout <= 0 {
		return fmt.Errorf("--shutdown-timeout must be positive, got %v", u.ShutdownTimeout)
	}
	return nil
}

// registryFlagsSet reports whether any registry flag differs from its default.
func (u *UpCmd) registryFlagsSet() bool {
	return u.Name != registry.DefaultAdvertisedName ||
		u.Image != registry.DefaultImage ||
		u.ElectionStrategy != defaultElection ||
		u.Followers != 0 ||
		u.FollowerElection != defaultFollowerElection ||
		u.NoCompatibilityCheck ||
		u.StartupTimeout != registry.DefaultStartupTimeout
}

// topologyConfig builds a topology from the flags alone: a primary named
// --name and --followers followers named <name>-1, <name>-2 and so on. The
// primary uses --election-strategy, followers --follower-election-strategy.
func (u *UpCmd) topologyConfig() topology.Config {
	cfg := topology.Config{
		Storage: topology.StorageConfig{Kind: u.Storage, Image: u.StorageImage},
	}

	compat := !u.NoCompatibilityCheck
	for i := 0; i <= u.Followers; i++ {
		name, strategy := u.Name, u.ElectionStrategy
		if i > 0 {
			name = fmt.Sprintf("%s-%d", u.Name, i)
			strategy = u.FollowerElection
		}
		primary := i == 0
		cfg.Registries = append(cfg.Registries, topology.RegistryConfig{
			Name:               name,
			Image:              u.Image,
			ElectionStrategy:   strategy,
			StartupTimeout:     u.StartupTimeout.String(),
			Primary:            &primary,
			CompatibilityCheck: &compat,
		})
	}
	return cfg
}

func (u *UpCmd) Run(cli *CLI) error {
	if err := setupLogging(cli); err != nil {
		return err
	}

	cfg, err := loadTopology(cli.ConfigFile, u)
	if err != nil {
		return err
	}

	if u.MetricsAddr != "" {
		metrics.Initialize()
	}

	topo, err := topology.New(cfg)
	if err != nil {
		return err
	}

	stopChan := make(chan struct{})
	doneChan := make(chan struct{})
	mgr := shutdown.New(shutdown.Config{
		Timeout:  u.ShutdownTimeout,
		StopChan: stopChan,
		DoneChan: doneChan,
	})
	mgr.RegisterCleanup("topology", topo.Stop)

	if u.MetricsAddr != "" {
		srv, err := service.Listen(u.MetricsAddr, metrics.Mux(topo))
		if err != nil {
			return err
		}
		mgr.RegisterCleanup("metrics server", srv.Shutdown)
		srv.Serve()
	}

	if err := mgr.Start(); err != nil {
		return err
	}
	defer mgr.Stop()

	notifier := service.NewNotifier(u.SystemdNotify, u.WatchdogInterval)
	runErr := u.serve(topo, notifier, stopChan)
	close(doneChan)

	if err := notifier.Stopping(); err != nil {
		log.Warning("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), u.ShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, mgr.Shutdown(ctx))
}

// serve starts the topology and blocks until stopChan is closed. A start
// failure returns immediately.
func (u *UpCmd) serve(topo *topology.Topology, notifier *service.Notifier, stopChan <-chan struct{}) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := notifier.Status("starting containers"); err != nil {
		log.Warning("%v", err)
	}
	if err := topo.Start(ctx); err != nil {
		return err
	}

	if err := printEndpoints(ctx, topo); err != nil {
		return err
	}
	if u.LogListeners {
		if _, err := diag.StorageListeners(ctx, container.DockerRuntime{}, topo.Storage(), diag.DefaultTimeout); err != nil {
			log.Warning("Failed to list broker listeners: %v", err)
		}
	}

	status := fmt.Sprintf("%d registries running on %s", len(topo.Registries()), topo.Storage().Kind())
	if err := notifier.Ready(status); err != nil {
		log.Warning("%v", err)
	}
	notifier.Watchdog(ctx, topo)

	<-stopChan
	return nil
}

func printEndpoints(ctx context.Context, topo *topology.Topology) error {
	brokers, err := topo.Brokers(ctx)
	if err != nil {
		return err
	}
	endpoints, err := topo.Endpoints(ctx)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(endpoints))
	for name := range endpoints {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("brokers\t%s\n", brokers)
	for _, name := range names {
		fmt.Printf("%s\t%s\n", name, endpoints[name])
	}
	return nil
}

// ListenersCmd starts a throwaway broker and prints its metadata as seen from
// the broker network.
type ListenersCmd struct {
	StorageFlags
	Timeout time.Duration `help:"how long the inspection client may run" default:"30s"`
}

func (l *ListenersCmd) Run(cli *CLI) error {
	if err := setupLogging(cli); err != nil {
		return err
	}

	b, err := l.backend()
	if err != nil {
		return err
	}
	broker, _ := b.Acquire()

	ctx := context.Background()
	defer func() {
		if err := broker.Stop(context.WithoutCancel(ctx)); err != nil {
			log.Warning("Failed to stop broker: %v", err)
		}
	}()

	log.Info("Starting %s broker %s", b.Kind(), b.Image())
	if err := broker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start %s broker: %w", b.Kind(), err)
	}

	out, err := diag.StorageListeners(ctx, container.DockerRuntime{}, b, l.Timeout)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func setupLogging(cli *CLI) error {
	if cli.LogLevel != "" {
		if err := log.SetLevel(cli.LogLevel); err != nil {
			return err
		}
	}
	if cli.LogFormat != "" {
		if err := log.SetFormat(cli.LogFormat); err != nil {
			return err
		}
	}
	return nil
}
