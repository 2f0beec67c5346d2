package main

import (
	"fmt"

	"github.com/abtreece/karapace-testcontainers/pkg/log"
	"github.com/abtreece/karapace-testcontainers/pkg/topology"
)

// loadTopology builds the topology from the flags and overlays the topology
// file, if any. File settings apply only where the corresponding flags were
// left at their defaults, so flags always take precedence.
func loadTopology(path string, u *UpCmd) (topology.Config, error) {
	cfg := u.topologyConfig()
	if path == "" {
		log.Debug("No topology file given")
		return cfg, nil
	}

	log.Debug("Loading %s", path)
	fileCfg, err := topology.Load(path)
	if err != nil {
		return topology.Config{}, err
	}

	if u.Storage == defaultStorageKind && fileCfg.Storage.Kind != "" {
		cfg.Storage.Kind = fileCfg.Storage.Kind
	}
	if u.StorageImage == "" && fileCfg.Storage.Image != "" {
		cfg.Storage.Image = fileCfg.Storage.Image
	}
	if len(fileCfg.Registries) > 0 {
		if u.registryFlagsSet() {
			log.Warning("Registry flags override the %d registries in %s", len(fileCfg.Registries), path)
		} else {
			cfg.Registries = fileCfg.Registries
		}
	}

	if err := cfg.Validate(); err != nil {
		return topology.Config{}, fmt.Errorf("invalid topology in %s: %w", path, err)
	}
	return cfg, nil
}
