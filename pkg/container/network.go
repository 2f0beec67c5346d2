package container

import (
	"context"
	"fmt"
	"sync"

	"github.com/containerd/errdefs"
	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
)

// LabelTopology is set on networks and containers that belong to one topology.
const LabelTopology = "io.karapace-tc.topology"

// DockerNetwork is a Network backed by a Docker network created through
// testcontainers.
type DockerNetwork struct {
	driver string
	id     string

	mu sync.Mutex
	nw *testcontainers.DockerNetwork
}

// NewNetwork returns a network definition using the given driver. Nothing is
// created until Create is called.
func NewNetwork(driver string) *DockerNetwork {
	return &DockerNetwork{driver: driver, id: uuid.NewString()}
}

// ID returns the topology id stamped on the network as LabelTopology.
func (n *DockerNetwork) ID() string {
	return n.id
}

// Name implements Network.
func (n *DockerNetwork) Name() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.nw == nil {
		return ""
	}
	return n.nw.Name
}

// Create implements Network.
func (n *DockerNetwork) Create(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.nw != nil {
		return nil
	}

	nw, err := network.New(ctx,
		network.WithDriver(n.driver),
		network.WithLabels(map[string]string{LabelTopology: n.id}),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s network: %w", n.driver, err)
	}
	n.nw = nw
	return nil
}

// Remove implements Network.
func (n *DockerNetwork) Remove(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.nw == nil {
		return nil
	}

	if err := n.nw.Remove(ctx); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove network %s: %w", n.nw.Name, err)
	}
	n.nw = nil
	return nil
}
