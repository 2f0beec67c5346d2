//go:build e2e

package testenv

import (
	"context"
	"testing"
	"time"

	"github.com/abtreece/karapace-testcontainers/pkg/container"
	"github.com/abtreece/karapace-testcontainers/pkg/registry"
)

// StartTimeout bounds starting a broker and its registry.
const StartTimeout = 5 * time.Minute

// StartRegistry runs a registry with opts and stops it when the test ends.
func StartRegistry(t *testing.T, opts ...registry.Option) *registry.Container {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), StartTimeout)
	defer cancel()

	c, err := registry.Run(ctx, opts...)
	if c != nil {
		t.Cleanup(func() {
			if err := c.Stop(context.Background()); err != nil {
				t.Errorf("Failed to stop registry %s: %v", c.Name(), err)
			}
		})
	}
	if err != nil {
		t.Fatalf("Failed to start registry: %v", err)
	}
	return c
}

// StartBroker starts a caller-managed broker and stops it when the test ends.
func StartBroker(t *testing.T, h container.Handle) container.Handle {
	t.Helper()

	t.Cleanup(func() {
		if err := h.Stop(context.Background()); err != nil {
			t.Errorf("Failed to stop broker %s: %v", h.Name(), err)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), StartTimeout)
	defer cancel()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Failed to start broker %s: %v", h.Name(), err)
	}
	return h
}

// ClientFor returns a REST client for a running registry.
func ClientFor(t *testing.T, c *registry.Container) *Client {
	t.Helper()

	endpoint, err := c.Endpoint(context.Background())
	if err != nil {
		t.Fatalf("Failed to get endpoint of %s: %v", c.Name(), err)
	}
	return NewClient(endpoint)
}
