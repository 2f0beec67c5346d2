// Package diag holds debugging helpers that are not part of a registry's
// lifecycle.
package diag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abtreece/karapace-testcontainers/pkg/container"
	"github.com/abtreece/karapace-testcontainers/pkg/log"
	"github.com/abtreece/karapace-testcontainers/pkg/storage"
)

const (
	// KcatImage is the inspection client image.
	KcatImage = "edenhill/kcat:1.7.1"
	// DefaultTimeout bounds how long the inspection client may run.
	DefaultTimeout = 30 * time.Second
)

// ErrNoNetwork is returned when the broker joins no network to attach to.
var ErrNoNetwork = errors.New("no network to attach to")

// LogListeners runs a throwaway kcat container on nw that prints the
// metadata of broker, waits up to timeout for it to exit, logs its output and
// returns it. The kcat container is always removed.
func LogListeners(ctx context.Context, rt container.Runtime, nw container.Network, broker string, timeout time.Duration) (string, error) {
	if nw == nil {
		return "", ErrNoNetwork
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	kcat := rt.Define(container.Request{
		Image:      KcatImage,
		Cmd:        []string{"-b", broker, "-L"},
		Network:    nw,
		WaitingFor: container.ForExit(timeout),
	})
	defer func() {
		if err := kcat.Stop(context.WithoutCancel(ctx)); err != nil {
			log.Warning("Failed to remove kcat container: %v", err)
		}
	}()

	log.Debug("Listing listeners of %s on network %s", broker, nw.Name())
	if err := kcat.Start(ctx); err != nil {
		return "", fmt.Errorf("failed to run kcat against %s: %w", broker, err)
	}

	out, err := kcat.Logs(ctx)
	if err != nil {
		return "", err
	}
	log.Info("Listeners of %s:\n%s", broker, out)
	return out, nil
}

// StorageListeners runs LogListeners against the internal listener of a
// started broker.
func StorageListeners(ctx context.Context, rt container.Runtime, b *storage.Backend, timeout time.Duration) (string, error) {
	h := b.Resolve()
	if !h.IsRunning() {
		return "", fmt.Errorf("%s storage %s is not running", b.Kind(), h.Name())
	}
	return LogListeners(ctx, rt, h.Network(), b.BootstrapURI(), timeout)
}
