package metrics

import (
	"context"
	"time"

	"github.com/abtreece/karapace-testcontainers/pkg/container"
)

// InstrumentedHandle wraps a container.Handle with metrics instrumentation.
type InstrumentedHandle struct {
	container.Handle
	role string
}

// WrapHandle wraps h so that Start and Stop are timed under role.
// If metrics are not enabled (Registry is nil), returns h unchanged.
func WrapHandle(h container.Handle, role string) container.Handle {
	if !Enabled() {
		return h
	}
	return &InstrumentedHandle{Handle: h, role: role}
}

// Start starts the container and records metrics.
func (h *InstrumentedHandle) Start(ctx context.Context) error {
	return h.observe("start", func() error { return h.Handle.Start(ctx) })
}

// Stop stops the container and records metrics.
func (h *InstrumentedHandle) Stop(ctx context.Context) error {
	return h.observe("stop", func() error { return h.Handle.Stop(ctx) })
}

func (h *InstrumentedHandle) observe(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start).Seconds()

	ContainerOperationDuration.WithLabelValues(h.role, operation).Observe(duration)
	ContainerOperationsTotal.WithLabelValues(h.role, operation).Inc()
	if err != nil {
		ContainerErrorsTotal.WithLabelValues(h.role, operation).Inc()
	}
	return err
}
