// Package service integrates a long-running topology with its host: systemd
// readiness notification and the HTTP server exposing metrics and probes.
package service

import "context"

// Checker reports whether the supervised topology is ready.
type Checker interface {
	Ready(ctx context.Context) error
}
