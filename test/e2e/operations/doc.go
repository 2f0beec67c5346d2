//go:build e2e

// Package operations provides end-to-end tests for the karapace-tc binary.
//
// These tests run the binary with exec.Command and validate:
//   - Health check endpoints (/health, /ready, /ready/detailed)
//   - Prometheus metrics endpoint (/metrics)
//   - Signal handling (SIGTERM tears the containers down)
//   - Topology files
//
// To run operations tests:
//
//	go test -v -tags=e2e -timeout 20m ./test/e2e/operations/...
//
// To run all E2E tests:
//
//	go test -v -tags=e2e -timeout 20m ./test/e2e/...
package operations
