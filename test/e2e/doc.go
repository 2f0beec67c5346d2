//go:build e2e

// Package e2e provides end-to-end tests that run schema registries against
// real Kafka and Redpanda brokers.
//
// The lifecycle tests drive the library directly; the operations tests run
// the karapace-tc binary.
//
// To run E2E tests:
//
//	go test -v -tags=e2e -timeout 20m ./test/e2e/...
//
// E2E tests require Docker to be running on the host machine.
package e2e
