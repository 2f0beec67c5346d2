//go:build e2e

// Package lifecycle drives registries and their brokers through start and
// stop against a real Docker daemon.
//
// To run lifecycle tests:
//
//	go test -v -tags=e2e -timeout 20m ./test/e2e/lifecycle/...
package lifecycle
