// Package integration provides integration tests that verify the persisted
// usage ledger after requests. These tests use real databases via testcontainers.
//
// Run with: go test -tags=integration ./tests/integration/...
package integration
