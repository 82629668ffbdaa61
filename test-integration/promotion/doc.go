// Package integration provides integration tests for the contract promoter.
// They run the complete server against the in-memory record store and a fake
// OCI registry, and drive promotions through the HTTP API.
package integration
