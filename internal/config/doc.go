// ABOUTME: Package documentation for toolgate configuration handling.
// ABOUTME: Covers the YAML gateway config and the JSON backend registry.

// Package config loads the gateway configuration and the backend registry.
//
// The gateway config is YAML with ${VAR} environment expansion and
// Go-duration strings for timing fields. The backend registry is JSON in
// either the mcpServers map form or the servers array form; both resolve to
// the same immutable per-backend table.
package config
