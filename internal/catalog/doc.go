// ABOUTME: Package documentation for the unified tool catalog.
// ABOUTME: Describes qualified naming and reverse routing to owning backends.

// Package catalog merges every pooled backend's cached tool list into one
// collision-safe table with reverse routing. Catalogs are immutable
// snapshots; the pool rebuilds a new one when its membership changes.
package catalog
