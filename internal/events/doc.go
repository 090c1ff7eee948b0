// ABOUTME: Package documentation for the gateway event surface.
// ABOUTME: Names the discrete events external metrics/log collaborators consume.

// Package events carries the gateway's observability contract: discrete,
// named lifecycle events (session created/failed, circuit opened/closed,
// tool call outcomes, admission rejections) fanned out to attached sinks.
// The exact downstream sink and format stay outside the core.
package events
