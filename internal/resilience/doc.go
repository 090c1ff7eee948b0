// ABOUTME: Package documentation for the resilience layer.
// ABOUTME: Describes how retry and circuit breaking compose around session creation.

// Package resilience guards backend session creation with a composed policy:
// a per-backend circuit breaker checked before each bounded, exponentially
// backed-off retry attempt. Checking the breaker per attempt (rather than
// wrapping the whole retried operation) means an open circuit is honored
// immediately instead of being hidden behind a backoff window.
package resilience
