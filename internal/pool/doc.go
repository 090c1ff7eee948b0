// ABOUTME: Package pool maintains bounded, health-checked session pools per backend
// ABOUTME: Sessions are leased exclusively, returned with an outcome, and evicted when unhealthy

// Package pool owns the live sessions to every configured backend.
//
// Each backend gets a bounded list of sessions. Lease hands out an exclusive
// session, creating one through the resilience wrapper when under cap, and
// fails fast when the pool is exhausted. Return records the call outcome;
// failed sessions are evicted rather than repaired. A background loop probes
// idle sessions and drops the ones that stop responding. The pool also owns
// the unified tool catalog, rebuilt whenever session membership changes.
package pool
