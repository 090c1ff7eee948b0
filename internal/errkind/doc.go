// ABOUTME: Tagged error taxonomy shared by the pool, orchestrator, and API layers.
// ABOUTME: Classifies failures into kinds so retry and propagation policy is uniform.

// Package errkind defines the error classification used throughout toolgate.
//
// Every failure that crosses a package boundary carries a Kind, either
// directly as an *Error or recoverable via KindOf on a wrapped chain. The
// kind decides policy: whether the resilience wrapper may retry, whether the
// orchestrator absorbs the failure into the conversation trace, and which
// HTTP status the API layer reports.
package errkind
