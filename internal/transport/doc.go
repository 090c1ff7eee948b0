// ABOUTME: Package documentation for backend transport sessions.
// ABOUTME: Explains the session contract and the two supported transport kinds.

// Package transport dials and drives sessions to tool-providing backends.
//
// A backend is reached over one of two transport kinds — a persistent
// subprocess pipe (stdio) or an HTTP push stream (sse) — and both present
// the identical Session contract: initialize, list tools, invoke, close.
// Dial guarantees that the underlying channel is released on every failure
// path of session construction.
package transport
