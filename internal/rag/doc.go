// ABOUTME: Package rag enriches user queries with knowledge-base context before the model sees them
// ABOUTME: Retrieval is best-effort; failures are reported but never abort the request

// Package rag implements the optional retrieval-augmentation step.
//
// When enabled, the orchestrator calls Retrieve once per request before the
// first model turn and prepends whatever context comes back. Retrieval uses
// the same session pool as tool execution, so the knowledge backend is
// subject to the same bounds, retries, and circuit breaking as any other.
package rag
