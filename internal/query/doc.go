// ABOUTME: Package query runs the bounded multi-turn model/tool-call conversation loop
// ABOUTME: Admission gating, catalog resolution, schema validation, and the tools-used trace live here

// Package query orchestrates one user request end to end.
//
// A request is first admitted through the counting gate (immediate rejection
// past the limit). The orchestrator then optionally augments the query with
// retrieved context, hands the transcript to the model, and executes the
// tool calls it asks for on pooled sessions, one completion per turn, until
// the model answers in plain text or the turn budget runs out. Tool-level
// failures flow back into the transcript so the model can react; only pool
// exhaustion and an open circuit abort the request outright.
package query
