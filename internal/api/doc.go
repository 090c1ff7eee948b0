// ABOUTME: Package api is the HTTP surface in front of the orchestrator and pool
// ABOUTME: Query submission, tool listing, status snapshot, and the liveness probe

package api
