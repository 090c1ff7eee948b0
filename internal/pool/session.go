// ABOUTME: Pooled session record with status, usage bookkeeping, and tool cache
// ABOUTME: Owned by exactly one pool slot; never shared across backends

package pool

import (
	"time"

	"github.com/2389/toolgate/internal/transport"
)

// Status reflects the last observed outcome of a probe or a return call.
type Status int

const (
	StatusConnecting Status = iota
	StatusConnected
	// StatusLeased marks a session as exclusively handed out between Lease
	// and Return; a leased session is never given to a second caller.
	StatusLeased
	StatusFailed
	StatusCircuitOpen
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusLeased:
		return "leased"
	case StatusFailed:
		return "failed"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Session is one pooled channel to a backend, wrapping its transport handle
// with lifecycle bookkeeping. All fields except Transport are guarded by the
// pool mutex; Transport itself is exclusively owned by the lease holder.
type Session struct {
	ID        string
	Server    string
	Transport transport.Session

	Status     Status
	CreatedAt  time.Time
	LastUsedAt time.Time
	ErrorCount int

	// Tools is the capability list cached eagerly at creation; the catalog
	// is built from these caches, never from per-request backend queries.
	Tools []transport.ToolDef
}
