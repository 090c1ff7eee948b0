// ABOUTME: Transport session contract shared by both backend transport kinds
// ABOUTME: Defines the initialize/list/invoke/close surface and the Dial entry point

package transport

import (
	"context"
	"encoding/json"

	"github.com/2389/toolgate/internal/config"
	"github.com/2389/toolgate/internal/errkind"
)

// ToolDef is one callable operation a backend advertises.
type ToolDef struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Session is one live channel to one backend. Both transport kinds present
// this identical contract. A session is exclusively owned by its pool slot
// and must not be shared.
type Session interface {
	// Initialize performs the protocol capability handshake.
	Initialize(ctx context.Context) error

	// ListTools returns the backend's current tool descriptors. Also used as
	// the lightweight health probe.
	ListTools(ctx context.Context) ([]ToolDef, error)

	// Call invokes a tool by its backend-local name and returns the textual
	// result. A result the backend flags as an error is returned as a
	// ToolExecution error.
	Call(ctx context.Context, tool string, args map[string]any) (string, error)

	// Close releases all underlying I/O resources.
	Close() error
}

// DialFunc creates a session for a backend. The pool takes one so tests can
// substitute fakes for real subprocess/HTTP transports.
type DialFunc func(ctx context.Context, srv config.Server) (Session, error)

// Dial acquires the underlying channel for the configured transport kind and
// runs the protocol handshake. The two acquisitions are nested: if the
// handshake fails the channel is closed before the error is returned, so a
// partially constructed session never leaks.
func Dial(ctx context.Context, srv config.Server) (Session, error) {
	var (
		sess Session
		err  error
	)

	switch srv.Type {
	case config.TransportStdio:
		sess, err = dialStdio(ctx, srv)
	case config.TransportSSE:
		sess, err = dialSSE(ctx, srv)
	default:
		return nil, errkind.Newf(errkind.Validation, "server %q: unsupported transport type %q", srv.Name, srv.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := sess.Initialize(ctx); err != nil {
		_ = sess.Close()
		return nil, errkind.Wrap(errkind.Connection, "initializing session for "+srv.Name, err)
	}

	return sess, nil
}
