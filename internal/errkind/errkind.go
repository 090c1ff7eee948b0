// ABOUTME: Error kinds carried as values instead of exception-style control flow.
// ABOUTME: Provides Error, KindOf classification, and recoverability tagging.

package errkind

import (
	"context"
	"errors"
	"fmt"
)

// Kind identifies the failure class of an error.
type Kind int

const (
	// Internal is the default for unclassified failures.
	Internal Kind = iota
	// Connection covers transport dial and handshake failures.
	Connection
	// Timeout covers deadline and cancellation failures.
	Timeout
	// Authentication covers credential rejections from backends or the model API.
	Authentication
	// RateLimit covers throttling responses from the model API.
	RateLimit
	// Validation covers malformed configuration or tool arguments that fail
	// their declared JSON schema.
	Validation
	// ToolExecution covers a backend tool invocation that ran and failed.
	ToolExecution
	// UpstreamModel covers failures of the language-model completion API.
	UpstreamModel
	// CircuitOpen means a backend's circuit breaker is open and no creation
	// attempt was made.
	CircuitOpen
	// PoolExhausted means a backend's session pool is at capacity with no
	// leasable session.
	PoolExhausted
	// TurnBudgetExceeded means the orchestration loop hit its turn bound.
	TurnBudgetExceeded
	// ResourceExhausted means the admission gate rejected the request.
	ResourceExhausted
)

// String returns the snake_case name of the kind, used in logs and responses.
func (k Kind) String() string {
	switch k {
	case Connection:
		return "connection_error"
	case Timeout:
		return "timeout_error"
	case Authentication:
		return "authentication_error"
	case RateLimit:
		return "rate_limit_error"
	case Validation:
		return "validation_error"
	case ToolExecution:
		return "tool_execution_error"
	case UpstreamModel:
		return "upstream_model_error"
	case CircuitOpen:
		return "circuit_open"
	case PoolExhausted:
		return "pool_exhausted"
	case TurnBudgetExceeded:
		return "turn_budget_exceeded"
	case ResourceExhausted:
		return "resource_exhausted"
	default:
		return "internal_error"
	}
}

// Recoverable reports whether an operation failing with this kind may be
// retried. Open circuits and exhausted pools are terminal for the attempt that
// observed them; waiting out the breaker cooldown is the only recovery path.
func (k Kind) Recoverable() bool {
	switch k {
	case Connection, Timeout, RateLimit, ToolExecution, UpstreamModel:
		return true
	default:
		return false
	}
}

// Error is a classified error. It wraps an optional cause and satisfies the
// errors.Is/As chain so callers can match on either the kind or the cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// New returns a classified error with no underlying cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf returns a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns a classified error wrapping err. A nil err yields nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return e.Kind.String()
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies err. The outermost *Error in the chain wins; context
// cancellation and deadline errors map to Timeout; anything else is Internal.
func KindOf(err error) Kind {
	if err == nil {
		return Internal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Timeout
	}
	return Internal
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return kind == KindOf(err)
}

// Recoverable reports whether err's kind is tagged recoverable.
func Recoverable(err error) bool {
	return KindOf(err).Recoverable()
}
