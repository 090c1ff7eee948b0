// ABOUTME: In-memory fan-out emitter for discrete gateway lifecycle events
// ABOUTME: Publishes named events to attached sinks for metrics/log collaborators

package events

import (
	"log/slog"
	"sync"
	"time"
)

// Name identifies a discrete event the gateway core emits.
type Name string

const (
	SessionCreated     Name = "session.created"
	SessionFailed      Name = "session.failed"
	SessionEvicted     Name = "session.evicted"
	CircuitOpened      Name = "circuit.opened"
	CircuitHalfOpen    Name = "circuit.half_open"
	CircuitClosed      Name = "circuit.closed"
	ToolCallSucceeded  Name = "tool_call.succeeded"
	ToolCallFailed     Name = "tool_call.failed"
	PoolExhausted      Name = "pool.exhausted"
	RequestAdmitted    Name = "request.admitted"
	RequestRejected    Name = "request.rejected"
	TurnBudgetExceeded Name = "request.turn_budget_exceeded"
)

// Event is one discrete occurrence. Server, Tool, and RequestID are set when
// they apply; Detail carries free-form context such as an error string.
type Event struct {
	Name      Name
	Server    string
	Tool      string
	RequestID string
	Detail    string
	At        time.Time
}

// Sink consumes events. Implementations must not block; slow consumers should
// buffer internally or drop.
type Sink interface {
	HandleEvent(Event)
}

// Emitter fans events out to attached sinks. A nil *Emitter is valid and
// drops everything, so components can emit unconditionally.
type Emitter struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewEmitter creates an emitter with no sinks attached.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Attach registers a sink to receive all subsequent events.
func (e *Emitter) Attach(s Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, s)
}

// Emit stamps the event and delivers it to every attached sink.
func (e *Emitter) Emit(ev Event) {
	if e == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	e.mu.RLock()
	sinks := make([]Sink, len(e.sinks))
	copy(sinks, e.sinks)
	e.mu.RUnlock()

	for _, s := range sinks {
		s.HandleEvent(ev)
	}
}

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging at debug level. Pass nil logger for default.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "events")}
}

// HandleEvent implements Sink.
func (s *LogSink) HandleEvent(ev Event) {
	attrs := []any{"event", string(ev.Name)}
	if ev.Server != "" {
		attrs = append(attrs, "server", ev.Server)
	}
	if ev.Tool != "" {
		attrs = append(attrs, "tool", ev.Tool)
	}
	if ev.RequestID != "" {
		attrs = append(attrs, "request_id", ev.RequestID)
	}
	if ev.Detail != "" {
		attrs = append(attrs, "detail", ev.Detail)
	}
	s.logger.Debug("gateway event", attrs...)
}

// ChannelSink forwards events to a channel without blocking; events are
// dropped when the channel is full. Useful for tests and external collectors.
type ChannelSink struct {
	ch chan Event
}

// NewChannelSink creates a channel sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, buffer)}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// HandleEvent implements Sink.
func (s *ChannelSink) HandleEvent(ev Event) {
	select {
	case s.ch <- ev:
	default:
		// Channel full — drop for this consumer
	}
}
