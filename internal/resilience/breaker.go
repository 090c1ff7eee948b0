// ABOUTME: Per-backend circuit breaker with closed/open/half-open states
// ABOUTME: Opens on consecutive failures, allows exactly one half-open trial

package resilience

import (
	"sync"
	"time"

	"github.com/2389/toolgate/internal/errkind"
)

// BreakerState is the circuit position.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

// String returns the lowercase state name.
func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker guards session creation for one backend. It opens after
// failureThreshold consecutive failures, stays open for the cooldown, then
// permits exactly one half-open trial whose outcome alone decides the next
// state.
type Breaker struct {
	mu sync.Mutex

	state               BreakerState
	consecutiveFailures int
	openedAt            time.Time
	trialInFlight       bool

	failureThreshold int
	cooldown         time.Duration

	// onStateChange is invoked outside error paths whenever the state moves.
	onStateChange func(from, to BreakerState)

	now func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(failureThreshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		now:              time.Now,
	}
}

// OnStateChange registers a callback for state transitions. It is called
// synchronously while the breaker lock is held; keep it cheap.
func (b *Breaker) OnStateChange(fn func(from, to BreakerState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Allow reports whether an attempt may proceed. An open circuit returns a
// CircuitOpen error immediately. When the cooldown has elapsed the breaker
// moves to half-open and admits a single trial; concurrent callers during
// that trial are rejected.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return errkind.Newf(errkind.CircuitOpen, "circuit open, retry after %s", b.cooldown-b.now().Sub(b.openedAt))
		}
		b.transition(StateHalfOpen)
		b.trialInFlight = true
		return nil

	default: // StateHalfOpen
		if b.trialInFlight {
			return errkind.New(errkind.CircuitOpen, "half-open trial already in flight")
		}
		b.trialInFlight = true
		return nil
	}
}

// RecordSuccess closes the breaker and resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.trialInFlight = false
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

// RecordFailure counts a failure. In half-open the breaker reopens and the
// cooldown restarts; in closed it opens once the threshold is reached.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.trialInFlight = false
		b.openedAt = b.now()
		b.transition(StateOpen)
		return
	}

	b.consecutiveFailures++
	if b.state == StateClosed && b.consecutiveFailures >= b.failureThreshold {
		b.openedAt = b.now()
		b.transition(StateOpen)
	}
}

// State returns the current circuit position.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// transition moves the state and fires the callback. Caller holds the lock.
func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}
