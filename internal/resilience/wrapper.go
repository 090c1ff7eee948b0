// ABOUTME: Composed retry-with-backoff plus circuit breaker guarding session creation
// ABOUTME: The breaker is checked before each attempt so an open circuit is never masked

package resilience

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/2389/toolgate/internal/errkind"
	"github.com/2389/toolgate/internal/events"
)

// RetryPolicy is the bounded exponential schedule for creation attempts:
// delay = BaseDelay·2^attempt, capped at MaxDelay, at most MaxAttempts tries.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Wrapper composes the retry schedule with per-backend circuit breakers.
// The composition order matters: the breaker check precedes every attempt,
// so an open breaker short-circuits immediately rather than waiting out a
// full backoff cycle.
type Wrapper struct {
	mu       sync.Mutex
	breakers map[string]*Breaker

	retry            RetryPolicy
	failureThreshold int
	cooldown         time.Duration

	emitter *events.Emitter
	logger  *slog.Logger
}

// NewWrapper creates a wrapper with no breakers yet; breakers are created
// lazily per backend name on first use.
func NewWrapper(retry RetryPolicy, failureThreshold int, cooldown time.Duration, emitter *events.Emitter, logger *slog.Logger) *Wrapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Wrapper{
		breakers:         make(map[string]*Breaker),
		retry:            retry,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		emitter:          emitter,
		logger:           logger.With("component", "resilience"),
	}
}

// Breaker returns the breaker for a backend, creating it on first use.
func (w *Wrapper) Breaker(server string) *Breaker {
	w.mu.Lock()
	defer w.mu.Unlock()

	br, ok := w.breakers[server]
	if !ok {
		br = NewBreaker(w.failureThreshold, w.cooldown)
		br.OnStateChange(func(from, to BreakerState) {
			w.logger.Info("circuit state change",
				"server", server,
				"from", from.String(),
				"to", to.String(),
			)
			switch to {
			case StateOpen:
				w.emitter.Emit(events.Event{Name: events.CircuitOpened, Server: server})
			case StateHalfOpen:
				w.emitter.Emit(events.Event{Name: events.CircuitHalfOpen, Server: server})
			case StateClosed:
				w.emitter.Emit(events.Event{Name: events.CircuitClosed, Server: server})
			}
		})
		w.breakers[server] = br
	}
	return br
}

// BreakerStates returns a snapshot of every known breaker's state, keyed by
// backend name. Used by the status surface.
func (w *Wrapper) BreakerStates() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()

	states := make(map[string]string, len(w.breakers))
	for name, br := range w.breakers {
		states[name] = br.State().String()
	}
	return states
}

// Do runs op under the composed policy for the named backend. Each attempt
// first consults the breaker: an open circuit aborts the whole call with a
// CircuitOpen error and no further backoff. Failures feed the breaker;
// non-recoverable errors stop the retry loop.
func (w *Wrapper) Do(ctx context.Context, server string, op func(ctx context.Context) error) error {
	br := w.Breaker(server)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.retry.BaseDelay
	bo.MaxInterval = w.retry.MaxDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	attempt := 0
	run := func() error {
		if err := br.Allow(); err != nil {
			return backoff.Permanent(err)
		}

		attempt++
		err := op(ctx)
		if err == nil {
			br.RecordSuccess()
			return nil
		}

		br.RecordFailure()
		w.logger.Warn("creation attempt failed",
			"server", server,
			"attempt", attempt,
			"error", err,
		)
		if !errkind.Recoverable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	maxRetries := uint64(0)
	if w.retry.MaxAttempts > 1 {
		maxRetries = uint64(w.retry.MaxAttempts - 1)
	}

	return backoff.Retry(run, backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx))
}
