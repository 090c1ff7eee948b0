// ABOUTME: Tests for the composed retry + breaker wrapper.
// ABOUTME: Verifies attempt bounds and that an open breaker short-circuits retries.

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/toolgate/internal/errkind"
	"github.com/2389/toolgate/internal/events"
)

func newTestWrapper(maxAttempts, threshold int, cooldown time.Duration) *Wrapper {
	return NewWrapper(RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}, threshold, cooldown, events.NewEmitter(), nil)
}

func TestDoRetriesUpToBound(t *testing.T) {
	w := newTestWrapper(3, 10, time.Minute)

	calls := 0
	err := w.Do(context.Background(), "calc", func(context.Context) error {
		calls++
		return errkind.New(errkind.Connection, "dial failed")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, errkind.Connection, errkind.KindOf(err))
}

func TestDoSucceedsAfterTransientFailure(t *testing.T) {
	w := newTestWrapper(3, 10, time.Minute)

	calls := 0
	err := w.Do(context.Background(), "calc", func(context.Context) error {
		calls++
		if calls < 2 {
			return errkind.New(errkind.Connection, "dial failed")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, StateClosed, w.Breaker("calc").State())
}

func TestDoOpenBreakerShortCircuits(t *testing.T) {
	w := newTestWrapper(3, 2, time.Minute)

	// Exhaust the breaker threshold.
	calls := 0
	err := w.Do(context.Background(), "calc", func(context.Context) error {
		calls++
		return errkind.New(errkind.Connection, "dial failed")
	})
	require.Error(t, err)
	// Breaker opened after 2 consecutive failures; the third attempt was
	// short-circuited by the per-attempt breaker check.
	assert.Equal(t, 2, calls)
	assert.Equal(t, errkind.CircuitOpen, errkind.KindOf(err))
	assert.Equal(t, StateOpen, w.Breaker("calc").State())

	// Subsequent calls fail immediately without invoking the operation.
	calls = 0
	start := time.Now()
	err = w.Do(context.Background(), "calc", func(context.Context) error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, errkind.CircuitOpen, errkind.KindOf(err))
	assert.Zero(t, calls)
	assert.Less(t, time.Since(start), 50*time.Millisecond, "open circuit must not wait out the backoff window")
}

func TestDoNonRecoverableStopsRetrying(t *testing.T) {
	w := newTestWrapper(5, 10, time.Minute)

	calls := 0
	err := w.Do(context.Background(), "calc", func(context.Context) error {
		calls++
		return errkind.New(errkind.Validation, "bad config")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	w := NewWrapper(RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    time.Second,
	}, 100, time.Minute, events.NewEmitter(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := w.Do(ctx, "calc", func(context.Context) error {
		calls++
		return errkind.New(errkind.Connection, "dial failed")
	})

	require.Error(t, err)
	assert.LessOrEqual(t, calls, 2)
}

func TestDoBreakersAreIndependentPerBackend(t *testing.T) {
	w := newTestWrapper(1, 1, time.Minute)

	require.Error(t, w.Do(context.Background(), "calc", func(context.Context) error {
		return errkind.New(errkind.Connection, "down")
	}))
	require.Equal(t, StateOpen, w.Breaker("calc").State())

	// A different backend is unaffected.
	err := w.Do(context.Background(), "search", func(context.Context) error { return nil })
	require.NoError(t, err)

	states := w.BreakerStates()
	assert.Equal(t, "open", states["calc"])
	assert.Equal(t, "closed", states["search"])
}

func TestDoEmitsCircuitEvents(t *testing.T) {
	emitter := events.NewEmitter()
	sink := events.NewChannelSink(8)
	emitter.Attach(sink)

	w := NewWrapper(RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		1, time.Minute, emitter, nil)

	require.Error(t, w.Do(context.Background(), "calc", func(context.Context) error {
		return errors.New("down")
	}))

	select {
	case ev := <-sink.Events():
		assert.Equal(t, events.CircuitOpened, ev.Name)
		assert.Equal(t, "calc", ev.Server)
	default:
		t.Fatal("expected a circuit.opened event")
	}
}
