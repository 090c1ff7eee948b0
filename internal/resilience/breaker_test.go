// ABOUTME: Tests for circuit breaker state transitions and half-open gating.
// ABOUTME: Uses an injected clock to step through cooldown windows.

package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/toolgate/internal/errkind"
)

// fakeClock advances only when told to.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	br := NewBreaker(threshold, cooldown)
	br.now = clock.now
	return br, clock
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	br, _ := newTestBreaker(3, 30*time.Second)

	for i := 0; i < 2; i++ {
		require.NoError(t, br.Allow())
		br.RecordFailure()
		assert.Equal(t, StateClosed, br.State(), "below threshold must stay closed")
	}

	require.NoError(t, br.Allow())
	br.RecordFailure()
	assert.Equal(t, StateOpen, br.State())

	err := br.Allow()
	require.Error(t, err)
	assert.Equal(t, errkind.CircuitOpen, errkind.KindOf(err))
}

func TestBreakerHalfOpenSingleTrial(t *testing.T) {
	br, clock := newTestBreaker(1, 30*time.Second)

	require.NoError(t, br.Allow())
	br.RecordFailure()
	require.Equal(t, StateOpen, br.State())

	// Before the cooldown elapses, everything is rejected.
	clock.advance(29 * time.Second)
	require.Error(t, br.Allow())

	// After the cooldown exactly one trial is admitted.
	clock.advance(2 * time.Second)
	require.NoError(t, br.Allow())
	assert.Equal(t, StateHalfOpen, br.State())

	// A second caller during the trial is rejected.
	err := br.Allow()
	require.Error(t, err)
	assert.Equal(t, errkind.CircuitOpen, errkind.KindOf(err))
}

func TestBreakerTrialSuccessCloses(t *testing.T) {
	br, clock := newTestBreaker(1, 30*time.Second)

	require.NoError(t, br.Allow())
	br.RecordFailure()
	clock.advance(31 * time.Second)
	require.NoError(t, br.Allow())

	br.RecordSuccess()
	assert.Equal(t, StateClosed, br.State())

	// Failure count was reset: one new failure reopens only because threshold is 1.
	require.NoError(t, br.Allow())
}

func TestBreakerTrialFailureReopens(t *testing.T) {
	br, clock := newTestBreaker(1, 30*time.Second)

	require.NoError(t, br.Allow())
	br.RecordFailure()
	clock.advance(31 * time.Second)
	require.NoError(t, br.Allow())

	br.RecordFailure()
	assert.Equal(t, StateOpen, br.State())

	// The cooldown restarted at the trial failure.
	clock.advance(29 * time.Second)
	require.Error(t, br.Allow())
	clock.advance(2 * time.Second)
	require.NoError(t, br.Allow())
}

func TestBreakerStateChangeCallback(t *testing.T) {
	br, clock := newTestBreaker(1, time.Second)

	var transitions []string
	br.OnStateChange(func(from, to BreakerState) {
		transitions = append(transitions, from.String()+">"+to.String())
	})

	require.NoError(t, br.Allow())
	br.RecordFailure()
	clock.advance(2 * time.Second)
	require.NoError(t, br.Allow())
	br.RecordSuccess()

	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)
}
