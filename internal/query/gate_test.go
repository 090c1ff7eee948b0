// ABOUTME: Tests for the fail-fast admission gate
// ABOUTME: Verifies immediate rejection past the limit and slot reuse after release

package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/toolgate/internal/errkind"
)

func TestGateAdmitsUpToLimit(t *testing.T) {
	g := NewGate(2)

	require.NoError(t, g.Acquire())
	require.NoError(t, g.Acquire())

	start := time.Now()
	err := g.Acquire()
	require.Error(t, err)
	assert.Equal(t, errkind.ResourceExhausted, errkind.KindOf(err))
	// Fail-fast, not queued.
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestGateReleaseFreesSlot(t *testing.T) {
	g := NewGate(1)

	require.NoError(t, g.Acquire())
	require.Error(t, g.Acquire())

	g.Release()
	require.NoError(t, g.Acquire())
}
