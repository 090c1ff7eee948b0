// ABOUTME: Counting admission gate bounding concurrently in-flight orchestration requests
// ABOUTME: Fail-fast policy: callers beyond the limit get an immediate rejection, never a wait

package query

import (
	"golang.org/x/sync/semaphore"

	"github.com/2389/toolgate/internal/errkind"
)

// Gate bounds concurrent requests. Rejection is immediate rather than queued;
// callers are expected to surface the rejection as backpressure.
type Gate struct {
	sem   *semaphore.Weighted
	limit int
}

// NewGate creates a gate admitting at most limit concurrent requests.
func NewGate(limit int) *Gate {
	return &Gate{sem: semaphore.NewWeighted(int64(limit)), limit: limit}
}

// Acquire claims a slot or fails fast with ResourceExhausted.
func (g *Gate) Acquire() error {
	if !g.sem.TryAcquire(1) {
		return errkind.Newf(errkind.ResourceExhausted, "request limit reached (%d concurrent)", g.limit)
	}
	return nil
}

// Release frees a slot claimed by Acquire.
func (g *Gate) Release() {
	g.sem.Release(1)
}
