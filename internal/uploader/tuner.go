package uploader

import (
	"sync"
	"time"
)

// Tuner adjusts the upload engine's target concurrency from observed
// outcomes. Implementations must be safe for concurrent use. The engine
// clamps the target to [1, ceiling] regardless of what the Tuner returns.
type Tuner interface {
	// Observe records one completed upload attempt.
	Observe(latency time.Duration, err error)

	// Target returns the concurrency the engine should aim for.
	Target() int
}

// AIMDTuner implements additive-increase/multiplicative-decrease:
// each clean upload nudges the target up by one; an error or an upload
// slower than SlowThreshold halves it. This keeps a burst of uploads from
// saturating a constrained uplink while recovering quickly once errors stop.
type AIMDTuner struct {
	mu     sync.Mutex
	target int
	max    int

	// SlowThreshold marks an upload as congested even when it succeeds.
	slowThreshold time.Duration
}

// NewAIMDTuner creates a tuner starting at and capped to max concurrency.
func NewAIMDTuner(max int, slowThreshold time.Duration) *AIMDTuner {
	if max < 1 {
		max = 1
	}
	if slowThreshold <= 0 {
		slowThreshold = 10 * time.Second
	}
	return &AIMDTuner{
		target:        max,
		max:           max,
		slowThreshold: slowThreshold,
	}
}

var _ Tuner = (*AIMDTuner)(nil)

// Observe records one upload outcome and adjusts the target.
func (t *AIMDTuner) Observe(latency time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil || latency > t.slowThreshold {
		t.target /= 2
		if t.target < 1 {
			t.target = 1
		}
		return
	}

	if t.target < t.max {
		t.target++
	}
}

// Target returns the current concurrency target.
func (t *AIMDTuner) Target() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.target
}

// fixedTuner pins concurrency at a constant value. Used when adaptive
// behavior is disabled.
type fixedTuner int

func (t fixedTuner) Observe(time.Duration, error) {}
func (t fixedTuner) Target() int                  { return int(t) }
