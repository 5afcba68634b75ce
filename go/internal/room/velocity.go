package room

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// velocity counts accepted bids over a rolling window.
type velocity struct {
	clock  clockwork.Clock
	window time.Duration

	mu    sync.Mutex
	times []time.Time
}

func newVelocity(clock clockwork.Clock, window time.Duration) *velocity {
	return &velocity{clock: clock, window: window}
}

func (v *velocity) observe() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.times = append(v.times, v.clock.Now())
	v.pruneLocked()
}

func (v *velocity) rate() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pruneLocked()
	return len(v.times)
}

func (v *velocity) pruneLocked() {
	cutoff := v.clock.Now().Add(-v.window)
	i := 0
	for i < len(v.times) && !v.times[i].After(cutoff) {
		i++
	}
	v.times = v.times[i:]
}
