package loop

import (
	"sync"
	"time"
)

// Limiter caps the frame rate by sleeping away the remainder of each
// frame's time budget. It is disabled while the target is zero or the host
// reports an external sync mechanism (such as display vertical sync).
type Limiter struct {
	mu           sync.Mutex
	clock        Clock
	target       float64
	externalSync bool
}

// NewLimiter creates a disabled limiter (target zero) over the given clock.
// A nil clock falls back to the system clock.
func NewLimiter(clock Clock) *Limiter {
	if clock == nil {
		clock = SystemClock()
	}
	return &Limiter{clock: clock}
}

// SetTarget sets the target frame rate in frames per second. Zero or
// negative disables the limiter.
func (l *Limiter) SetTarget(fps float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if fps < 0 {
		fps = 0
	}
	l.target = fps
}

// Target returns the current frame-rate cap, zero when disabled.
func (l *Limiter) Target() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.target
}

// SetExternalSync tells the limiter whether an external sync mechanism is
// active. While set, Wait never blocks.
func (l *Limiter) SetExternalSync(active bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.externalSync = active
}

// ExternalSync reports whether an external sync mechanism is active.
func (l *Limiter) ExternalSync() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.externalSync
}

// Wait blocks for the remaining frame budget given the time elapsed since
// the frame's update phase began. It returns immediately when the limiter
// is disabled, external sync is active, or the budget is already spent.
// The sleep is not cancellable and carries no timeout beyond the computed
// remainder.
func (l *Limiter) Wait(elapsed time.Duration) {
	l.mu.Lock()
	target := l.target
	external := l.externalSync
	clock := l.clock
	l.mu.Unlock()

	if target <= 0 || external {
		return
	}

	budget := time.Duration(float64(time.Second) / target)
	if elapsed >= budget {
		return
	}
	clock.Sleep(budget - elapsed)
}
