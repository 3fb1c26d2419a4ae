package loop

import "time"

// Clock supplies elapsed-time queries and a sleep primitive. It exists so
// the limiter and loop can be tested against a fake time source.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks the calling goroutine for d.
	Sleep(d time.Duration)
}

// systemClock is the real time source.
type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock returns the wall-clock Clock backed by the time package.
func SystemClock() Clock {
	return systemClock{}
}
