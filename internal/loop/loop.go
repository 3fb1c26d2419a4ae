package loop

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/Asmageddon/modrun/internal/event"
)

// Standard frame channels dispatched by the loop.
const (
	// EventQuit is dispatched when the host requests shutdown. A handled
	// result cancels the shutdown and the loop keeps running.
	EventQuit = "quit"

	// EventPreUpdate, EventUpdate and EventPostUpdate fire once per frame,
	// in that order, with the frame delta-time in seconds.
	EventPreUpdate  = "pre_update"
	EventUpdate     = "update"
	EventPostUpdate = "post_update"

	// EventDraw fires when the render gate reports a frame ready;
	// EventPostprocess follows with the measured draw duration in seconds.
	EventDraw        = "draw"
	EventPostprocess = "postprocess"
)

// Loop errors.
var (
	// ErrAlreadyRunning indicates Run was called on a running loop.
	ErrAlreadyRunning = errors.New("loop already running")
)

// Source supplies the host's pollable event sequence. Poll is called once
// per frame and returns the occurrences accumulated since the last call;
// the loop does not know how they are produced.
type Source interface {
	Poll() []event.Occurrence
}

// RenderGate gates the draw phase: FrameReady reports whether a frame
// should be drawn, Clear and Present bracket the draw dispatch.
type RenderGate interface {
	FrameReady() bool
	Clear()
	Present()
}

// Loop is the per-frame driver. It is owned by the host application and
// runs single-threaded: every dispatch completes before the next begins.
type Loop struct {
	dispatcher *event.Dispatcher
	source     Source
	gate       RenderGate
	clock      Clock
	limiter    *Limiter

	running   atomic.Bool
	stopOnce  sync.Once
	done      chan struct{}
	deltaBits atomic.Uint64
	frames    atomic.Uint64
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock sets the time source. Defaults to the system clock.
func WithClock(c Clock) Option {
	return func(l *Loop) {
		l.clock = c
	}
}

// WithRenderGate sets the render gate. Without one the draw channels never
// fire.
func WithRenderGate(g RenderGate) Option {
	return func(l *Loop) {
		l.gate = g
	}
}

// WithLimiter sets the frame-rate limiter invoked at the end of each frame.
func WithLimiter(lim *Limiter) Option {
	return func(l *Loop) {
		l.limiter = lim
	}
}

// New creates a loop over the dispatcher and host event source.
func New(d *event.Dispatcher, src Source, opts ...Option) *Loop {
	l := &Loop{
		dispatcher: d,
		source:     src,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.clock == nil {
		l.clock = SystemClock()
	}
	return l
}

// RegisterChannels registers the standard frame channels plus the dispatch
// meta channel on the registry. Existing registrations warn and are kept.
func RegisterChannels(r *event.Registry) error {
	names := []string{
		EventQuit,
		EventPreUpdate, EventUpdate, EventPostUpdate,
		EventDraw, EventPostprocess,
		event.DispatchChannel,
	}
	for _, name := range names {
		if err := r.RegisterType(name); err != nil {
			return err
		}
	}
	return nil
}

// Run drives frames until a quit event goes unhandled, Stop is called, the
// context is cancelled, or a dispatch error propagates. It returns nil on a
// normal quit.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	last := l.clock.Now()

	for {
		select {
		case <-l.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frameStart := l.clock.Now()

		// Drain host events. Quit is special-cased: only an unhandled quit
		// halts the loop.
		for _, occ := range l.source.Poll() {
			handled, err := l.dispatcher.Dispatch(ctx, occ.Name, occ.Args...)
			if err != nil {
				return err
			}
			if occ.Name == EventQuit && !handled {
				return nil
			}
		}

		now := l.clock.Now()
		dt := now.Sub(last).Seconds()
		last = now
		l.deltaBits.Store(math.Float64bits(dt))

		for _, name := range [...]string{EventPreUpdate, EventUpdate, EventPostUpdate} {
			if _, err := l.dispatcher.Dispatch(ctx, name, dt); err != nil {
				return err
			}
		}

		if l.gate != nil && l.gate.FrameReady() {
			l.gate.Clear()
			drawStart := l.clock.Now()
			if _, err := l.dispatcher.Dispatch(ctx, EventDraw); err != nil {
				return err
			}
			l.gate.Present()
			drawSeconds := l.clock.Now().Sub(drawStart).Seconds()
			if _, err := l.dispatcher.Dispatch(ctx, EventPostprocess, drawSeconds); err != nil {
				return err
			}
		}

		l.frames.Add(1)

		if l.limiter != nil {
			l.limiter.Wait(l.clock.Now().Sub(frameStart))
		}
	}
}

// Stop requests a halt without dispatching quit. Safe to call from any
// goroutine and more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
}

// IsRunning returns true while Run is active.
func (l *Loop) IsRunning() bool {
	return l.running.Load()
}

// DeltaTime returns the most recent frame delta-time in seconds.
func (l *Loop) DeltaTime() float64 {
	return math.Float64frombits(l.deltaBits.Load())
}

// Frames returns the number of completed frames.
func (l *Loop) Frames() uint64 {
	return l.frames.Load()
}
