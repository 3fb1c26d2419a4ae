package event

import (
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// Dispatcher walks a registry's ordered views and invokes callbacks.
//
// A Dispatcher holds no callback state of its own; constructing several
// dispatchers over one registry is allowed, though the host loop normally
// owns exactly one.
type Dispatcher struct {
	registry *Registry

	// Stats
	dispatched  atomic.Uint64
	handled     atomic.Uint64
	invoked     atomic.Uint64
	trapped     atomic.Uint64
	totalTimeNs atomic.Int64
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(r *Registry) *Dispatcher {
	return &Dispatcher{registry: r}
}

// Registry returns the registry the dispatcher walks.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch delivers an event to its registered callbacks in priority order.
//
// The base handler, if any, runs first and does not affect the handled
// result. Entries then run in ascending priority; the first entry whose
// signal is true short-circuits the walk and Dispatch reports handled.
//
// An error from an unprotected callback aborts the dispatch and is returned
// wrapped in a CallbackError; panics from unprotected callbacks propagate.
// Protected entries trap both and consult their error handler instead.
//
// After the event's own callbacks, the "dispatch" meta channel fires with
// (event, args...) if it is registered, regardless of the direct outcome.
// Dispatch reports handled if either pass signaled handled.
//
// Returns ErrUnknownEvent if the event type was never registered.
func (d *Dispatcher) Dispatch(ctx context.Context, event string, args ...any) (bool, error) {
	start := time.Now()
	d.dispatched.Add(1)
	defer func() {
		d.totalTimeNs.Add(time.Since(start).Nanoseconds())
	}()

	handled, err := d.deliver(ctx, event, args)
	if err != nil {
		return false, err
	}

	// The meta channel observes every event, including handled ones. It is
	// optional bookkeeping: skip silently when the host never registered it.
	if event != DispatchChannel && d.registry.Has(DispatchChannel) {
		meta := make([]any, 0, len(args)+1)
		meta = append(meta, event)
		meta = append(meta, args...)

		metaHandled, err := d.deliver(ctx, DispatchChannel, meta)
		if err != nil {
			return false, err
		}
		handled = handled || metaHandled
	}

	if handled {
		d.handled.Add(1)
	}
	return handled, nil
}

// deliver runs the base handler and the ordered view for one event name.
func (d *Dispatcher) deliver(ctx context.Context, event string, args []any) (bool, error) {
	// Snapshot before the base handler runs so mutations made by it, like
	// mutations made by callbacks, take effect on the next dispatch.
	view, err := d.registry.OrderedEnabled(event)
	if err != nil {
		return false, err
	}

	if base := d.registry.BaseHandler(event); base != nil {
		if _, err := base(ctx, nil, args...); err != nil {
			return false, &CallbackError{Event: event, Err: err}
		}
	}

	for _, e := range view {
		d.invoked.Add(1)

		if e.onError == nil {
			handled, err := e.callback(ctx, e.owner, args...)
			if err != nil {
				return false, &CallbackError{Event: event, Err: err}
			}
			if handled {
				return true, nil
			}
			continue
		}

		handled, err := invokeProtected(ctx, e, event, args)
		if err != nil {
			d.trapped.Add(1)
			handled = e.onError(ctx, e.owner, Occurrence{Name: event, Args: args}, err)
		}
		if handled {
			return true, nil
		}
	}

	return false, nil
}

// invokeProtected runs a protected entry, converting a panic into a
// PanicError instead of letting it unwind the host loop.
func invokeProtected(ctx context.Context, e *Entry, event string, args []any) (handled bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			handled = false
			err = &PanicError{Event: event, Value: r, Stack: debug.Stack()}
		}
	}()
	return e.callback(ctx, e.owner, args...)
}

// Stats returns cumulative dispatcher statistics.
func (d *Dispatcher) Stats() Stats {
	dispatched := d.dispatched.Load()
	totalNs := d.totalTimeNs.Load()

	var avgNs int64
	if dispatched > 0 {
		avgNs = totalNs / int64(dispatched)
	}

	return Stats{
		Dispatched:      dispatched,
		Handled:         d.handled.Load(),
		CallbacksRun:    d.invoked.Load(),
		ErrorsTrapped:   d.trapped.Load(),
		TotalDuration:   time.Duration(totalNs),
		AvgDispatchTime: time.Duration(avgNs),
	}
}

// Stats contains cumulative dispatch statistics.
type Stats struct {
	// Dispatched is the total number of Dispatch calls.
	Dispatched uint64

	// Handled is the number of dispatches that reported handled.
	Handled uint64

	// CallbacksRun is the total number of callback invocations.
	CallbacksRun uint64

	// ErrorsTrapped is the number of errors and panics routed to error
	// handlers.
	ErrorsTrapped uint64

	// TotalDuration is the cumulative time spent dispatching.
	TotalDuration time.Duration

	// AvgDispatchTime is the average time per Dispatch call.
	AvgDispatchTime time.Duration
}
