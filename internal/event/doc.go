// Package event implements the callback registry and dispatcher that form
// the core of the modrun event layer.
//
// The registry stores, per named event type, a set of callback entries keyed
// by callback identity. Each entry carries a priority, an enabled flag, an
// optional owner value and an optional error handler. The registry maintains
// a cached ordered view per event type: the ascending-priority,
// insertion-order-stable sequence of currently enabled entries. The view is
// rebuilt on every mutation and is never stale.
//
// The dispatcher walks the ordered view for an event, invoking entries in
// order and stopping at the first one that reports the event as handled:
//
//	reg := event.NewRegistry()
//	_ = reg.RegisterType("keypressed")
//	_ = reg.Add("keypressed", onKey, event.WithPriority(-10))
//
//	d := event.NewDispatcher(reg)
//	handled, err := d.Dispatch(ctx, "keypressed", "escape")
//
// # Error policy
//
// Configuration errors (unknown event, nil callback, duplicate type,
// operating on an unregistered callback) fail synchronously at the call
// site. Runtime errors raised inside a callback propagate out of Dispatch
// and abort the remaining entries, unless the entry was registered with an
// error handler; in that case the error (or panic) is trapped and the error
// handler's return value substitutes for the callback's handled signal.
//
// # Meta channel
//
// Every dispatch of an event E also fires the "dispatch" channel with
// (E, args...) as an observation point. Meta callbacks are ordinary entries
// on an ordinary event type: they sort and short-circuit among themselves
// and never preempt E's own callbacks.
//
// # Concurrency
//
// Dispatch is designed for a single cooperative host loop. Registry
// mutations are guarded by a mutex so that script bridges and pollers may
// touch the registry from other goroutines, but callbacks themselves always
// run sequentially inside the dispatching goroutine. A dispatch iterates a
// snapshot of the ordered view, so a callback may add, remove, enable or
// disable entries (including itself) mid-dispatch; such mutations take
// effect on the next dispatch of that event.
package event
