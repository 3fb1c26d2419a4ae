package event

import "context"

// DispatchChannel is the name of the meta event fired alongside every other
// event. Callbacks on this channel receive the original event name as their
// first argument, followed by the original arguments.
const DispatchChannel = "dispatch"

// Callback handles a single event occurrence.
//
// owner is the value supplied via WithOwner at registration time, or nil.
// The returned bool is the "handled" signal: the first callback in priority
// order to return true stops the dispatch for that event.
type Callback func(ctx context.Context, owner any, args ...any) (bool, error)

// ErrorHandler is invoked when a protected callback fails.
//
// It receives the registration owner (or nil), the occurrence that was being
// dispatched and the trapped error. Its return value substitutes for the
// failed callback's handled signal.
type ErrorHandler func(ctx context.Context, owner any, occ Occurrence, err error) bool

// Occurrence is one dispatched event: a name plus its argument tuple.
type Occurrence struct {
	Name string
	Args []any
}

// WarnFunc receives non-fatal registry warnings, such as re-registering an
// existing event type.
type WarnFunc func(format string, args ...any)

// Common priorities. Any int is a valid priority; lower values run earlier.
const (
	// PriorityCapture is for callbacks that must see events before game
	// logic, e.g. UI input capture.
	PriorityCapture = -100

	// PriorityDefault is the priority used when none is given.
	PriorityDefault = 0

	// PriorityMonitor is for observers that should run after everything
	// else, e.g. metrics and logging.
	PriorityMonitor = 100
)

// CallbackOption configures a callback entry at Add time.
type CallbackOption func(*Entry)

// WithPriority sets the entry's priority. Lower values run earlier; entries
// with equal priority run in the order they were added.
func WithPriority(p int) CallbackOption {
	return func(e *Entry) {
		e.priority = p
	}
}

// WithOwner sets an opaque owner value passed as the first argument to the
// callback and to its error handler.
func WithOwner(owner any) CallbackOption {
	return func(e *Entry) {
		e.owner = owner
	}
}

// WithErrorHandler attaches an error handler, switching the entry to
// protected invocation: errors and panics raised by the callback are trapped
// and routed to the handler instead of aborting the dispatch.
func WithErrorHandler(h ErrorHandler) CallbackOption {
	return func(e *Entry) {
		e.onError = h
	}
}

// WithDisabled registers the entry disabled. It keeps its place in the
// registry but is excluded from the ordered view until enabled.
func WithDisabled() CallbackOption {
	return func(e *Entry) {
		e.enabled = false
	}
}

// WithKey overrides the entry's identity key. By default entries are keyed
// by the callback's code pointer, which cannot tell apart two closures built
// from the same function literal; bridges that register many closures (such
// as the Lua bridge) supply an explicit comparable key instead. Entries
// registered with a key must be removed with RemoveKey / SetEnabledKey.
func WithKey(key any) CallbackOption {
	return func(e *Entry) {
		e.key = key
	}
}

// TypeOption configures an event type at RegisterType time.
type TypeOption func(*typeConfig)

type typeConfig struct {
	base         Callback
	failIfExists bool
}

// WithBaseHandler attaches a base handler to the event type. The base
// handler is the host's default behavior for the event: it is invoked
// unconditionally before registered callbacks and does not participate in
// the short-circuit decision. Errors it returns propagate out of Dispatch.
func WithBaseHandler(cb Callback) TypeOption {
	return func(c *typeConfig) {
		c.base = cb
	}
}

// WithFailIfExists makes RegisterType return ErrDuplicateEvent when the type
// already exists, instead of warning and keeping the existing bookkeeping.
func WithFailIfExists() TypeOption {
	return func(c *typeConfig) {
		c.failIfExists = true
	}
}
