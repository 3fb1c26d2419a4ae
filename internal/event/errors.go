package event

import "errors"

// Sentinel errors for registry and dispatcher configuration failures.
// These fail synchronously at the call site that caused them.
var (
	// ErrUnknownEvent is returned when an operation names an event type
	// that was never registered.
	ErrUnknownEvent = errors.New("unknown event type")

	// ErrDuplicateEvent is returned by RegisterType with WithFailIfExists
	// when the event type already exists.
	ErrDuplicateEvent = errors.New("duplicate event type")

	// ErrInvalidCallback is returned when a nil callback is registered.
	ErrInvalidCallback = errors.New("invalid callback")

	// ErrUnregisteredCallback is returned when removing or toggling a
	// callback that is not registered for the event.
	ErrUnregisteredCallback = errors.New("callback not registered")

	// ErrCallbackPanic is the sentinel matched by errors.Is for panics
	// trapped during protected callback invocation.
	ErrCallbackPanic = errors.New("callback panicked")
)

// CallbackError wraps an error raised by an unprotected callback with the
// event that was being dispatched. It propagates out of Dispatch unmodified
// in meaning: Unwrap exposes the original error.
type CallbackError struct {
	// Event is the event name being dispatched when the callback failed.
	Event string

	// Err is the error returned by the callback.
	Err error
}

// Error implements the error interface.
func (e *CallbackError) Error() string {
	return "callback error dispatching " + e.Event + ": " + e.Err.Error()
}

// Unwrap returns the underlying callback error.
func (e *CallbackError) Unwrap() error {
	return e.Err
}

// PanicError wraps a panic trapped during a protected callback invocation.
type PanicError struct {
	// Event is the event name being dispatched when the callback panicked.
	Event string

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace captured at recovery time.
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return "callback panic dispatching " + e.Event
}

// Is allows errors.Is to match PanicError with ErrCallbackPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrCallbackPanic
}
