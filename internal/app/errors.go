package app

import "errors"

// Application errors.
var (
	// ErrQuit signals that the runtime should exit normally.
	ErrQuit = errors.New("quit requested")

	// ErrAlreadyRunning indicates the runtime is already running.
	ErrAlreadyRunning = errors.New("application already running")

	// ErrNotRunning indicates the runtime is not running.
	ErrNotRunning = errors.New("application not running")
)

// InitError represents an initialization error.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}
