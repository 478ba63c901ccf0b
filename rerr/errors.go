// File: rerr/errors.go
// Author: momentics <momentics@gmail.com>
//
// Structured error kinds shared across fiber, scheduler, timer and
// ioruntime. Fiber and scheduler misuse panics with one of the sentinel
// errors below (fiber.Reset panics with an *Error); everything else,
// including a second AddEvent on an already registered direction, is
// returned through the normal Go error channel.

package rerr

import "fmt"

// Common sentinel errors used across the runtime.
var (
	ErrFiberNotReady     = fmt.Errorf("rerr: fiber is not in READY state")
	ErrFiberNotRunning   = fmt.Errorf("rerr: fiber is not RUNNING or TERM")
	ErrFiberStackGone    = fmt.Errorf("rerr: fiber stack already released")
	ErrSchedulerStopped  = fmt.Errorf("rerr: scheduler is stopping or stopped")
	ErrSchedulerStarted  = fmt.Errorf("rerr: scheduler already started")
	ErrSameWorkerStop    = fmt.Errorf("rerr: Stop() called from a worker of this scheduler")
	ErrTimerCancelled    = fmt.Errorf("rerr: timer already cancelled")
	ErrEventAlreadySet   = fmt.Errorf("rerr: event already registered for this direction")
	ErrFdClosed          = fmt.Errorf("rerr: file descriptor closed")
	ErrFdNotSocket       = fmt.Errorf("rerr: file descriptor is not a socket")
	ErrResourceExhausted = fmt.Errorf("rerr: resource exhausted")
)

// Code classifies an Error for programmatic handling.
type Code int

const (
	CodeOK Code = iota
	CodeInvalidArgument
	CodeResourceExhausted
	CodeTimeout
	CodeNotSupported
	CodeAlreadyExists
	CodeNotFound
	CodeInternal
)

// Error is a structured error carrying a Code and free-form context, mirroring
// the library's sentinel-error idiom for cases that need extra detail.
type Error struct {
	Code    Code
	Message string
	Context map[string]any
}

func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// New creates a structured Error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Context: make(map[string]any)}
}

// WithContext attaches a key/value pair and returns the same Error for chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
