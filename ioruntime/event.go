// File: ioruntime/event.go
// Author: momentics <momentics@gmail.com>

package ioruntime

// readyEvent is the platform-neutral readiness record the idle loop
// consumes from poller.wait.
type readyEvent struct {
	Fd   int32
	Mask Event
}
