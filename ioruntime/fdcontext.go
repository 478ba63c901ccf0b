// File: ioruntime/fdcontext.go
// Author: momentics <momentics@gmail.com>
//
// FdContext is the per-file-descriptor readiness and continuation record
// (spec §3/§4.4). Indexing by raw fd is the ownership model: contexts live
// in a dense, fd-indexed table owned by the process-wide fd manager
// (fdtable.go), not in a map.

package ioruntime

import (
	"sync"

	"github.com/Winystar/My-CoroutineLib/fiber"
)

// Event is a readiness direction bit.
type Event uint8

const (
	EventNone  Event = 0
	EventRead  Event = 1 << 0
	EventWrite Event = 1 << 1
)

// eventContext holds one direction's registered continuation: either a
// callback or a fiber handle (never both), plus the IOManager that owns the
// resume. A nil owner means the slot is empty.
type eventContext struct {
	owner *IOManager
	cb    func()
	f     *fiber.Fiber
}

func (e *eventContext) empty() bool {
	return e.cb == nil && e.f == nil
}

func (e *eventContext) reset() {
	e.owner = nil
	e.cb = nil
	e.f = nil
}

// FdContext is the dense-table record for one fd.
type FdContext struct {
	fd int

	mu     sync.Mutex
	events Event // currently-registered mask

	read  eventContext
	write eventContext

	userNonblock bool // user-requested non-blocking flag
	sysNonblock  bool // system-imposed (always true once hooked, for sockets)

	readTimeout  int64 // ms, 0 = none
	writeTimeout int64 // ms, 0 = none

	isSocket bool
	isClosed bool
}

func newFdContext(fd int) *FdContext {
	return &FdContext{fd: fd}
}

func (c *FdContext) slot(ev Event) *eventContext {
	switch ev {
	case EventRead:
		return &c.read
	case EventWrite:
		return &c.write
	default:
		return nil
	}
}

// Events returns the currently-registered mask.
func (c *FdContext) Events() Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events
}

// IsClosed reports whether close has already been processed for this fd.
func (c *FdContext) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isClosed
}

// MarkClosed records that close(2) has been intercepted for this fd, so any
// doIO call that raced in between hook.Close's continuation-firing step and
// its removal from the fd table fails fast with EBADF instead of touching
// the kernel with a fd number the OS may already have reissued.
func (c *FdContext) MarkClosed() {
	c.mu.Lock()
	c.isClosed = true
	c.mu.Unlock()
}

// IsSocket reports whether this fd was registered via RegisterSocket.
func (c *FdContext) IsSocket() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isSocket
}

// UserNonblock reports the user-requested non-blocking flag (distinct from
// the system-imposed one the hook layer always forces on sockets).
func (c *FdContext) UserNonblock() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userNonblock
}

// SetUserNonblock records the user-requested non-blocking flag, as seen by
// an intercepted fcntl(F_SETFL)/ioctl(FIONBIO) call.
func (c *FdContext) SetUserNonblock(v bool) {
	c.mu.Lock()
	c.userNonblock = v
	c.mu.Unlock()
}

// Timeout returns the per-direction timeout in milliseconds (0 = none), as
// set by SetTimeout (intercepted setsockopt SO_RCVTIMEO/SO_SNDTIMEO).
func (c *FdContext) Timeout(ev Event) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev == EventWrite {
		return c.writeTimeout
	}
	return c.readTimeout
}

// SetTimeout records the per-direction timeout in milliseconds.
func (c *FdContext) SetTimeout(ev Event, ms int64) {
	c.mu.Lock()
	if ev == EventWrite {
		c.writeTimeout = ms
	} else {
		c.readTimeout = ms
	}
	c.mu.Unlock()
}
