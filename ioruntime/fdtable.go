// File: ioruntime/fdtable.go
// Author: momentics <momentics@gmail.com>
//
// The global fd-manager singleton (spec §3): maps every user-visible fd to
// its FdContext across all IOManagers in the process. Backed by a dense,
// geometrically-growing slice rather than a map, matching the source's
// "resize to ceil(fd*1.5)" growth rule; slots are never shrunk (spec §9.3).

package ioruntime

import "sync"

var fdTable struct {
	mu   sync.RWMutex
	rows []*FdContext
}

func growFdTable(fd int) {
	if fd < len(fdTable.rows) {
		return
	}
	newLen := fd + 1
	grown := (fd*3 + 1) / 2 // ceil(fd*1.5)
	if grown < newLen {
		grown = newLen
	}
	rows := make([]*FdContext, grown)
	copy(rows, fdTable.rows)
	fdTable.rows = rows
}

// getFdContext returns the existing context for fd, or nil.
func getFdContext(fd int) *FdContext {
	fdTable.mu.RLock()
	defer fdTable.mu.RUnlock()
	if fd < 0 || fd >= len(fdTable.rows) {
		return nil
	}
	return fdTable.rows[fd]
}

// ensureFdContext returns the existing context for fd, creating and
// registering a fresh one (growing the table if necessary) if absent.
func ensureFdContext(fd int) *FdContext {
	fdTable.mu.Lock()
	defer fdTable.mu.Unlock()
	growFdTable(fd)
	c := fdTable.rows[fd]
	if c == nil {
		c = newFdContext(fd)
		fdTable.rows[fd] = c
	}
	return c
}

// dropFdContext removes the table entry for fd (called from close).
func dropFdContext(fd int) {
	fdTable.mu.Lock()
	defer fdTable.mu.Unlock()
	if fd >= 0 && fd < len(fdTable.rows) {
		fdTable.rows[fd] = nil
	}
}

// Lookup returns the fd's FdContext, or nil if the fd is unknown to the
// runtime (never created by RegisterSocket/AddEvent, or already closed).
func Lookup(fd int) *FdContext {
	return getFdContext(fd)
}

// RegisterSocket creates (or reuses) the FdContext for fd and marks it a
// socket, recording the system-level non-blocking flag as set while leaving
// the user-visible non-blocking flag untouched (spec §4.5: "Socket creation
// registers a fresh FdContext..."). It does not change the kernel fd's
// mode; hook.Socket and hook.Accept set O_NONBLOCK before registering.
func RegisterSocket(fd int) *FdContext {
	c := ensureFdContext(fd)
	c.mu.Lock()
	c.isSocket = true
	c.sysNonblock = true
	c.isClosed = false
	c.mu.Unlock()
	return c
}

// Forget drops fd's FdContext from the global table (called by hook.Close
// after CancelAll has fired any pending continuations).
func Forget(fd int) {
	dropFdContext(fd)
}
