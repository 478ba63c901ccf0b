// File: hook/hook.go
// Author: momentics <momentics@gmail.com>
//
// Package hook is the explicit wrapper-API substitute for the source's
// LD_PRELOAD/dlsym symbol interposition (Design Notes §9: "provide an
// explicit wrapper API with the same contract as do_io so applications can
// opt in without the preload trick"). The read/write family, Accept,
// Connect and the sleep family have do_io's contract: pass through to the
// real call when hooking is disabled for the calling goroutine, otherwise
// rewrite a blocking call into register-interest / yield / resume against
// the calling fiber's IOManager.
//
// fiber.HookEnabled gates those functions; ioruntime's per-worker
// onWorkerStart turns it on for IOManager workers (spec §4.5). Socket,
// Close, SetNonblock, SetRecvTimeout and SetSendTimeout do not consult the
// flag: they update the fd table whether or not hooking is enabled.

package hook

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Winystar/My-CoroutineLib/fiber"
	"github.com/Winystar/My-CoroutineLib/ioruntime"
)

// currentIOManager resolves the calling goroutine's owning IOManager,
// mirroring the source's IOManager::getThis().
func currentIOManager() *ioruntime.IOManager {
	iom, _ := fiber.CurrentIOManager().(*ioruntime.IOManager)
	return iom
}

// timeoutState is the Go analogue of the source's timer_info: a flag the
// condition timer sets when it fires before the I/O completed.
type timeoutState struct {
	mu       sync.Mutex
	timedOut bool
}

func (s *timeoutState) markTimedOut() {
	s.mu.Lock()
	s.timedOut = true
	s.mu.Unlock()
}

func (s *timeoutState) wasTimedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timedOut
}

// doIO is the generic retry/register/yield helper every blocking-call hook
// below is built from (spec §4.5's do_io). raw performs the underlying
// syscall and must return (n, err) with err being a unix.Errno value on
// failure (or nil on success).
func doIO(fd int, event ioruntime.Event, timeoutKind ioruntime.Event, raw func() (int, error)) (int, error) {
	if !fiber.HookEnabled() {
		return raw()
	}
	c := ioruntime.Lookup(fd)
	if c == nil {
		return raw()
	}
	if c.IsClosed() {
		return -1, unix.EBADF
	}
	if !c.IsSocket() || c.UserNonblock() {
		return raw()
	}
	iom := currentIOManager()
	if iom == nil {
		return raw()
	}
	timeoutMS := c.Timeout(timeoutKind)

	for {
		n, err := raw()
		for err == unix.EINTR {
			n, err = raw()
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return n, err
		}

		state := &timeoutState{}
		var cancelTimer func() bool
		hasTimer := timeoutMS > 0
		if hasTimer {
			h := iom.AddConditionTimer(time.Duration(timeoutMS)*time.Millisecond, func() {
				state.markTimedOut()
				iom.CancelEvent(fd, event)
			}, func() bool { return true }, false)
			cancelTimer = h.Cancel
		}

		if err := iom.AddEvent(fd, event, nil); err != nil {
			if hasTimer {
				cancelTimer()
			}
			return -1, err
		}

		fiber.Current().Yield()

		if hasTimer {
			cancelTimer()
		}
		if state.wasTimedOut() {
			return -1, unix.ETIMEDOUT
		}
		// fall through: retry the raw call
	}
}
