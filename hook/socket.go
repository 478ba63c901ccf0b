// File: hook/socket.go
// Author: momentics <momentics@gmail.com>

package hook

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/Winystar/My-CoroutineLib/fiber"
	"github.com/Winystar/My-CoroutineLib/ioruntime"
)

// Socket creates a socket and registers a fresh FdContext for it marked
// is_socket (spec §4.5). The kernel fd is always left non-blocking; the
// user-visible non-blocking flag defaults to false (blocking) until
// SetNonblock says otherwise.
func Socket(domain, typ, proto int) (int, error) {
	fd, err := unix.Socket(domain, typ, proto)
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	ioruntime.RegisterSocket(fd)
	return fd, nil
}

// Connect hooks connect with a configurable timeout (spec §4.5): the raw
// connect either completes immediately, fails outright, or returns
// EINPROGRESS, in which case WRITE readiness (optionally bounded by a
// condition timer) is awaited before reading SO_ERROR.
func Connect(fd int, sa unix.Sockaddr, timeout time.Duration) error {
	c := ioruntime.Lookup(fd)
	if !fiber.HookEnabled() || c == nil || !c.IsSocket() || c.UserNonblock() {
		return unix.Connect(fd, sa)
	}

	err := unix.Connect(fd, sa)
	if err == nil {
		return nil
	}
	if err != unix.EINPROGRESS {
		return err
	}

	iom := currentIOManager()
	if iom == nil {
		return err
	}

	if timeout <= 0 {
		if ms := c.Timeout(ioruntime.EventWrite); ms > 0 {
			timeout = time.Duration(ms) * time.Millisecond
		}
	}

	state := &timeoutState{}
	var cancelTimer func() bool
	if timeout > 0 {
		h := iom.AddConditionTimer(timeout, func() {
			state.markTimedOut()
			iom.CancelEvent(fd, ioruntime.EventWrite)
		}, func() bool { return true }, false)
		cancelTimer = h.Cancel
	}

	if err := iom.AddEvent(fd, ioruntime.EventWrite, nil); err != nil {
		if cancelTimer != nil {
			cancelTimer()
		}
		return err
	}

	fiber.Current().Yield()

	if cancelTimer != nil {
		cancelTimer()
	}
	if state.wasTimedOut() {
		return unix.ETIMEDOUT
	}

	soErr, gerr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if gerr != nil {
		return gerr
	}
	if soErr != 0 {
		return unix.Errno(soErr)
	}
	return nil
}

// Accept hooks accept, retrying through the generic do_io machinery on
// EAGAIN, and registers a fresh FdContext for the accepted connection.
func Accept(fd int) (int, unix.Sockaddr, error) {
	var nfd int
	var sa unix.Sockaddr
	_, err := doIO(fd, ioruntime.EventRead, ioruntime.EventRead, func() (int, error) {
		n, addr, e := unix.Accept(fd)
		nfd, sa = n, addr
		if e != nil {
			return -1, e
		}
		return n, nil
	})
	if err != nil {
		return -1, nil, err
	}
	if err := unix.SetNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		return -1, nil, err
	}
	ioruntime.RegisterSocket(nfd)
	return nfd, sa, nil
}
