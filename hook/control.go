// File: hook/control.go
// Author: momentics <momentics@gmail.com>

package hook

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/Winystar/My-CoroutineLib/ioruntime"
)

// Close hooks close(2): cancel every pending event on fd (firing their
// continuations), forget the FdContext, then invoke the raw close (spec
// §4.5).
func Close(fd int) error {
	if c := ioruntime.Lookup(fd); c != nil {
		c.MarkClosed()
	}
	if iom := currentIOManager(); iom != nil {
		iom.CancelAll(fd)
	}
	ioruntime.Forget(fd)
	return unix.Close(fd)
}

// SetNonblock is the hook equivalent of intercepting fcntl(F_SETFL,
// O_NONBLOCK) / ioctl(FIONBIO): it records the user-visible flag without
// relaxing the kernel-level non-blocking mode the hook layer relies on
// (spec §4.5's fcntl/ioctl interception).
func SetNonblock(fd int, nonblocking bool) error {
	if c := ioruntime.Lookup(fd); c != nil {
		c.SetUserNonblock(nonblocking)
		return nil
	}
	return unix.SetNonblock(fd, nonblocking)
}

// SetRecvTimeout is the hook equivalent of intercepting setsockopt
// SO_RCVTIMEO: the timeout is recorded in the FdContext for the
// cooperative layer to honor rather than handed to the kernel.
func SetRecvTimeout(fd int, d time.Duration) {
	if c := ioruntime.Lookup(fd); c != nil {
		c.SetTimeout(ioruntime.EventRead, d.Milliseconds())
		return
	}
	ioruntime.RegisterSocket(fd).SetTimeout(ioruntime.EventRead, d.Milliseconds())
}

// SetSendTimeout is the hook equivalent of intercepting setsockopt
// SO_SNDTIMEO.
func SetSendTimeout(fd int, d time.Duration) {
	if c := ioruntime.Lookup(fd); c != nil {
		c.SetTimeout(ioruntime.EventWrite, d.Milliseconds())
		return
	}
	ioruntime.RegisterSocket(fd).SetTimeout(ioruntime.EventWrite, d.Milliseconds())
}
