// File: hook/io.go
// Author: momentics <momentics@gmail.com>
//
// Read/write family hooks, all built on doIO (spec §4.5's generic do_io).

package hook

import (
	"golang.org/x/sys/unix"

	"github.com/Winystar/My-CoroutineLib/ioruntime"
)

// Read hooks read(2).
func Read(fd int, p []byte) (int, error) {
	return doIO(fd, ioruntime.EventRead, ioruntime.EventRead, func() (int, error) {
		return unix.Read(fd, p)
	})
}

// Readv hooks readv(2).
func Readv(fd int, iovs [][]byte) (int, error) {
	return doIO(fd, ioruntime.EventRead, ioruntime.EventRead, func() (int, error) {
		return unix.Readv(fd, iovs)
	})
}

// Recv hooks recv(2).
func Recv(fd int, p []byte, flags int) (int, error) {
	return doIO(fd, ioruntime.EventRead, ioruntime.EventRead, func() (int, error) {
		n, _, e := unix.Recvfrom(fd, p, flags)
		return n, e
	})
}

// Recvfrom hooks recvfrom(2).
func Recvfrom(fd int, p []byte, flags int) (n int, from unix.Sockaddr, err error) {
	_, err = doIO(fd, ioruntime.EventRead, ioruntime.EventRead, func() (int, error) {
		nn, fr, e := unix.Recvfrom(fd, p, flags)
		n, from = nn, fr
		return nn, e
	})
	return n, from, err
}

// Recvmsg hooks recvmsg(2) for a single-buffer message.
func Recvmsg(fd int, p, oob []byte, flags int) (n, oobn int, err error) {
	_, err = doIO(fd, ioruntime.EventRead, ioruntime.EventRead, func() (int, error) {
		nn, oobnn, _, _, e := unix.Recvmsg(fd, p, oob, flags)
		n, oobn = nn, oobnn
		return nn, e
	})
	return n, oobn, err
}

// Write hooks write(2).
func Write(fd int, p []byte) (int, error) {
	return doIO(fd, ioruntime.EventWrite, ioruntime.EventWrite, func() (int, error) {
		return unix.Write(fd, p)
	})
}

// Writev hooks writev(2).
func Writev(fd int, iovs [][]byte) (int, error) {
	return doIO(fd, ioruntime.EventWrite, ioruntime.EventWrite, func() (int, error) {
		return unix.Writev(fd, iovs)
	})
}

// Send hooks send(2).
func Send(fd int, p []byte, flags int) (int, error) {
	return doIO(fd, ioruntime.EventWrite, ioruntime.EventWrite, func() (int, error) {
		if err := unix.Sendto(fd, p, flags, nil); err != nil {
			return -1, err
		}
		return len(p), nil
	})
}

// Sendto hooks sendto(2).
func Sendto(fd int, p []byte, flags int, to unix.Sockaddr) (int, error) {
	return doIO(fd, ioruntime.EventWrite, ioruntime.EventWrite, func() (int, error) {
		if err := unix.Sendto(fd, p, flags, to); err != nil {
			return -1, err
		}
		return len(p), nil
	})
}

// Sendmsg hooks sendmsg(2) for a single-buffer message.
func Sendmsg(fd int, p, oob []byte, to unix.Sockaddr, flags int) (int, error) {
	return doIO(fd, ioruntime.EventWrite, ioruntime.EventWrite, func() (int, error) {
		return unix.SendmsgN(fd, p, oob, to, flags)
	})
}
