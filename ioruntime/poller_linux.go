//go:build linux

// File: ioruntime/poller_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7) readiness poller, edge-triggered, grounded on
// reactor/reactor_linux.go. The fd itself (not a pointer stashed in
// epoll_data) is the user-data we round-trip through the kernel: looking
// events back up through the fd-indexed table avoids the unsafe-pointer-
// across-GC hazard the source's raw epoll_data union pointer would carry
// over into Go (documented trade-off, see DESIGN.md).

package ioruntime

import (
	"time"

	"golang.org/x/sys/unix"
)

const maxEventsPerWait = 256

type poller struct {
	epfd int
}

func newPoller() (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &poller{epfd: epfd}, nil
}

func toEpollMask(ev Event) uint32 {
	var m uint32
	if ev&EventRead != 0 {
		m |= unix.EPOLLIN
	}
	if ev&EventWrite != 0 {
		m |= unix.EPOLLOUT
	}
	return m | unix.EPOLLET
}

// addOrModify registers fd for mask, adding if this is the first interest
// on fd or modifying if the fd is already known to the poller.
func (p *poller) addOrModify(fd int, mask Event, wasRegistered bool) error {
	ev := &unix.EpollEvent{Events: toEpollMask(mask), Fd: int32(fd)}
	op := unix.EPOLL_CTL_ADD
	if wasRegistered {
		op = unix.EPOLL_CTL_MOD
	}
	return unix.EpollCtl(p.epfd, op, fd, ev)
}

func (p *poller) remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// wait blocks up to timeout for ready fds, translating kernel-reported
// read/write/error/hup onto Event. timeout < 0 blocks indefinitely; EINTR is
// retried internally. Every call gets its own stack-local scratch buffer —
// one poller is shared by every worker's idle fiber, and each calls wait
// concurrently (spec's idle-loop step 2), so a buffer on the poller itself
// would let concurrent EpollWait calls corrupt each other's events, exactly
// as the source's per-thread stack-local event array avoids on its side.
func (p *poller) wait(timeout time.Duration) ([]readyEvent, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
		if ms < 0 {
			ms = 0
		}
	}
	var scratch [maxEventsPerWait]unix.EpollEvent
	var n int
	for {
		var err error
		n, err = unix.EpollWait(p.epfd, scratch[:], ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}
	out := make([]readyEvent, n)
	for i := 0; i < n; i++ {
		out[i] = readyEvent{Fd: scratch[i].Fd, Mask: translateMask(scratch[i].Events)}
	}
	return out, nil
}

func translateMask(kernelEvents uint32) Event {
	var m Event
	if kernelEvents&(unix.EPOLLIN|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		m |= EventRead
	}
	if kernelEvents&(unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		m |= EventWrite
	}
	return m
}

func (p *poller) close() error {
	return unix.Close(p.epfd)
}
