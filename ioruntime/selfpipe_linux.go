//go:build linux

// File: ioruntime/selfpipe_linux.go
// Author: momentics <momentics@gmail.com>
//
// Self-pipe cross-thread wakeup (spec §4.4/§5): a single reader-writer pair
// per IOManager, registered edge-triggered; tickle() writes one byte, the
// idle fiber drains it on EPOLLIN.

package ioruntime

import "golang.org/x/sys/unix"

type selfPipe struct {
	r, w int
}

func newSelfPipe() (*selfPipe, error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &selfPipe{r: p[0], w: p[1]}, nil
}

func (p *selfPipe) tickle() {
	var b [1]byte
	_, _ = unix.Write(p.w, b[:])
}

// drain exhausts the pipe's read end under edge-triggering.
func (p *selfPipe) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(p.r, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (p *selfPipe) close() {
	_ = unix.Close(p.r)
	_ = unix.Close(p.w)
}
