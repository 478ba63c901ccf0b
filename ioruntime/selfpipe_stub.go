//go:build !linux

// File: ioruntime/selfpipe_stub.go
// Author: momentics <momentics@gmail.com>

package ioruntime

import "errors"

type selfPipe struct {
	r, w int
}

func newSelfPipe() (*selfPipe, error) {
	return nil, errors.New("ioruntime: self-pipe is only available on linux")
}

func (p *selfPipe) tickle() {}
func (p *selfPipe) drain()  {}
func (p *selfPipe) close()  {}
