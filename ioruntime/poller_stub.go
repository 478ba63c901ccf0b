//go:build !linux

// File: ioruntime/poller_stub.go
// Author: momentics <momentics@gmail.com>
//
// The interception layer's contract is Linux-like readiness events only
// (spec Non-goals); other platforms get a constructor error rather than a
// silent no-op poller.

package ioruntime

import (
	"errors"
	"time"
)

type poller struct{}

func newPoller() (*poller, error) {
	return nil, errors.New("ioruntime: epoll poller is only available on linux")
}

func (p *poller) addOrModify(fd int, mask Event, wasRegistered bool) error {
	return errors.New("ioruntime: unsupported platform")
}

func (p *poller) remove(fd int) error { return errors.New("ioruntime: unsupported platform") }

func (p *poller) wait(timeout time.Duration) ([]readyEvent, error) {
	return nil, errors.New("ioruntime: unsupported platform")
}

func (p *poller) close() error { return nil }
