//go:build linux

// File: scheduler/gettid_linux.go
// Author: momentics <momentics@gmail.com>

package scheduler

import "golang.org/x/sys/unix"

func gettid() int {
	return unix.Gettid()
}
