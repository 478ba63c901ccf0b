//go:build !linux

// File: scheduler/gettid_other.go
// Author: momentics <momentics@gmail.com>
//
// Non-Linux builds have no gettid-equivalent exposed through x/sys/unix in a
// portable way; the runtime contract (§6 of the spec) is Linux-like readiness
// events only, so a process-wide counter stands in for diagnostics purposes.

package scheduler

import "sync/atomic"

var fallbackTidSeq int32

func gettid() int {
	return int(atomic.AddInt32(&fallbackTidSeq, 1))
}
