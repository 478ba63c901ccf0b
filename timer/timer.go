// File: timer/timer.go
// Author: momentics <momentics@gmail.com>
//
// Timer is a single pending deadline owned by a Manager. Ordering key is the
// absolute next-fire instant; ties are broken by a stable sequence number so
// distinct timers with equal deadlines never collide (spec §3/§4.3).

package timer

import (
	"sync/atomic"
	"time"
)

var timerSeq uint64

func nextSeq() uint64 { return atomic.AddUint64(&timerSeq, 1) }

// Timer holds the fields the spec's data model names: interval, absolute
// next-fire instant, recurring flag, callback, and a back-reference to the
// owning manager.
type Timer struct {
	seq       uint64
	interval  time.Duration
	next      time.Time
	recurring bool
	cb        func()
	manager   *Manager

	heapIndex int // maintained by container/heap
}

// Handle is the caller-facing reference to a Timer (spec's shared_ptr<Timer>
// ergonomics), valid for the timer's whole lifetime even after it fires or
// is removed from the heap.
type Handle struct {
	t *Timer
}

func less(a, b *Timer) bool {
	if a.next.Equal(b.next) {
		return a.seq < b.seq
	}
	return a.next.Before(b.next)
}

// Cancel removes the timer if still pending. Returns false if it was
// already cancelled/fired.
func (h Handle) Cancel() bool {
	return h.t.manager.cancel(h.t)
}

// Refresh recomputes the deadline from now and reinserts; no-op if already
// cancelled or, for a one-shot timer, already fired.
func (h Handle) Refresh() bool {
	return h.t.manager.refresh(h.t)
}

// Reset recomputes the timer's interval/start point and reinserts, firing
// the front-edge tickle idiom. fromNow selects whether the new deadline is
// measured from time.Now() or from the timer's previous scheduled start.
func (h Handle) Reset(newInterval time.Duration, fromNow bool) bool {
	return h.t.manager.reset(h.t, newInterval, fromNow)
}
