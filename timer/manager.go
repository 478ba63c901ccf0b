// File: timer/manager.go
// Author: momentics <momentics@gmail.com>
//
// Manager is a reader/writer-locked ordered set of pending deadlines,
// realizing spec §4.3's TimerManager.

package timer

import (
	"container/heap"
	"sync"
	"time"
)

// NoDeadline is returned by GetNextDelay when the timer set is empty,
// standing in for the source's U64_MAX sentinel.
const NoDeadline = time.Duration(-1)

// rollbackThreshold: a wall-clock read earlier than prevNow by more than
// this forces every pending timer to harvest as expired (spec §4.3).
const rollbackThreshold = time.Hour

// Manager is the ordered deadline set. The zero value is not usable; use
// NewManager.
type Manager struct {
	mu      sync.RWMutex
	heap    timerHeap
	tickled bool
	prevNow time.Time

	// TimerInsertedAtFront is invoked (outside the lock) whenever a newly
	// inserted timer becomes the new front of the set while tickled was
	// false, matching the timer_inserted_at_front() hook. IOManager
	// installs tickle() here; the zero value is a no-op.
	TimerInsertedAtFront func()
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{prevNow: time.Now().Round(0)}
}

// AddTimer inserts a new timer firing after interval, optionally recurring.
func (m *Manager) AddTimer(interval time.Duration, cb func(), recurring bool) Handle {
	t := &Timer{
		seq:       nextSeq(),
		interval:  interval,
		next:      time.Now().Add(interval),
		recurring: recurring,
		cb:        cb,
		manager:   m,
	}
	m.insert(t)
	return Handle{t: t}
}

// AddConditionTimer wraps cb so that, at fire time, it first attempts to
// upgrade the weak condition; if upgrade returns false the callback is
// dropped silently. This is the race-free cancellation idiom the hook layer
// relies on (spec §4.3, grounded on original_source/6hook's
// addConidtionTimer + timer_info weak_ptr pattern).
func (m *Manager) AddConditionTimer(interval time.Duration, cb func(), upgrade func() bool, recurring bool) Handle {
	wrapped := func() {
		if !upgrade() {
			return
		}
		cb()
	}
	return m.AddTimer(interval, wrapped, recurring)
}

func (m *Manager) insert(t *Timer) {
	m.mu.Lock()
	heap.Push(&m.heap, t)
	atFront := m.heap.peek() == t
	shouldTickle := atFront && !m.tickled
	if shouldTickle {
		m.tickled = true
	}
	m.mu.Unlock()

	if shouldTickle && m.TimerInsertedAtFront != nil {
		m.TimerInsertedAtFront()
	}
}

// GetNextDelay returns the time until the nearest deadline, 0 if it has
// already passed, or NoDeadline if the set is empty. Calling this clears
// the tickled flag so at most one wakeup is issued per quiescent period.
func (m *Manager) GetNextDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickled = false

	head := m.heap.peek()
	if head == nil {
		return NoDeadline
	}
	d := time.Until(head.next)
	if d < 0 {
		return 0
	}
	return d
}

// HasTimer reports whether any timer is pending.
func (m *Manager) HasTimer() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.heap.Len() > 0
}

// HarvestExpired pops every timer whose deadline has passed (or every timer
// if a clock rollback was detected), returning their callbacks in deadline
// order. Recurring timers are recomputed and reinserted.
func (m *Manager) HarvestExpired() []func() {
	now := time.Now()
	wallNow := now.Round(0) // strip the monotonic reading so a backward clock step is visible

	m.mu.Lock()
	rollback := wallNow.Before(m.prevNow.Add(-rollbackThreshold))
	m.prevNow = wallNow
	var cbs []func()
	for {
		head := m.heap.peek()
		if head == nil {
			break
		}
		if !rollback && head.next.After(now) {
			break
		}
		heap.Pop(&m.heap)
		if head.cb == nil { // cancelled while Refresh/Reset was reinserting it
			continue
		}
		cbs = append(cbs, head.cb)
		if head.recurring {
			head.next = now.Add(head.interval)
			heap.Push(&m.heap, head)
		} else {
			head.cb = nil // fired: a later Cancel/Refresh/Reset reports false
		}
	}
	m.mu.Unlock()
	return cbs
}

func (m *Manager) cancel(t *Timer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.cb == nil {
		return false
	}
	t.cb = nil
	m.heap.removeTimer(t)
	return true
}

func (m *Manager) refresh(t *Timer) bool {
	m.mu.Lock()
	if t.cb == nil {
		m.mu.Unlock()
		return false
	}
	m.heap.removeTimer(t)
	t.next = time.Now().Add(t.interval)
	m.mu.Unlock()

	m.insert(t)
	return true
}

func (m *Manager) reset(t *Timer, newInterval time.Duration, fromNow bool) bool {
	m.mu.Lock()
	if t.cb == nil {
		m.mu.Unlock()
		return false
	}
	if newInterval == t.interval && !fromNow {
		m.mu.Unlock()
		return true // no-op per spec's round-trip property
	}
	m.heap.removeTimer(t)
	var start time.Time
	if fromNow {
		start = time.Now()
	} else {
		start = t.next.Add(-t.interval)
	}
	t.interval = newInterval
	t.next = start.Add(newInterval)
	m.mu.Unlock()

	m.insert(t)
	return true
}
