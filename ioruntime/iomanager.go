// File: ioruntime/iomanager.go
// Author: momentics <momentics@gmail.com>
//
// IOManager composes Scheduler and TimerManager by embedding rather than
// the source's inheritance chain (Design Notes §9, SPEC_FULL.md §4.4): it
// overrides Scheduler's tickle/idle/stopping hooks and wires
// TimerManager's front-insert callback, so the Scheduler's own dispatch
// loop runs unchanged, parameterized only by the installed Hooks.

package ioruntime

import (
	"sync/atomic"
	"time"

	"github.com/Winystar/My-CoroutineLib/fiber"
	"github.com/Winystar/My-CoroutineLib/rerr"
	"github.com/Winystar/My-CoroutineLib/rlog"
	"github.com/Winystar/My-CoroutineLib/rmetrics"
	"github.com/Winystar/My-CoroutineLib/scheduler"
	"github.com/Winystar/My-CoroutineLib/timer"
)

// maxIdleBlock bounds the idle fiber's kernel wait so a newly-armed timer
// that races the tickle is still picked up within a bounded window.
const maxIdleBlock = 5 * time.Second

// IOManager is a Scheduler + TimerManager plus a readiness poller and
// fd-context bookkeeping (spec §4.4).
type IOManager struct {
	*scheduler.Scheduler
	*timer.Manager

	name    string
	p       *poller
	pipe    *selfPipe
	pending int64 // atomic: outstanding readiness registrations
	metrics *rmetrics.Registry

	affinityPending []int // staged by WithAffinity, consumed in NewIOManager
}

// Option configures an IOManager at construction time.
type Option func(*IOManager)

// WithMetrics attaches a metrics registry updated with the pending-event
// gauge.
func WithMetrics(r *rmetrics.Registry) Option {
	return func(m *IOManager) { m.metrics = r }
}

// WithAffinity pins worker i to cpus[i], forwarded to the embedded
// Scheduler.
func WithAffinity(cpus []int) Option {
	return func(m *IOManager) {
		// applied via a scheduler.Option captured at NewIOManager time;
		// see schedOpts below.
		m.affinityPending = cpus
	}
}

// NewIOManager constructs an IOManager with its own poller and self-pipe,
// wires the Scheduler/TimerManager hook protocol, and registers the
// self-pipe's read end for edge-triggered readiness.
func NewIOManager(threadCount int, useCaller bool, name string, opts ...Option) (*IOManager, error) {
	p, err := newPoller()
	if err != nil {
		return nil, err
	}
	pipe, err := newSelfPipe()
	if err != nil {
		p.close()
		return nil, err
	}

	m := &IOManager{name: name, p: p, pipe: pipe}
	for _, o := range opts {
		o(m)
	}

	schedOpts := []scheduler.Option{}
	if m.metrics != nil {
		schedOpts = append(schedOpts, scheduler.WithMetrics(m.metrics))
	}
	if len(m.affinityPending) > 0 {
		schedOpts = append(schedOpts, scheduler.WithAffinity(m.affinityPending))
	}

	m.Scheduler = scheduler.New(threadCount, useCaller, name, schedOpts...)
	m.Manager = timer.NewManager()
	m.Manager.TimerInsertedAtFront = m.tickle
	m.Scheduler.SetHooks(scheduler.Hooks{
		Tickle:        m.tickle,
		Idle:          m.idleBody,
		Stopping:      m.stopping,
		OnWorkerStart: m.onWorkerStart,
	})
	if useCaller {
		m.onWorkerStart()
	}

	pipeCtx := ensureFdContext(pipe.r)
	pipeCtx.mu.Lock()
	pipeCtx.events = EventRead
	pipeCtx.read.owner = m
	pipeCtx.mu.Unlock()
	if err := p.addOrModify(pipe.r, EventRead, false); err != nil {
		p.close()
		pipe.close()
		return nil, err
	}

	return m, nil
}

// PendingEventCount returns the number of outstanding kernel-side readiness
// registrations, a testable invariant target (spec §8).
func (m *IOManager) PendingEventCount() int64 {
	return atomic.LoadInt64(&m.pending)
}

// AddEvent registers interest in ev on fd. If cb is nil, the calling
// fiber (fiber.Current()) is recorded as the continuation; exactly one
// registrant is allowed per direction (spec §4.4).
func (m *IOManager) AddEvent(fd int, ev Event, cb func()) error {
	c := ensureFdContext(fd)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosed {
		return rerr.ErrFdClosed
	}
	if c.events&ev != 0 {
		return rerr.ErrEventAlreadySet
	}
	wasRegistered := c.events != EventNone
	newMask := c.events | ev
	if err := m.p.addOrModify(fd, newMask, wasRegistered); err != nil {
		return err
	}
	c.events = newMask

	slot := c.slot(ev)
	slot.owner = m
	if cb != nil {
		slot.cb = cb
	} else {
		slot.f = fiber.Current()
	}
	atomic.AddInt64(&m.pending, 1)
	m.reportPending()
	return nil
}

// DelEvent clears ev on fd without firing its continuation.
func (m *IOManager) DelEvent(fd int, ev Event) error {
	c := getFdContext(fd)
	if c == nil {
		return rerr.ErrFdClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return m.delEventLocked(c, ev, false)
}

// CancelEvent clears ev on fd and fires its continuation via trigger_event.
func (m *IOManager) CancelEvent(fd int, ev Event) error {
	c := getFdContext(fd)
	if c == nil {
		return rerr.ErrFdClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return m.delEventLocked(c, ev, true)
}

func (m *IOManager) delEventLocked(c *FdContext, ev Event, fire bool) error {
	if c.events&ev == 0 {
		return nil
	}
	slot := c.slot(ev)
	residual := c.events &^ ev

	if residual == EventNone {
		_ = m.p.remove(c.fd)
	} else {
		_ = m.p.addOrModify(c.fd, residual, true)
	}
	c.events = residual
	atomic.AddInt64(&m.pending, -1)
	m.reportPending()

	if fire {
		m.fireSlot(slot)
	}
	slot.reset()
	return nil
}

// CancelAll removes fd from the poller entirely, firing both directions'
// continuations if set.
func (m *IOManager) CancelAll(fd int) {
	c := getFdContext(fd)
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.events&EventRead != 0 {
		m.delEventLocked(c, EventRead, true)
	}
	if c.events&EventWrite != 0 {
		m.delEventLocked(c, EventWrite, true)
	}
}

// triggerEvent fires the continuation for direction ev on c, which must
// currently have the bit set; called from the idle loop under c.mu.
func (m *IOManager) triggerEvent(c *FdContext, ev Event) {
	slot := c.slot(ev)
	if slot == nil || slot.empty() {
		return
	}
	c.events &^= ev
	atomic.AddInt64(&m.pending, -1)
	m.reportPending()
	m.fireSlot(slot)
	slot.reset()
}

func (m *IOManager) fireSlot(slot *eventContext) {
	owner := slot.owner
	if owner == nil {
		owner = m
	}
	if slot.cb != nil {
		owner.ScheduleFunc(slot.cb, scheduler.AnyThread)
	} else if slot.f != nil {
		owner.Schedule(slot.f, scheduler.AnyThread)
	}
}

// onWorkerStart registers this IOManager as the calling goroutine's owner
// and enables syscall interception for it (spec §4.4: "workers of an
// IOManager enable hooking on entry").
func (m *IOManager) onWorkerStart() {
	fiber.SetIOManager(m)
	fiber.SetHookEnabled(true)
}

// tickle wakes the idle fiber by writing the self-pipe, so a newly-armed
// front-of-queue timer or a freshly scheduled task is noticed promptly.
func (m *IOManager) tickle() {
	m.pipe.tickle()
}

// stopping is the IOManager override of Scheduler's stopping predicate:
// timers empty && no pending readiness registrations && base Scheduler
// stopping (spec §4.4).
func (m *IOManager) stopping() bool {
	return !m.Manager.HasTimer() &&
		atomic.LoadInt64(&m.pending) == 0 &&
		m.Scheduler.BaseStopping()
}

// idleBody is the dispatch loop's "no work" hook (spec §4.4 step 1-6).
func (m *IOManager) idleBody() {
	for {
		if m.stopping() {
			return
		}

		timeout := m.Manager.GetNextDelay()
		if timeout == timer.NoDeadline || timeout > maxIdleBlock {
			timeout = maxIdleBlock
		}

		events, err := m.p.wait(timeout)
		if err != nil {
			rlog.Errorf("ioruntime %s: poller wait failed: %v", m.name, err)
		}

		for _, cb := range m.Manager.HarvestExpired() {
			m.ScheduleFunc(cb, scheduler.AnyThread)
		}

		for _, ev := range events {
			fd := int(ev.Fd)
			if fd == m.pipe.r {
				m.pipe.drain()
				continue
			}
			m.handleReady(fd, ev.Mask)
		}

		fiber.Current().Yield()
	}
}

func (m *IOManager) handleReady(fd int, mask Event) {
	c := getFdContext(fd)
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	fire := mask & c.events
	if fire&EventRead != 0 {
		m.triggerEvent(c, EventRead)
	}
	if fire&EventWrite != 0 {
		m.triggerEvent(c, EventWrite)
	}
	if fire != EventNone {
		// Fired bits are one-shot: bring the poller registration in line
		// with the residual mask so a later AddEvent adds or modifies
		// according to what the kernel actually holds.
		if c.events == EventNone {
			_ = m.p.remove(fd)
		} else {
			_ = m.p.addOrModify(fd, c.events, true)
		}
	}
}

func (m *IOManager) reportPending() {
	if m.metrics == nil {
		return
	}
	m.metrics.Set("pending_events", atomic.LoadInt64(&m.pending))
}

// Close releases the poller and self-pipe. Call after Stop.
func (m *IOManager) Close() error {
	m.pipe.close()
	return m.p.close()
}
