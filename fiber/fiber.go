// File: fiber/fiber.go
// Author: momentics <momentics@gmail.com>
//
// Package fiber implements the stackful coroutine primitive: a task that
// runs to a yield point or completion, then hands control back to whichever
// goroutine resumed it. Go provides no portable user-mode context switch
// without cgo and per-OS assembly, so the "machine context" of the source
// is realized as a dedicated goroutine parked on a pair of unbuffered
// handshake channels; the goroutine's own (growable) stack plays the role
// of the source's fixed-size stack allocation. See DESIGN.md for the full
// rationale.

package fiber

import (
	"sync"
	"sync/atomic"

	"github.com/Winystar/My-CoroutineLib/rerr"
	"github.com/Winystar/My-CoroutineLib/rlog"
)

// State is the fiber lifecycle state machine.
type State int32

const (
	Ready State = iota
	Running
	Term
)

func (s State) String() string {
	switch s {
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Term:
		return "TERM"
	default:
		return "UNKNOWN"
	}
}

// DefaultStackSize mirrors the source's 128 KiB default. It has no effect on
// an actual allocation (Go goroutine stacks grow on demand) but is carried
// as metadata so callers can still reason about the budget they asked for.
const DefaultStackSize = 128 * 1024

var fiberIDSeq uint64

func nextFiberID() uint64 {
	return atomic.AddUint64(&fiberIDSeq, 1) - 1
}

// Fiber is a stackful coroutine: a task that can suspend mid-call-stack and
// be resumed later, possibly by a different worker goroutine than the one
// that last resumed it.
type Fiber struct {
	id         uint64
	stackSize  int
	runInSched bool
	isMain     bool

	mu    sync.Mutex // serializes resume vs. concurrent manipulation
	state State

	fn func()

	resumeCh chan struct{}
	yieldCh  chan struct{}

	started int32 // 0 = trampoline goroutine not yet spawned

	// inheritedHook/inheritedIOManager are the creating goroutine's hook
	// context at the moment this fiber was constructed (see
	// snapshotHookContext), applied to this fiber's own dedicated goroutine
	// the first time it runs.
	inheritedHook      bool
	inheritedIOManager any
}

// New creates a child fiber in READY state. stackSize is advisory (see
// DefaultStackSize); runInScheduler selects whether Yield, called from deep
// inside fn, conceptually returns control to the worker's scheduler fiber
// (true) or to the thread's main fiber (false) — see tls.go. Since this
// implementation's Yield always just returns control to whichever goroutine
// is blocked in Resume, the flag is retained for API fidelity and
// diagnostics rather than to pick a literal switch target.
func New(fn func(), stackSize int, runInScheduler bool) *Fiber {
	if stackSize <= 0 {
		stackSize = DefaultStackSize
	}
	f := &Fiber{
		id:         nextFiberID(),
		stackSize:  stackSize,
		runInSched: runInScheduler,
		state:      Ready,
		fn:         fn,
		resumeCh:   make(chan struct{}),
		yieldCh:    make(chan struct{}),
	}
	f.inheritedHook, f.inheritedIOManager = snapshotHookContext()
	return f
}

// ID returns the fiber's monotonically increasing identity.
func (f *Fiber) ID() uint64 {
	if f == nil {
		return ^uint64(0)
	}
	return f.id
}

// State returns the current lifecycle state.
func (f *Fiber) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// RunsUnderScheduler reports the flag passed at construction.
func (f *Fiber) RunsUnderScheduler() bool {
	return f.runInSched
}

func (f *Fiber) ensureStarted() {
	if atomic.CompareAndSwapInt32(&f.started, 0, 1) {
		go f.loop()
	}
}

// loop is the trampoline: it owns the fiber's dedicated goroutine for the
// fiber's entire lifetime, including across Reset() calls, so that the
// goroutine id the fiber registers under tls.go never changes.
func (f *Fiber) loop() {
	goid := goroutineID()
	bindCurrent(f, goid)
	applyInheritedHookContext(goid, f.inheritedHook, f.inheritedIOManager)
	defer unbindGoroutine(goid)

	for range f.resumeCh {
		f.runOnce()
		f.yieldCh <- struct{}{}
		f.mu.Lock()
		term := f.state == Term
		f.mu.Unlock()
		if term {
			// Wait for a Reset followed by Resume (received by the for
			// range above); a fiber that is never reset keeps this
			// goroutine parked on resumeCh.
			continue
		}
	}
}

// runOnce executes fn to completion or until fn itself calls Yield one or
// more times; a panic inside fn is contained so it cannot corrupt the
// scheduler (spec §7 propagation policy).
func (f *Fiber) runOnce() {
	defer func() {
		if r := recover(); r != nil {
			rlog.Errorf("fiber %d: panic recovered: %v", f.id, r)
		}
		f.mu.Lock()
		f.fn = nil
		f.state = Term
		f.mu.Unlock()
	}()
	fn := f.fn
	if fn != nil {
		fn()
	}
}

// Resume starts or continues the fiber. Precondition: state == READY. The
// calling goroutine blocks until the fiber yields or terminates; the fiber
// may be resumed again later by a different goroutine/worker than the one
// that called Resume this time (thread migration, spec §5).
func (f *Fiber) Resume() {
	f.mu.Lock()
	if f.state != Ready {
		f.mu.Unlock()
		panic(rerr.ErrFiberNotReady)
	}
	f.state = Running
	f.mu.Unlock()

	f.ensureStarted()
	f.resumeCh <- struct{}{}
	<-f.yieldCh
}

// Yield suspends the calling fiber, returning control to whichever goroutine
// is blocked in the matching Resume call. Precondition: state ∈ {RUNNING,
// TERM}; a TERM fiber retains TERM instead of being flipped back to READY
// (the trampoline's own final yield after fn returns).
func (f *Fiber) Yield() {
	f.mu.Lock()
	switch f.state {
	case Running:
		f.state = Ready
	case Term:
		// leave as-is
	default:
		f.mu.Unlock()
		panic(rerr.ErrFiberNotRunning)
	}
	term := f.state == Term
	f.mu.Unlock()

	if term {
		return // the trampoline sends yieldCh itself; nothing to wait for
	}

	f.yieldCh <- struct{}{}
	<-f.resumeCh
}

// Reset reinstalls a fresh function on a TERM fiber, enabling pooling.
// Precondition: state == TERM.
func (f *Fiber) Reset(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Term {
		panic(rerr.New(rerr.CodeInvalidArgument, "fiber.Reset: fiber is not TERM"))
	}
	f.fn = fn
	f.state = Ready
}
