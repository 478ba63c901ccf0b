// File: scheduler/scheduler.go
// Author: momentics <momentics@gmail.com>
//
// Thread-pool task queue feeding fibers. Composition stands in for the
// source's inheritance chain: Hooks is the small protocol
// (tickle/idle/stopping) that an outer layer (ioruntime.IOManager)
// overrides, per the Design Notes rearchitecture guidance.

package scheduler

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/Winystar/My-CoroutineLib/affinity"
	"github.com/Winystar/My-CoroutineLib/fiber"
	"github.com/Winystar/My-CoroutineLib/rerr"
	"github.com/Winystar/My-CoroutineLib/rlog"
	"github.com/Winystar/My-CoroutineLib/rmetrics"
)

// Hooks is the small override protocol the Design Notes call for in place
// of the source's IOManager-extends-Scheduler-extends-TimerManager
// inheritance chain. A bare Scheduler uses the zero-value (no-op tickle,
// sleep-based idle, base stopping predicate); ioruntime.IOManager supplies
// its own.
type Hooks struct {
	Tickle   func()
	Idle     func()
	Stopping func() bool

	// OnWorkerStart, if set, runs once on each spawned worker goroutine
	// before it enters the dispatch loop (spec §4.4: "workers of an
	// IOManager enable hooking on entry"). It is NOT invoked automatically
	// for the use_caller-bound thread; callers that need that do it
	// themselves right after SetHooks, since that thread is already
	// running by the time New() returns.
	OnWorkerStart func()
}

// Scheduler is the task queue + worker pool + dispatch loop.
type Scheduler struct {
	mu   sync.Mutex
	q    *queue.Queue
	name string

	threadCount int
	useCaller   bool
	affinityCPU []int

	stoppingFlag int32
	started      int32

	activeWorkers int32
	idleWorkers   int32

	wg sync.WaitGroup

	callerSchedFiber *fiber.Fiber

	// workers tracks every fiber currently executing under this scheduler's
	// own dispatch: each worker's main fiber (for its lifetime), each
	// worker's idle fiber (for its lifetime), and each task fiber (only
	// while actually resumed). Consulted by AssertNotOwnWorker.
	workersMu sync.Mutex
	workers   map[*fiber.Fiber]struct{}

	hooks   Hooks
	metrics *rmetrics.Registry
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithMetrics attaches a metrics registry the scheduler will keep updated
// with active/idle worker counts.
func WithMetrics(r *rmetrics.Registry) Option {
	return func(s *Scheduler) { s.metrics = r }
}

// WithAffinity pins worker i (0-based) to CPU cpus[i] when len(cpus) covers
// it; workers beyond len(cpus) are left unpinned. Grounded on the teacher's
// affinity package (cgo pthread_setaffinity_np on Linux).
func WithAffinity(cpus []int) Option {
	return func(s *Scheduler) { s.affinityCPU = cpus }
}

// New constructs a Scheduler. If useCaller, the calling goroutine is bound
// as a worker immediately: its main fiber is synthesized and a dedicated
// scheduler fiber (body = dispatch loop) is created for it, per spec §4.2.
func New(threadCount int, useCaller bool, name string, opts ...Option) *Scheduler {
	if threadCount <= 0 {
		threadCount = 1
	}
	s := &Scheduler{
		q:           queue.New(),
		name:        name,
		threadCount: threadCount,
		useCaller:   useCaller,
		workers:     make(map[*fiber.Fiber]struct{}),
	}
	s.hooks = Hooks{
		Tickle:   func() {},
		Idle:     s.defaultIdle,
		Stopping: s.BaseStopping,
	}
	for _, o := range opts {
		o(s)
	}

	if useCaller {
		fiber.Current() // synthesize this goroutine's main fiber
		callerIdx := 0
		s.callerSchedFiber = fiber.New(func() { s.dispatchLoop(callerIdx) }, 0, false)
		fiber.SetSchedulerFiber(s.callerSchedFiber)
	}
	return s
}

// SetHooks installs the tickle/idle/stopping overrides. Must be called
// before Start.
func (s *Scheduler) SetHooks(h Hooks) {
	if h.Tickle != nil {
		s.hooks.Tickle = h.Tickle
	}
	if h.Idle != nil {
		s.hooks.Idle = h.Idle
	}
	if h.Stopping != nil {
		s.hooks.Stopping = h.Stopping
	}
	if h.OnWorkerStart != nil {
		s.hooks.OnWorkerStart = h.OnWorkerStart
	}
}

// Name returns the scheduler's diagnostic name.
func (s *Scheduler) Name() string { return s.name }

// Schedule pushes task onto the queue. If the queue was empty, tickle() is
// invoked to wake an idle worker.
func (s *Scheduler) Schedule(f *fiber.Fiber, affinity int) {
	s.scheduleTask(taskFromFiber(f, affinity))
}

// ScheduleFunc wraps cb into a fresh fiber on first dispatch.
func (s *Scheduler) ScheduleFunc(cb func(), affinity int) {
	s.scheduleTask(taskFromCallback(cb, affinity))
}

func (s *Scheduler) scheduleTask(t task) {
	s.mu.Lock()
	wasEmpty := s.q.Length() == 0
	s.q.Add(t)
	s.mu.Unlock()
	if wasEmpty {
		s.hooks.Tickle()
	}
}

// Start spawns the remaining workers (threadCount, minus one if useCaller
// already bound the calling goroutine) and is idempotent; calling it after
// Stop is forbidden.
func (s *Scheduler) Start() {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return
	}
	extra := s.threadCount
	if s.useCaller {
		extra--
	}
	for i := 0; i < extra; i++ {
		idx := i
		if s.useCaller {
			idx++ // caller occupies slot 0
		}
		s.wg.Add(1)
		go s.runWorker(idx)
	}
}

func (s *Scheduler) runWorker(idx int) {
	defer s.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if idx < len(s.affinityCPU) {
		if err := affinity.SetAffinity(s.affinityCPU[idx]); err != nil {
			rlog.Warnf("scheduler %s: worker %d affinity pin failed: %v", s.name, idx, err)
		}
	}

	fiber.SetThreadIdentity(s.name, gettid())

	if s.hooks.OnWorkerStart != nil {
		s.hooks.OnWorkerStart()
	}

	me := fiber.Current()
	s.registerRunning(me)
	defer s.unregisterRunning(me)

	s.dispatchLoop(idx)
}

// Stop marks the scheduler stopping, tickles every worker, optionally
// drains the caller-bound worker, and joins all spawned workers.
func (s *Scheduler) Stop() {
	s.AssertNotOwnWorker()
	atomic.StoreInt32(&s.stoppingFlag, 1)
	for i := 0; i < s.threadCount; i++ {
		s.hooks.Tickle()
	}
	if s.callerSchedFiber != nil && s.callerSchedFiber.State() == fiber.Ready {
		s.callerSchedFiber.Resume()
	}
	s.wg.Wait()
}

// BaseStopping reports the base predicate: stopping requested, queue empty,
// and no worker currently active. Outer layers (ioruntime) AND this into a
// richer predicate via Hooks.Stopping.
func (s *Scheduler) BaseStopping() bool {
	if atomic.LoadInt32(&s.stoppingFlag) == 0 {
		return false
	}
	s.mu.Lock()
	empty := s.q.Length() == 0
	s.mu.Unlock()
	return empty && atomic.LoadInt32(&s.activeWorkers) == 0
}

// Stopping is the externally observable stopping predicate, going through
// whatever Hooks.Stopping override is installed.
func (s *Scheduler) Stopping() bool {
	return s.hooks.Stopping()
}

// AssertNotOwnWorker panics if called from a fiber that is itself currently
// executing under this scheduler's own dispatch: a worker's main fiber, its
// idle fiber, or a task fiber mid-Resume. Stop() only has caller-thread
// semantics when useCaller was set (spec Design Notes open question,
// resolved in SPEC_FULL.md §9.1) — the bound caller thread is not registered
// and is always allowed to call Stop.
func (s *Scheduler) AssertNotOwnWorker() {
	me := fiber.Current()
	s.workersMu.Lock()
	_, isWorker := s.workers[me]
	s.workersMu.Unlock()
	if isWorker {
		panic(rerr.ErrSameWorkerStop)
	}
}

func (s *Scheduler) registerRunning(f *fiber.Fiber) {
	s.workersMu.Lock()
	s.workers[f] = struct{}{}
	s.workersMu.Unlock()
}

func (s *Scheduler) unregisterRunning(f *fiber.Fiber) {
	s.workersMu.Lock()
	delete(s.workers, f)
	s.workersMu.Unlock()
}

func (s *Scheduler) defaultIdle() {
	for !s.hooks.Stopping() {
		time.Sleep(time.Millisecond)
		fiber.Current().Yield()
	}
}

// dispatchLoop is the per-worker body described in spec §4.2. idx is the
// worker's affinity slot (matches Schedule's thread parameter).
func (s *Scheduler) dispatchLoop(idx int) {
	idleFiber := fiber.New(s.hooks.Idle, 0, true)
	s.registerRunning(idleFiber)
	defer s.unregisterRunning(idleFiber)

	for {
		t, foreignSeen, ok := s.popEligible(idx)
		if foreignSeen {
			s.hooks.Tickle()
		}

		if ok {
			atomic.AddInt32(&s.activeWorkers, 1)
			s.reportCounts()
			s.runTask(t)
			atomic.AddInt32(&s.activeWorkers, -1)
			s.reportCounts()
			continue
		}

		if idleFiber.State() == fiber.Term {
			// The idle body only returns once Stopping() held at its own
			// loop head, per spec §4.2 step 5 / §4.4 idle-fiber body.
			return
		}
		atomic.AddInt32(&s.idleWorkers, 1)
		s.reportCounts()
		idleFiber.Resume()
		atomic.AddInt32(&s.idleWorkers, -1)
		s.reportCounts()
	}
}

// popEligible scans the queue for the first task whose affinity matches idx
// (or AnyThread), rotating past ineligible entries rather than removing them
// from the middle — eapache/queue is a FIFO ring buffer with no indexed
// delete, so a bounded rotate-scan is the natural adaptation.
func (s *Scheduler) popEligible(idx int) (t task, foreignSeen bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.q.Length()
	for i := 0; i < n; i++ {
		cand := s.q.Remove().(task)
		if cand.affinity == AnyThread || cand.affinity == idx {
			return cand, foreignSeen, true
		}
		foreignSeen = true
		s.q.Add(cand)
	}
	return task{}, foreignSeen, false
}

func (s *Scheduler) runTask(t task) {
	f := t.f
	if f == nil {
		f = fiber.New(t.cb, 0, true)
	}
	if f.State() != fiber.Ready {
		rlog.Errorf("scheduler %s: dropping task for fiber %d in state %s", s.name, f.ID(), f.State())
		return
	}
	// Registered only while actually resumed: a fiber that yields mid-task
	// (e.g. blocked in a hook call) is not "running" and must not trip
	// AssertNotOwnWorker for whichever worker later resumes it.
	s.registerRunning(f)
	f.Resume()
	s.unregisterRunning(f)
}

func (s *Scheduler) reportCounts() {
	if s.metrics == nil {
		return
	}
	s.metrics.Set("active_workers", int64(atomic.LoadInt32(&s.activeWorkers)))
	s.metrics.Set("idle_workers", int64(atomic.LoadInt32(&s.idleWorkers)))
}
