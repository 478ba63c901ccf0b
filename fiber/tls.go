// File: fiber/tls.go
// Author: momentics <momentics@gmail.com>
//
// Thread-local identity (spec data model §3): pointer to the currently
// running Fiber, the thread's main fiber, the thread's scheduler fiber, and
// a hook_enabled flag. "Thread" here is realized as "goroutine that owns a
// fiber body for its whole lifetime" (see goid.go); a worker that calls
// runtime.LockOSThread() additionally gets a stable gettid, recorded
// separately for diagnostics since it is not used as a lookup key.

package fiber

import "sync"

var (
	tlsMu       sync.RWMutex
	currentByG  = make(map[int64]*Fiber)
	mainByG     = make(map[int64]*Fiber)
	schedByG    = make(map[int64]*Fiber)
	hookByG     = make(map[int64]bool)
	threadNameG = make(map[int64]string)
	threadTidG  = make(map[int64]int)
	iomanagerG  = make(map[int64]any)
)

func bindCurrent(f *Fiber, goid int64) {
	tlsMu.Lock()
	currentByG[goid] = f
	tlsMu.Unlock()
}

func unbindGoroutine(goid int64) {
	tlsMu.Lock()
	delete(currentByG, goid)
	delete(mainByG, goid)
	delete(schedByG, goid)
	delete(hookByG, goid)
	delete(threadNameG, goid)
	delete(threadTidG, goid)
	delete(iomanagerG, goid)
	tlsMu.Unlock()
}

// Current returns the Fiber representing the calling goroutine, synthesizing
// a RUNNING "main" fiber the first time it is called on a given goroutine.
// This is the Go analogue of Fiber::getThis().
func Current() *Fiber {
	goid := goroutineID()
	tlsMu.RLock()
	f := currentByG[goid]
	tlsMu.RUnlock()
	if f != nil {
		return f
	}

	main := &Fiber{
		id:     nextFiberID(),
		state:  Running,
		isMain: true,
	}
	tlsMu.Lock()
	// Another goroutine can't race us here: goid is local to this goroutine.
	currentByG[goid] = main
	mainByG[goid] = main
	schedByG[goid] = main
	tlsMu.Unlock()
	return main
}

// CurrentID returns the id of the fiber running on the calling goroutine,
// synthesizing the goroutine's main fiber first if none exists yet (see
// Current).
func CurrentID() uint64 {
	return Current().ID()
}

// SetSchedulerFiber designates f as the dispatch-loop fiber for the calling
// goroutine's thread of control. Scheduler workers call this once at
// startup; child fibers created with runsUnderScheduler=true conceptually
// yield back to this fiber.
func SetSchedulerFiber(f *Fiber) {
	goid := goroutineID()
	tlsMu.Lock()
	schedByG[goid] = f
	tlsMu.Unlock()
}

// SchedulerFiber returns the scheduler fiber registered for the calling
// goroutine: the fiber last passed to SetSchedulerFiber, else the main fiber
// Current synthesized (the source's default), or nil if neither has
// happened on this goroutine.
func SchedulerFiber() *Fiber {
	goid := goroutineID()
	tlsMu.RLock()
	defer tlsMu.RUnlock()
	return schedByG[goid]
}

// SetHookEnabled toggles the per-thread hook_enabled flag gating syscall
// interception for the calling goroutine.
func SetHookEnabled(enabled bool) {
	goid := goroutineID()
	tlsMu.Lock()
	hookByG[goid] = enabled
	tlsMu.Unlock()
}

// HookEnabled reports whether interception is active for the calling goroutine.
func HookEnabled() bool {
	goid := goroutineID()
	tlsMu.RLock()
	defer tlsMu.RUnlock()
	return hookByG[goid]
}

// SetIOManager records the owning IOManager for the calling goroutine's
// thread of control. Stored as `any` (rather than a concrete type) so this
// package never imports ioruntime; the hook package downcasts it.
func SetIOManager(v any) {
	goid := goroutineID()
	tlsMu.Lock()
	iomanagerG[goid] = v
	tlsMu.Unlock()
}

// CurrentIOManager returns whatever was last recorded via SetIOManager for
// the calling goroutine, or nil.
func CurrentIOManager() any {
	goid := goroutineID()
	tlsMu.RLock()
	defer tlsMu.RUnlock()
	return iomanagerG[goid]
}

// snapshotHookContext captures the calling goroutine's current hook-enabled
// flag and IOManager association, for a newly created fiber to carry onto
// its own dedicated goroutine. Child fibers created by a worker thus inherit
// that worker's hook context, mirroring the source's per-OS-thread TLS,
// where every coroutine scheduled onto a thread shares its thread_local
// state automatically.
func snapshotHookContext() (hookEnabled bool, iomanager any) {
	goid := goroutineID()
	tlsMu.RLock()
	defer tlsMu.RUnlock()
	return hookByG[goid], iomanagerG[goid]
}

// applyInheritedHookContext installs a fiber's inherited hook context onto
// its own trampoline goroutine the first time that goroutine runs, before it
// starts executing the fiber's body.
func applyInheritedHookContext(goid int64, hookEnabled bool, iomanager any) {
	if !hookEnabled && iomanager == nil {
		return
	}
	tlsMu.Lock()
	hookByG[goid] = hookEnabled
	iomanagerG[goid] = iomanager
	tlsMu.Unlock()
}

// SetThreadIdentity records the diagnostic name/gettid pair for the calling
// goroutine. Workers call this once after runtime.LockOSThread().
func SetThreadIdentity(name string, tid int) {
	goid := goroutineID()
	tlsMu.Lock()
	threadNameG[goid] = name
	threadTidG[goid] = tid
	tlsMu.Unlock()
}

// ThreadIdentity returns the diagnostic name/gettid pair for the calling goroutine.
func ThreadIdentity() (name string, tid int) {
	goid := goroutineID()
	tlsMu.RLock()
	defer tlsMu.RUnlock()
	return threadNameG[goid], threadTidG[goid]
}
