// File: scheduler/task.go
// Author: momentics <momentics@gmail.com>
//
// task is the tagged variant the dispatch loop consumes: either a fiber
// handle to resume directly, or a callback to be wrapped into a fresh fiber
// on first dispatch, plus an optional thread-affinity hint.

package scheduler

import "github.com/Winystar/My-CoroutineLib/fiber"

// AnyThread is the affinity value meaning "any worker may run this task".
const AnyThread = -1

type task struct {
	f        *fiber.Fiber
	cb       func()
	affinity int
}

func taskFromFiber(f *fiber.Fiber, affinity int) task {
	return task{f: f, affinity: affinity}
}

func taskFromCallback(cb func(), affinity int) task {
	return task{cb: cb, affinity: affinity}
}
