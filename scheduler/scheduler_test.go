package scheduler_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Winystar/My-CoroutineLib/scheduler"
)

func TestScheduleFuncRunsOnWorker(t *testing.T) {
	s := scheduler.New(2, false, "test")
	s.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	s.ScheduleFunc(func() { wg.Done() }, scheduler.AnyThread)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled task never ran")
	}

	s.Stop()
}

func TestManyTasksAllRun(t *testing.T) {
	s := scheduler.New(4, false, "test-many")
	s.Start()

	const n = 200
	var count int32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		s.ScheduleFunc(func() {
			atomic.AddInt32(&count, 1)
			wg.Done()
		}, scheduler.AnyThread)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("only %d/%d tasks completed", atomic.LoadInt32(&count), n)
	}
	if got := atomic.LoadInt32(&count); got != n {
		t.Fatalf("count = %d, want %d", got, n)
	}

	s.Stop()
}

func TestStopIsIdempotentAfterDraining(t *testing.T) {
	s := scheduler.New(1, false, "test-stop")
	s.Start()
	s.Stop()
	s.Stop() // a second Stop on a drained scheduler returns at once
	if !s.Stopping() {
		t.Fatal("Stopping() should report true once Stop has drained all workers")
	}
}

func TestAssertNotOwnWorkerPanicsInsideTask(t *testing.T) {
	s := scheduler.New(1, false, "test-self-stop")
	s.Start()

	recovered := make(chan any, 1)
	done := make(chan struct{})
	s.ScheduleFunc(func() {
		defer func() { recovered <- recover(); close(done) }()
		s.Stop() // calling Stop() from one of this scheduler's own workers
	}, scheduler.AnyThread)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never completed")
	}
	if r := <-recovered; r == nil {
		t.Fatal("expected Stop() called from a worker to panic")
	}

	// The scheduler is still running (the panicking task's goroutine
	// doesn't participate in worker bookkeeping incorrectly); drain it for
	// real from the test goroutine, which is not one of its workers.
	s.Stop()
}
