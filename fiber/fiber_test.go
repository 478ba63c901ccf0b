package fiber_test

import (
	"sync"
	"testing"

	"github.com/Winystar/My-CoroutineLib/fiber"
)

func TestNewFiberRunsToCompletion(t *testing.T) {
	var ran bool
	f := fiber.New(func() { ran = true }, 0, true)
	if f.State() != fiber.Ready {
		t.Fatalf("new fiber state = %s, want READY", f.State())
	}
	f.Resume()
	if !ran {
		t.Fatal("fiber body did not run")
	}
	if f.State() != fiber.Term {
		t.Fatalf("fiber state after completion = %s, want TERM", f.State())
	}
}

func TestYieldSuspendsAndResumeContinues(t *testing.T) {
	var steps []string
	f := fiber.New(func() {
		steps = append(steps, "a")
		fiber.Current().Yield()
		steps = append(steps, "b")
	}, 0, true)

	f.Resume()
	if f.State() != fiber.Ready {
		t.Fatalf("state after first resume = %s, want READY", f.State())
	}
	if len(steps) != 1 || steps[0] != "a" {
		t.Fatalf("steps after first resume = %v", steps)
	}

	f.Resume()
	if f.State() != fiber.Term {
		t.Fatalf("state after second resume = %s, want TERM", f.State())
	}
	if len(steps) != 2 || steps[1] != "b" {
		t.Fatalf("steps after second resume = %v", steps)
	}
}

func TestResumeOnNonReadyFiberPanics(t *testing.T) {
	f := fiber.New(func() {}, 0, true)
	f.Resume() // now TERM

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic resuming a TERM fiber")
		}
	}()
	f.Resume()
}

func TestResetReinstallsTerminatedFiber(t *testing.T) {
	f := fiber.New(func() {}, 0, true)
	f.Resume()
	if f.State() != fiber.Term {
		t.Fatalf("precondition: state = %s, want TERM", f.State())
	}

	var ranTwice bool
	f.Reset(func() { ranTwice = true })
	if f.State() != fiber.Ready {
		t.Fatalf("state after Reset = %s, want READY", f.State())
	}
	f.Resume()
	if !ranTwice {
		t.Fatal("reset function did not run")
	}
}

func TestPanicInsideFiberIsContained(t *testing.T) {
	f := fiber.New(func() { panic("boom") }, 0, true)
	f.Resume() // must not propagate the panic to the caller
	if f.State() != fiber.Term {
		t.Fatalf("state after panicking body = %s, want TERM", f.State())
	}
}

func TestCurrentSynthesizesStableMainFiber(t *testing.T) {
	a := fiber.Current()
	b := fiber.Current()
	if a.ID() != b.ID() {
		t.Fatal("Current() returned different fibers on the same goroutine")
	}
}

func TestChildFiberInheritsCreatorsHookContext(t *testing.T) {
	fiber.SetHookEnabled(true)
	fiber.SetIOManager("marker")
	defer fiber.SetHookEnabled(false)

	var sawHook bool
	var sawManager any
	f := fiber.New(func() {
		sawHook = fiber.HookEnabled()
		sawManager = fiber.CurrentIOManager()
	}, 0, true)
	f.Resume()

	if !sawHook {
		t.Fatal("child fiber did not inherit its creator's hook-enabled flag")
	}
	if sawManager != "marker" {
		t.Fatalf("child fiber saw IOManager %v, want %q", sawManager, "marker")
	}
}

func TestFiberIDsAreUnique(t *testing.T) {
	var wg sync.WaitGroup
	ids := make(chan uint64, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f := fiber.New(func() {}, 0, true)
			ids <- f.ID()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate fiber id %d", id)
		}
		seen[id] = true
	}
}
