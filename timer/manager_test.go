package timer_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/Winystar/My-CoroutineLib/timer"
)

func TestAddTimerFiresAfterInterval(t *testing.T) {
	m := timer.NewManager()
	var fired int32
	m.AddTimer(20*time.Millisecond, func() { atomic.StoreInt32(&fired, 1) }, false)

	if got := harvestAndRun(m); got != 0 {
		t.Fatalf("harvested %d callbacks before the deadline elapsed", got)
	}
	time.Sleep(30 * time.Millisecond)
	if got := harvestAndRun(m); got != 1 {
		t.Fatalf("harvested %d callbacks, want 1", got)
	}
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatal("callback did not run")
	}
}

func TestCancelPreventsFire(t *testing.T) {
	m := timer.NewManager()
	var fired int32
	h := m.AddTimer(10*time.Millisecond, func() { atomic.StoreInt32(&fired, 1) }, false)

	if !h.Cancel() {
		t.Fatal("Cancel on a pending timer should return true")
	}
	if h.Cancel() {
		t.Fatal("Cancel on an already-cancelled timer should return false")
	}

	time.Sleep(20 * time.Millisecond)
	cbs := m.HarvestExpired()
	if len(cbs) != 0 {
		t.Fatalf("cancelled timer still harvested, got %d callbacks", len(cbs))
	}
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatal("cancelled callback ran")
	}
}

func TestRefreshPostponesFire(t *testing.T) {
	m := timer.NewManager()
	var fired int32
	h := m.AddTimer(15*time.Millisecond, func() { atomic.StoreInt32(&fired, 1) }, false)

	time.Sleep(10 * time.Millisecond)
	if !h.Refresh() {
		t.Fatal("Refresh on a pending timer should return true")
	}

	// The original deadline (15ms from start) would have passed by now, but
	// Refresh reset it another 15ms out from the refresh point.
	time.Sleep(10 * time.Millisecond)
	harvestAndRun(m)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatal("timer fired before its refreshed deadline")
	}

	time.Sleep(15 * time.Millisecond)
	harvestAndRun(m)
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatal("refreshed timer never fired")
	}
}

func TestResetNoopRoundTrip(t *testing.T) {
	m := timer.NewManager()
	h := m.AddTimer(50*time.Millisecond, func() {}, false)

	// Same interval, not measured from now: a declared no-op that must not
	// disturb the existing deadline or require a reinsertion.
	if !h.Reset(50*time.Millisecond, false) {
		t.Fatal("Reset with identical interval and fromNow=false should report success")
	}
}

func TestRecurringTimerReinserts(t *testing.T) {
	m := timer.NewManager()
	var count int32
	m.AddTimer(10*time.Millisecond, func() { atomic.AddInt32(&count, 1) }, true)

	time.Sleep(35 * time.Millisecond)
	harvestAndRun(m)
	time.Sleep(15 * time.Millisecond)
	harvestAndRun(m)

	if got := atomic.LoadInt32(&count); got < 2 {
		t.Fatalf("recurring timer fired %d times, want at least 2", got)
	}
}

func TestAddConditionTimerDropsWhenUpgradeFails(t *testing.T) {
	m := timer.NewManager()
	var ran int32
	m.AddConditionTimer(10*time.Millisecond, func() { atomic.StoreInt32(&ran, 1) }, func() bool { return false }, false)

	time.Sleep(20 * time.Millisecond)
	harvestAndRun(m)
	if atomic.LoadInt32(&ran) != 0 {
		t.Fatal("condition timer callback ran despite upgrade() returning false")
	}
}

func TestAddConditionTimerRunsWhenUpgradeSucceeds(t *testing.T) {
	m := timer.NewManager()
	var ran int32
	m.AddConditionTimer(10*time.Millisecond, func() { atomic.StoreInt32(&ran, 1) }, func() bool { return true }, false)

	time.Sleep(20 * time.Millisecond)
	harvestAndRun(m)
	if atomic.LoadInt32(&ran) != 1 {
		t.Fatal("condition timer callback did not run despite upgrade() returning true")
	}
}

func TestHarvestExpiredOrdersByDeadline(t *testing.T) {
	m := timer.NewManager()
	var order []int
	m.AddTimer(30*time.Millisecond, func() { order = append(order, 3) }, false)
	m.AddTimer(10*time.Millisecond, func() { order = append(order, 1) }, false)
	m.AddTimer(20*time.Millisecond, func() { order = append(order, 2) }, false)

	time.Sleep(40 * time.Millisecond)
	for _, cb := range m.HarvestExpired() {
		cb()
	}
	if len(order) != 3 {
		t.Fatalf("got %d callbacks, want 3", len(order))
	}
	for i, v := range order {
		if v != i+1 {
			t.Fatalf("fire order = %v, want [1 2 3]", order)
		}
	}
}

func TestGetNextDelayReflectsNearestDeadline(t *testing.T) {
	m := timer.NewManager()
	if d := m.GetNextDelay(); d != timer.NoDeadline {
		t.Fatalf("GetNextDelay on empty manager = %v, want NoDeadline", d)
	}

	m.AddTimer(50*time.Millisecond, func() {}, false)
	d := m.GetNextDelay()
	if d <= 0 || d > 50*time.Millisecond {
		t.Fatalf("GetNextDelay = %v, want in (0, 50ms]", d)
	}
}

func TestHasTimer(t *testing.T) {
	m := timer.NewManager()
	if m.HasTimer() {
		t.Fatal("HasTimer on empty manager should be false")
	}
	h := m.AddTimer(time.Minute, func() {}, false)
	if !m.HasTimer() {
		t.Fatal("HasTimer after AddTimer should be true")
	}
	h.Cancel()
	if m.HasTimer() {
		t.Fatal("HasTimer after Cancel should be false")
	}
}

func TestTimerInsertedAtFrontFiresOnceForLeadingEdge(t *testing.T) {
	m := timer.NewManager()
	var calls int32
	m.TimerInsertedAtFront = func() { atomic.AddInt32(&calls, 1) }

	m.AddTimer(50*time.Millisecond, func() {}, false)
	m.AddTimer(100*time.Millisecond, func() {}, false) // not the new front, no call

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("TimerInsertedAtFront called %d times, want 1", got)
	}

	// Clears the tickled latch, so the next front-insertion calls again.
	m.GetNextDelay()
	m.AddTimer(10*time.Millisecond, func() {}, false)
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("TimerInsertedAtFront called %d times after a fresh front insert, want 2", got)
	}
}

func harvestAndRun(m *timer.Manager) int {
	cbs := m.HarvestExpired()
	for _, cb := range cbs {
		cb()
	}
	return len(cbs)
}
