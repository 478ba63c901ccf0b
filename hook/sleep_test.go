//go:build linux

package hook_test

import (
	"testing"
	"time"

	"github.com/Winystar/My-CoroutineLib/hook"
	"github.com/Winystar/My-CoroutineLib/ioruntime"
)

func TestSleepBlocksApproximatelyRequestedDuration(t *testing.T) {
	iom, err := ioruntime.NewIOManager(1, false, "test-sleep")
	if err != nil {
		t.Fatalf("NewIOManager: %v", err)
	}
	defer iom.Close()
	iom.Start()
	defer iom.Stop()

	done := make(chan time.Duration, 1)
	iom.ScheduleFunc(func() {
		start := time.Now()
		hook.Nanosleep(40 * time.Millisecond)
		done <- time.Since(start)
	}, -1)

	select {
	case elapsed := <-done:
		if elapsed < 35*time.Millisecond {
			t.Fatalf("hook.Nanosleep returned after only %v, want >= ~40ms", elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("slept task never completed")
	}
}
