// File: hook/sleep.go
// Author: momentics <momentics@gmail.com>

package hook

import (
	"time"

	"github.com/Winystar/My-CoroutineLib/fiber"
	"github.com/Winystar/My-CoroutineLib/scheduler"
)

// Sleep hooks time.Sleep-equivalent seconds-granularity sleeping: arm a
// one-shot timer that reschedules the calling fiber, then yield (spec
// §4.5's sleep family, uniform across sleep/usleep/nanosleep).
func Sleep(seconds uint) {
	sleepFor(time.Duration(seconds) * time.Second)
}

// Usleep hooks microsecond-granularity sleeping.
func Usleep(usec uint) {
	sleepFor(time.Duration(usec) * time.Microsecond)
}

// Nanosleep hooks nanosecond-granularity sleeping.
func Nanosleep(d time.Duration) {
	sleepFor(d)
}

func sleepFor(d time.Duration) {
	if !fiber.HookEnabled() {
		time.Sleep(d)
		return
	}
	iom := currentIOManager()
	if iom == nil {
		time.Sleep(d)
		return
	}
	f := fiber.Current()
	iom.AddTimer(d, func() { iom.Schedule(f, scheduler.AnyThread) }, false)
	f.Yield()
}
