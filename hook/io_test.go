//go:build linux

package hook_test

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Winystar/My-CoroutineLib/hook"
	"github.com/Winystar/My-CoroutineLib/ioruntime"
)

func newRegisteredLoopbackPair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		t.Fatalf("setnonblock: %v", err)
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		t.Fatalf("setnonblock: %v", err)
	}
	ioruntime.RegisterSocket(fds[0])
	ioruntime.RegisterSocket(fds[1])
	return fds[0], fds[1]
}

func TestReadBlocksThenReturnsOnceDataArrives(t *testing.T) {
	iom, err := ioruntime.NewIOManager(2, false, "test-hook-io")
	if err != nil {
		t.Fatalf("NewIOManager: %v", err)
	}
	defer iom.Close()
	iom.Start()
	defer iom.Stop()

	a, b := newRegisteredLoopbackPair(t)
	defer hook.Close(a)
	defer unix.Close(b)

	readDone := make(chan []byte, 1)
	iom.ScheduleFunc(func() {
		buf := make([]byte, 32)
		n, err := hook.Read(a, buf)
		if err != nil {
			t.Errorf("hook.Read: %v", err)
			readDone <- nil
			return
		}
		readDone <- buf[:n]
	}, -1)

	// Give the reader a moment to block on the initial EAGAIN before the
	// peer writes, exercising the register-interest/yield/resume path
	// rather than a lucky immediate read.
	time.Sleep(20 * time.Millisecond)
	if _, err := unix.Write(b, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case got := <-readDone:
		if string(got) != "hello" {
			t.Fatalf("read %q, want %q", got, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hook.Read never returned")
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	iom, err := ioruntime.NewIOManager(2, false, "test-hook-io-write")
	if err != nil {
		t.Fatalf("NewIOManager: %v", err)
	}
	defer iom.Close()
	iom.Start()
	defer iom.Stop()

	a, b := newRegisteredLoopbackPair(t)
	defer hook.Close(a)
	defer hook.Close(b)

	done := make(chan string, 1)
	iom.ScheduleFunc(func() {
		n, err := hook.Write(a, []byte("ping"))
		if err != nil || n != 4 {
			t.Errorf("hook.Write: n=%d err=%v", n, err)
			done <- ""
			return
		}
		buf := make([]byte, 32)
		n, err = hook.Read(b, buf)
		if err != nil {
			t.Errorf("hook.Read: %v", err)
			done <- ""
			return
		}
		done <- string(buf[:n])
	}, -1)

	select {
	case got := <-done:
		if got != "ping" {
			t.Fatalf("round trip got %q, want %q", got, "ping")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("round trip never completed")
	}
}
