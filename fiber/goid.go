// File: fiber/goid.go
// Author: momentics <momentics@gmail.com>
//
// Extracts the running goroutine's numeric id. This is the one bit of
// low-level trickery the fiber package needs: Go has no user-visible
// thread-local storage, but every fiber body (and every "main" fiber that
// wraps an ambient goroutine) lives on exactly one goroutine for its whole
// lifetime, so keying the thread-local-equivalent maps in tls.go by
// goroutine id gives the same guarantees the source gets from real
// thread-local storage. Isolated here per the "isolate all unsafe code in
// one module" design note; no cgo or unsafe is actually needed, just a
// parse of runtime.Stack's header line.

package fiber

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID returns the id of the calling goroutine.
func goroutineID() int64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	// Format: "goroutine 123 [running]:\n..."
	const prefix = "goroutine "
	buf = bytes.TrimPrefix(buf, []byte(prefix))
	i := bytes.IndexByte(buf, ' ')
	if i < 0 {
		return -1
	}
	id, err := strconv.ParseInt(string(buf[:i]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
