// Package kernel exposes the handful of process-wide boundary queries
// spec §6 groups under kernel::{now, shutdown, is_main_thread, cpu_count}.
// shutdown is per-Scheduler (fiber.Scheduler.Shutdown) rather than
// process-global, so it has no counterpart here; the other three are
// pure environment queries with no scheduler affiliation, which is why
// they live in their own small package instead of on fiber.Scheduler.
package kernel

import (
	"bytes"
	"runtime"
	"strconv"
	"time"
)

// mainGoroutineID is captured by a package-level initializer, which the
// Go spec guarantees runs on the program's original goroutine before any
// other goroutine is started. That goroutine is what IsMainThread treats
// as "the main thread" — the closest stand-in Go offers for the source
// design's OS-thread identity, since goroutines aren't pinned to OS
// threads by default and Go exposes no public OS-thread-id API.
var mainGoroutineID = currentGoroutineID()

// Now returns the current time. It exists as a named boundary call
// (rather than every caller reaching for time.Now directly) purely to
// mirror the source design's kernel::now; it is time.Now, unmodified.
func Now() time.Time {
	return time.Now()
}

// CPUCount reports the number of logical CPUs available to the process,
// per runtime.NumCPU.
func CPUCount() int {
	return runtime.NumCPU()
}

// IsMainThread reports whether the calling goroutine is the one that
// initialized this package — in practice, a program's original
// goroutine. A typical use is deciding whether it's safe to install
// process-wide signal handling or other once-per-process setup from the
// current call site.
func IsMainThread() bool {
	return currentGoroutineID() == mainGoroutineID
}

// currentGoroutineID parses the numeric id out of the calling
// goroutine's own stack trace header ("goroutine 1 [running]: ..."). Go
// has no supported API for goroutine identity; this is the same
// stack-trace-parsing technique used by the wider ecosystem (e.g.
// petermattis/goid) when one is needed, kept self-contained here since
// the only thing it backs is the single-bit "is this the original
// goroutine" comparison above.
func currentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}
