package fiber

import (
	"sync/atomic"
)

// TaskState is the advisory lifecycle state of a Task, exposed for
// debugging via Task.State.
//
// State machine:
//
//	fresh (0)     -> running (2)    [Scheduler resumes it the first time]
//	running (2)   -> suspended (3)  [any suspension point, Yield included]
//	suspended (3) -> running (2)    [Scheduler resumes it after a wake]
//	running (2)   -> finished (4)   [fn returns or trampoline unwinds]
//
// TaskReady (1) is defined but never stored: a task sitting in a ready
// queue keeps reporting the state it had before it was woken (fresh or
// suspended).
type TaskState uint32

const (
	TaskFresh TaskState = iota
	TaskReady
	TaskRunning
	TaskSuspended
	TaskFinished
)

func (s TaskState) String() string {
	switch s {
	case TaskFresh:
		return "fresh"
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskSuspended:
		return "suspended"
	case TaskFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// readyFlag implements the CAS-guarded ready/not-ready transition required
// by spec invariant P1: ready flips false->true only via compare-exchange,
// and the CAS winner is obligated to enqueue the task exactly once.
//
// Grounded on the teacher's FastState: a single cache-line-padded atomic
// word used for lock-free state transitions instead of a mutex.
type readyFlag struct { //nolint:govet
	_ [64]byte
	v atomic.Bool
	_ [63]byte
}

// tryMarkReady attempts the false->true transition. Returns true iff this
// call won the race and is therefore responsible for enqueuing the task.
func (f *readyFlag) tryMarkReady() bool {
	return f.v.CompareAndSwap(false, true)
}

// clearReady marks the task not-ready; called only by the scheduler just
// before resuming it, on its own stack.
func (f *readyFlag) clearReady() {
	f.v.Store(false)
}

func (f *readyFlag) isReady() bool {
	return f.v.Load()
}

// schedulerState is the lock-free run/sleep/terminate state machine for one
// Scheduler's loop, used to decide whether a cross-thread wake needs to
// write to the wake fd (no-op if the scheduler is already schedRunning and
// will see the dirty queue on its next turn).
type schedulerState uint32

const (
	schedRunning schedulerState = iota
	schedSleeping
	schedTerminating
	schedTerminated
)

type fastSchedState struct { //nolint:govet
	_ [64]byte
	v atomic.Uint32
	_ [60]byte
}

func newFastSchedState() *fastSchedState {
	s := &fastSchedState{}
	s.v.Store(uint32(schedRunning))
	return s
}

func (s *fastSchedState) load() schedulerState { return schedulerState(s.v.Load()) }
func (s *fastSchedState) store(v schedulerState) { s.v.Store(uint32(v)) }
func (s *fastSchedState) compareAndSwap(from, to schedulerState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
