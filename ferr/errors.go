// Package ferr defines the error taxonomy raised at the boundary of the
// fiber runtime: cancellation sentinels, operational failures, and the
// programming-error panics that abort the process rather than return.
package ferr

import (
	"errors"
	"fmt"
)

// Sentinel errors, safe to catch with errors.Is. TaskInterrupted is raised
// only at cancellation points (see the fiber package's cancel-point
// guards); the others report channel and fast-path outcomes.
var (
	// TaskInterrupted is raised at the next cancellation point observed by a
	// task after Cancel() has been called on it.
	TaskInterrupted = errors.New("fiber: task interrupted")

	// ErrChannelClosed is returned by send/recv operations on a closed
	// channel, once any buffered values have been drained.
	ErrChannelClosed = errors.New("fiber: channel closed")

	// ErrSchedulerShutdown names a scheduler that has begun or completed its
	// shutdown sequence. No function in this module returns it: Spawn and
	// SpawnOn on such a scheduler do not fail.
	ErrSchedulerShutdown = errors.New("fiber: scheduler shutdown")

	// ErrWouldBlock is returned by TrySend/TryRecv/TryLock when the
	// non-suspending fast path cannot complete immediately.
	ErrWouldBlock = errors.New("fiber: operation would block")
)

// DeadlineReached is raised when a Deadline fires. Each instance carries the
// id of the Deadline that fired, so nested deadlines can be told apart; all
// instances compare equal under errors.Is via Is below.
type DeadlineReached struct {
	// DeadlineID identifies which Deadline fired (see fiber.Deadline.id).
	DeadlineID uint64
}

func (e *DeadlineReached) Error() string {
	return fmt.Sprintf("fiber: deadline %d reached", e.DeadlineID)
}

// Is reports true for any *DeadlineReached, regardless of DeadlineID, so
// callers can write errors.Is(err, &ferr.DeadlineReached{}) without knowing
// which deadline fired.
func (e *DeadlineReached) Is(target error) bool {
	_, ok := target.(*DeadlineReached)
	return ok
}

// IOError wraps a syscall-level failure observed by the reactor or by an
// io-proc callback, e.g. a failed epoll_ctl or a read() returning an errno.
type IOError struct {
	Op  string // syscall or operation name, e.g. "epoll_ctl", "read"
	FD  int    // file descriptor involved, or -1 if not fd-scoped
	Err error  // underlying errno/error
}

func (e *IOError) Error() string {
	if e.FD >= 0 {
		return fmt.Sprintf("fiber: %s(fd=%d): %v", e.Op, e.FD, e.Err)
	}
	return fmt.Sprintf("fiber: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ProgrammingError represents an invariant violation that the runtime
// cannot safely recover from: a second waiter registered on an fd+direction
// already claimed, a send on a destroyed channel, a join on a task that was
// never spawned. Per spec, these panic rather than return an error.
type ProgrammingError struct {
	Msg string
}

func (e *ProgrammingError) Error() string {
	return "fiber: programming error: " + e.Msg
}

// Panicf panics with a *ProgrammingError built from the given format.
func Panicf(format string, args ...any) {
	panic(&ProgrammingError{Msg: fmt.Sprintf(format, args...)})
}

// IsCancellation reports whether err is a cancellation-class sentinel
// (TaskInterrupted or a *DeadlineReached), the two error kinds that the
// trampoline swallows silently instead of terminating the process.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, TaskInterrupted) {
		return true
	}
	var dr *DeadlineReached
	return errors.As(err, &dr)
}
