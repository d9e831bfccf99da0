package fiber

import (
	"sync/atomic"
	"time"

	"github.com/fiberkit/fiber/ferr"
	"github.com/fiberkit/fiber/fiberctx"
	"github.com/fiberkit/fiber/fiberlog"
)

// Func is the body of a spawned Task. It is handed the Task's own handle
// explicitly rather than recovering it from ambient/goroutine-local state —
// this is the idiomatic-Go rendering of spec's `this_task::*` surface
// (compare context.Context, which Go also threads explicitly rather than
// stashing per-goroutine).
type Func func(t *Task)

// swap argument/return encoding used between Task and Scheduler over the
// fiberctx channel pair. 0 is the normal "proceed" signal; other values are
// reserved for future use (none currently defined) so both sides agree on
// a single integer vocabulary.
const (
	swapProceed = 0
)

// Task is spec §3's task object: a cooperatively-scheduled unit of
// execution with its own goroutine-backed "stack" (see fiberctx), a
// cancellation flag, a ready flag, and the timeouts currently armed
// against it.
type Task struct {
	id   TaskID
	name atomic.Pointer[string]

	state    atomic.Uint32 // TaskState
	ready    readyFlag
	canceled atomic.Bool

	cancelDepth int // mutated only by this task's own goroutine

	timeouts []*timeoutRecord // owned by this task; mutated only while the
	// owning scheduler or this task's own goroutine is the logically
	// running party.

	stack     StackConfig
	scheduler *Scheduler
	ctx       *fiberctx.Context

	// post is an action the scheduler runs on its own stack, exactly once,
	// immediately after swapping away from this task — spec §4.4's
	// mechanism for registering fd interest atomically w.r.t. the
	// scheduler, closing the lost-wakeup race between "park" and
	// "register".
	post func()

	// joinWaiters are tasks blocked in Join, woken when this task reaches
	// TaskFinished.
	joinWaiters []*Task

	// pendingFireException is set by the scheduler just before resuming a
	// task whose armed timeout fired, so checkCancellation can distinguish
	// a timer-driven wake from an fd- or dirty-queue-driven one and raise
	// the right sentinel (P5: deadline wins over cancel).
	pendingFireException error

	fn Func
}

func newTask(sched *Scheduler, fn Func, stack StackConfig) *Task {
	t := &Task{
		id:        newTaskID(),
		stack:     stack.resolve(),
		scheduler: sched,
		fn:        fn,
	}
	t.state.Store(uint32(TaskFresh))
	t.ctx = fiberctx.New(func(int) int {
		t.trampoline()
		return swapProceed
	})
	return t
}

// trampoline is the task's entry thunk. Its only exit is back to the
// scheduler (via the final fiberctx handoff after this function returns);
// it never returns into any caller's context per spec §4.2.
func (t *Task) trampoline() {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); !ok || !ferr.IsCancellation(err) {
				t.scheduler.logger().Error("fiber: task panicked, terminating process",
					fiberlog.F("task_id", t.id), fiberlog.F("recovered", r))
				panic(r) // not a cancellation sentinel: terminate the process.
			}
			// Cancellation/deadline sentinels unwind the task silently.
		}
		t.finish()
	}()
	t.fn(t)
}

func (t *Task) finish() {
	t.state.Store(uint32(TaskFinished))
	for _, w := range t.joinWaiters {
		// A waiter spawned on a different scheduler is a genuinely
		// concurrent goroutine from here; only waiters on this very
		// scheduler are safe to enqueue directly (this scheduler's loop
		// goroutine is synchronously parked in Swap for the duration of
		// finish, so touching its ready queue here is race-free).
		if w.scheduler == t.scheduler {
			t.scheduler.wakeLocal(w)
		} else {
			w.scheduler.wakeCrossThread(w)
		}
	}
	t.joinWaiters = nil
	t.scheduler.retireTask(t)
}

// ID returns the task's process-wide unique id.
func (t *Task) ID() TaskID { return t.id }

// Name returns the advisory debug name, or "" if unset.
func (t *Task) Name() string {
	if p := t.name.Load(); p != nil {
		return *p
	}
	return ""
}

// SetName sets the advisory debug name.
func (t *Task) SetName(name string) { t.name.Store(&name) }

// State returns the task's advisory lifecycle state.
func (t *Task) State() TaskState { return TaskState(t.state.Load()) }

// Scheduler returns the scheduler this task is bound to.
func (t *Task) Scheduler() *Scheduler { return t.scheduler }

// StackSize returns the resolved stack size hint this task was created
// with (see StackConfig).
func (t *Task) StackSize() int { return t.stack.Size }

// CancelRequested reports whether Cancel has been called on this task. It
// does not itself raise anything; it is the non-suspending observation
// used by long-running computation that wants to check in periodically
// without passing through a full cancellation point.
func (t *Task) CancelRequested() bool { return t.canceled.Load() }

// Cancel requests cancellation of t. It is idempotent and monotone (spec
// §8): once set, it stays set. If t is currently suspended on a
// suspension point, that point is woken so the cancellation is observed
// promptly; per spec, a task with no cancellation point will simply never
// be interrupted, by design.
func (t *Task) Cancel() {
	if !t.canceled.CompareAndSwap(false, true) {
		return // already canceled
	}
	t.scheduler.wakeForCancel(t)
}

// addTimeout/removeTimeout maintain the task-owned list of still-armed
// timeouts, kept in step with the scheduler's timerSet. checkCancellation
// does not read this list; "deadline wins over cancel" (P5) is decided
// from pendingFireException instead.
func (t *Task) addTimeout(r *timeoutRecord) {
	t.timeouts = append(t.timeouts, r)
}

func (t *Task) removeTimeout(r *timeoutRecord) {
	for i, x := range t.timeouts {
		if x == r {
			t.timeouts = append(t.timeouts[:i], t.timeouts[i+1:]...)
			return
		}
	}
}

// takeFiredException returns and clears pendingFireException, which
// Scheduler.expireTimers sets when one of the task's timeouts fires, so
// checkCancellation can tell a timer-driven wake from an fd-driven or
// dirty-queue-driven one and raise the matching sentinel.
func (t *Task) takeFiredException() error {
	err := t.pendingFireException
	t.pendingFireException = nil
	return err
}

// enterCancelPoint/leaveCancelPoint are the RAII-guard analog described in
// spec §4.2 and §9: every suspension primitive brackets its suspend with
// these, and checkCancellation refuses to synthesize a cancellation error
// outside of one (cancelDepth == 0 means "plain computation", which must
// never be interrupted).
func (t *Task) enterCancelPoint() { t.cancelDepth++ }
func (t *Task) leaveCancelPoint() { t.cancelDepth-- }

// checkCancellation is called by every suspension point immediately after
// resuming, while still inside a cancellation-point guard. It implements
// P5 (deadline wins over cancel): a due timeout with a sentinel takes
// priority over a plain Cancel().
func (t *Task) checkCancellation() error {
	if t.cancelDepth <= 0 {
		return nil
	}
	if err := t.takeFiredException(); err != nil {
		return err
	}
	if t.canceled.Load() {
		return ferr.TaskInterrupted
	}
	return nil
}

// suspend parks the task: it stores park as t.post, swaps back to the
// scheduler, and blocks until resumed. The scheduler runs park on its own
// stack right after the swap (see resumeTask); park, if non-nil, must
// arrange for some future tryMarkReady+enqueue of t — e.g. pushing to a
// waiter list, arming a timer, or registering an fd interest. The ready
// flag is not touched here: the scheduler clears it right before the
// resuming swap.
func (t *Task) suspend(park func()) {
	t.post = park
	t.state.Store(uint32(TaskSuspended))
	fiberctx.SwapBack(t.ctx, swapProceed)
	t.state.Store(uint32(TaskRunning))
}

// Yield implements spec §4.2 yield(): push self onto own scheduler's ready
// queue and swap to scheduler. sleep_for(0) is defined to be equivalent to
// this (spec §8).
func (t *Task) Yield() error {
	t.enterCancelPoint()
	defer t.leaveCancelPoint()
	t.suspend(func() {
		t.scheduler.wakeLocal(t)
	})
	return t.checkCancellation()
}

// SleepFor suspends the task for at least d, or until canceled/a deadline
// fires. sleep_for(0) is equivalent to Yield.
func (t *Task) SleepFor(d time.Duration) error {
	if d <= 0 {
		return t.Yield()
	}
	return t.SleepUntil(time.Now().Add(d))
}

// SleepUntil suspends the task until the monotonic clock reaches tp, or
// until canceled/a deadline fires.
func (t *Task) SleepUntil(tp time.Time) error {
	t.enterCancelPoint()
	defer t.leaveCancelPoint()
	var handle DeadlineHandle
	t.suspend(func() {
		handle = t.scheduler.timers.insert(t, tp, nil)
	})
	t.scheduler.timers.cancel(handle) // no-op if it already fired
	return t.checkCancellation()
}

// Join blocks the calling task until target finishes. It is a
// suspension/cancellation point. Joining a task that was never spawned by
// this runtime (a nil or foreign Task) is a programming error.
func (t *Task) Join(target *Task) error {
	if target == nil {
		ferr.Panicf("join on nil task")
	}
	if target.scheduler == nil {
		ferr.Panicf("join on task %d that was not spawned by a scheduler", target.id)
	}
	if target.State() == TaskFinished {
		return nil
	}
	t.enterCancelPoint()
	defer t.leaveCancelPoint()
	t.suspend(func() {
		target.joinWaiters = append(target.joinWaiters, t)
	})
	return t.checkCancellation()
}

