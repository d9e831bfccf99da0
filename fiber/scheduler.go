package fiber

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fiberkit/fiber/fiberctx"
	"github.com/fiberkit/fiber/fiberlog"
)

// maxBatchPerTurn bounds how many ready tasks one loop turn resumes before
// re-checking timers and the dirty queue, so a task that keeps re-yielding
// itself cannot starve timer expiry indefinitely. The reactor is polled
// only on turns that end with both the ready and dirty queues empty, so
// fd readiness is not observed while tasks keep re-yielding.
const maxBatchPerTurn = 4096

// Scheduler is spec §3/§4.5's per-thread scheduling context: one ready
// queue, one dirty (cross-thread inbound) queue, one timer set and one
// reactor, driven by a single loop goroutine that is the sole mutator of
// everything except the handful of fields explicitly documented as
// cross-thread-safe (dirty queue, ready flags, cancellation flag,
// tasks map).
//
// A Scheduler is meant to be driven by exactly one goroutine calling Run
// or RunUntilIdle; grounded on the teacher's Loop (loop.go), generalized
// from a JS-event-loop's job/microtask split to spec's ready-queue +
// timer-set + reactor model.
type Scheduler struct {
	id   SchedulerID
	opts schedulerOptions

	ready        readyQueue
	dirty        dirtyQueue
	dirtyScratch []*Task
	timers       *timerSet
	rx           reactor
	wake         wakeSource
	state        *fastSchedState

	tasksMu sync.Mutex
	tasks   map[TaskID]*Task

	metrics       *schedulerMetrics
	spawnedCount  atomic.Uint64
	finishedCount atomic.Uint64
	turnCount     atomic.Uint64
}

// NewScheduler constructs a Scheduler and initializes its reactor and
// wake source. The returned Scheduler has no tasks and is not yet
// running; call Spawn/SpawnOn to seed work and Run or RunUntilIdle to
// drive it.
func NewScheduler(opts ...SchedulerOption) (*Scheduler, error) {
	o := resolveSchedulerOptions(opts)
	s := &Scheduler{
		id:     newSchedulerID(),
		opts:   o,
		timers: newTimerSet(),
		tasks:  make(map[TaskID]*Task),
		state:  newFastSchedState(),
		rx:     newReactor(),
	}
	s.ready.buf = make([]*Task, 0, o.readyQueueHint)
	if o.metrics {
		s.metrics = newSchedulerMetrics()
	}

	if err := s.rx.init(); err != nil {
		return nil, err
	}
	wk, err := newWakeSource()
	if err != nil {
		_ = s.rx.close()
		return nil, err
	}
	s.wake = wk

	if fd := wk.fd(); fd >= 0 {
		var onWake IOCallback
		onWake = func(IOEvent) {
			s.wake.drain()
			_ = s.rx.wait(fd, EventRead, onWake)
		}
		if err := s.rx.wait(fd, EventRead, onWake); err != nil {
			_ = s.wake.close()
			_ = s.rx.close()
			return nil, err
		}
	}
	return s, nil
}

// ID returns this scheduler's process-wide unique id.
func (s *Scheduler) ID() SchedulerID { return s.id }

func (s *Scheduler) logger() fiberlog.Logger { return s.opts.logger }

// TaskCount returns the number of tasks currently tracked (spawned but
// not yet finished).
func (s *Scheduler) TaskCount() int {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	return len(s.tasks)
}

// Metrics returns the scheduler's accumulated metrics and true, or a zero
// value and false if the scheduler was constructed without WithMetrics.
func (s *Scheduler) Metrics() (MetricsSnapshot, bool) {
	if s.metrics == nil {
		return MetricsSnapshot{}, false
	}
	return s.metrics.snapshot(s.spawnedCount.Load(), s.finishedCount.Load(), s.turnCount.Load()), true
}

// Spawn creates a new task on this scheduler using the scheduler's
// default stack configuration. Must be called from this scheduler's own
// loop goroutine (i.e., from within a task it is running, or before Run
// is first called) — spawning a task on another scheduler from a foreign
// thread is SpawnOn.
func (s *Scheduler) Spawn(fn Func) *Task {
	return s.SpawnWithStack(fn, s.opts.defaultStack)
}

// SpawnWithStack is Spawn with an explicit StackConfig.
func (s *Scheduler) SpawnWithStack(fn Func, stack StackConfig) *Task {
	t := s.admit(fn, stack)
	t.ready.tryMarkReady()
	s.ready.pushBack(t)
	return t
}

// SpawnOn creates a new task that will run on target, safe to call from
// any goroutine/thread (spec §4.5/§6's cross-thread task hand-off). The
// new task is delivered via target's dirty queue and observed on
// target's next loop turn.
func SpawnOn(target *Scheduler, fn Func) *Task {
	return SpawnOnWithStack(target, fn, target.opts.defaultStack)
}

// SpawnOnWithStack is SpawnOn with an explicit StackConfig.
func SpawnOnWithStack(target *Scheduler, fn Func, stack StackConfig) *Task {
	t := target.admit(fn, stack)
	t.ready.tryMarkReady()
	target.dirty.push(t)
	target.signalWake()
	return t
}

func (s *Scheduler) admit(fn Func, stack StackConfig) *Task {
	t := newTask(s, fn, stack)
	s.tasksMu.Lock()
	s.tasks[t.id] = t
	s.tasksMu.Unlock()
	if s.metrics != nil {
		s.spawnedCount.Add(1)
	}
	return t
}

func (s *Scheduler) retireTask(t *Task) {
	s.tasksMu.Lock()
	delete(s.tasks, t.id)
	s.tasksMu.Unlock()
	if s.metrics != nil {
		s.finishedCount.Add(1)
	}
}

// wakeLocal marks t ready and enqueues it directly onto this scheduler's
// ready queue. Safe only when called from code logically running as part
// of this scheduler's own execution — its loop goroutine, or a task
// currently swapped into by it (the loop goroutine is synchronously
// parked for the duration, so there is no concurrent access to guard
// against).
func (s *Scheduler) wakeLocal(t *Task) {
	if !t.ready.tryMarkReady() {
		return
	}
	s.ready.pushBack(t)
}

// wakeCrossThread marks t ready and delivers it via the dirty queue,
// waking the scheduler's reactor poll if it is currently sleeping. Safe
// to call from any goroutine/thread.
func (s *Scheduler) wakeCrossThread(t *Task) {
	if !t.ready.tryMarkReady() {
		return
	}
	s.dirty.push(t)
	s.signalWake()
}

// wakeTask wakes t via its own scheduler's cross-thread-safe path. Shared
// sync primitives (Channel, Qutex, Rendez) use this uniformly to wake a
// matched waiter, since the waking side cannot in general assume it is
// "logically running as" the waiter's own scheduler — the two can belong
// to different schedulers on different OS threads.
func wakeTask(t *Task) {
	t.scheduler.wakeCrossThread(t)
}

// wakeForCancel is Task.Cancel's entry point into the scheduler. It always
// takes the cross-thread-safe path since Cancel is part of the public API
// and may legitimately be called from any goroutine.
func (s *Scheduler) wakeForCancel(t *Task) {
	s.wakeCrossThread(t)
}

// signalWake writes to the wake source only if the scheduler is currently
// parked in reactor.poll, via the sleeping->running CAS: a scheduler that
// is already schedRunning will see the dirty queue on its very next turn
// without needing a syscall.
func (s *Scheduler) signalWake() {
	if s.state.compareAndSwap(schedSleeping, schedRunning) {
		_ = s.wake.signal()
	}
}

// resumeTask clears t's ready flag, swaps control into it, and — once it
// either finishes or suspends again — runs whatever registration action
// (t.post) it asked to have performed on the scheduler's own stack before
// being considered fully parked (spec §4.4's atomic "park, then register"
// sequencing).
func (s *Scheduler) resumeTask(t *Task) {
	t.ready.clearReady()
	t.state.Store(uint32(TaskRunning))
	fiberctx.Swap(t.ctx, swapProceed)
	if t.State() == TaskFinished {
		return
	}
	if post := t.post; post != nil {
		t.post = nil
		post()
	}
}

func (s *Scheduler) drainDirty() {
	if s.dirty.size() == 0 {
		return
	}
	s.dirtyScratch = s.dirty.drainInto(s.dirtyScratch[:0])
	for _, t := range s.dirtyScratch {
		s.ready.pushBack(t)
	}
}

func (s *Scheduler) runReadyBatch() {
	n := s.ready.len()
	if n > maxBatchPerTurn {
		n = maxBatchPerTurn
	}
	for i := 0; i < n; i++ {
		t, ok := s.ready.popFront()
		if !ok {
			return
		}
		s.resumeTask(t)
		if s.metrics != nil {
			s.turnCount.Add(1)
		}
	}
}

func (s *Scheduler) expireTimers(now time.Time) {
	// Ties (including nested deadlines armed for the same instant) are
	// visited in ascending insertion order; the earliest-inserted
	// deadline's sentinel must be the one the task observes, so a later
	// visit for the same task this pass must not clobber it — even when
	// the earliest visit's own exception is nil (a plain sleep timeout
	// racing a deadline armed for the same instant).
	visited := make(map[*Task]bool)
	s.timers.expire(now, func(r *timeoutRecord) {
		if !visited[r.task] {
			visited[r.task] = true
			r.task.pendingFireException = r.exception
		}
		s.wakeLocal(r.task)
	})
}

func (s *Scheduler) computeTimeout(now time.Time, terminating bool) time.Duration {
	if when, ok := s.timers.earliest(); ok {
		d := when.Sub(now)
		if d < 0 {
			d = 0
		}
		return d
	}
	if terminating {
		// No armed timer to wait on. While terminating the state is never
		// schedSleeping, so signalWake does not write the wake fd; poll in
		// short intervals so the dirty queue and taskCount are re-checked
		// rather than block forever.
		return 100 * time.Millisecond
	}
	return -1
}

// Shutdown requests the scheduler terminate once all currently tracked
// tasks finish, and cancels every one of them so that well-behaved tasks
// (ones that pass through cancellation points) unwind promptly rather
// than waiting for Run to time out against them. Shutdown does not block;
// call it and then let Run return on its own.
func (s *Scheduler) Shutdown() {
	s.state.store(schedTerminating)
	s.tasksMu.Lock()
	pending := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		pending = append(pending, t)
	}
	s.tasksMu.Unlock()
	for _, t := range pending {
		t.Cancel()
	}
	_ = s.wake.signal()
}

// Run drives the scheduler until Shutdown has been called and every
// tracked task has finished. It is meant for long-lived schedulers (e.g.
// an io-proc-adjacent worker that receives work via SpawnOn for its
// entire lifetime) where there may be periods with zero tasks that are
// not meant to end the run.
func (s *Scheduler) Run() {
	for {
		s.drainDirty()
		s.runReadyBatch()
		now := time.Now()
		s.expireTimers(now)

		if s.ready.len() > 0 || s.dirty.size() > 0 {
			continue
		}

		terminating := s.state.load() == schedTerminating
		if terminating && s.TaskCount() == 0 {
			s.state.store(schedTerminated)
			_ = s.rx.close()
			_ = s.wake.close()
			return
		}

		timeout := s.computeTimeout(now, terminating)
		if terminating {
			s.pollReactor(timeout)
			continue
		}

		s.state.store(schedSleeping)
		if s.dirty.size() > 0 {
			s.state.store(schedRunning)
			continue
		}
		s.pollReactor(timeout)
		s.state.store(schedRunning)
	}
}

// RunUntilIdle drives the scheduler until there is no tracked task left
// and nothing pending in the ready/dirty queues or timer set — spec
// §4.5's "run to completion" bootstrap, suited to batch-style programs
// (see Main).
func (s *Scheduler) RunUntilIdle() {
	for {
		s.drainDirty()
		s.runReadyBatch()
		now := time.Now()
		s.expireTimers(now)

		if s.ready.len() > 0 || s.dirty.size() > 0 {
			continue
		}
		if s.TaskCount() == 0 && s.timers.len() == 0 {
			s.state.store(schedTerminated)
			_ = s.rx.close()
			_ = s.wake.close()
			return
		}

		timeout := s.computeTimeout(now, false)
		s.state.store(schedSleeping)
		if s.dirty.size() > 0 {
			s.state.store(schedRunning)
			continue
		}
		s.pollReactor(timeout)
		s.state.store(schedRunning)
	}
}

// pollReactor polls the reactor, logging (rate-limited, by the logger
// itself if configured via fiberlog.NewRateLimited) anything other than a
// plain timeout. A poll error never stops the loop: the reactor is
// expected to keep serving whatever registrations survived it.
func (s *Scheduler) pollReactor(timeout time.Duration) {
	if err := s.rx.poll(timeout); err != nil {
		s.logger().Warn("fiber: reactor poll error", fiberlog.F("error", err))
	}
}

// Main is the typical program entry point: construct a Scheduler, spawn
// fn as its root task, and run until every task it transitively spawns
// has finished.
func Main(fn Func, opts ...SchedulerOption) (*Scheduler, error) {
	s, err := NewScheduler(opts...)
	if err != nil {
		return nil, err
	}
	s.Spawn(fn)
	s.RunUntilIdle()
	return s, nil
}
