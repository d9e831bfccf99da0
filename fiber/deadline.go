package fiber

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/fiberkit/fiber/ferr"
)

var nextDeadlineObjID atomic.Uint64

// Deadline is spec §5's scoped deadline: while armed, any suspension
// point t passes through raises a *ferr.DeadlineReached carrying this
// Deadline's id once when is reached — taking priority over a plain
// Cancel() per P5. Deadlines nest freely: a task may have several armed
// at once (an outer request budget, an inner per-step timeout); whichever
// is due first fires first, and firing one never disarms another.
//
// Go has no destructor to run a scope guard automatically; the idiomatic
// rendering of the source's RAII deadline guard is defer: arm with Arm,
// defer the returned Deadline's Disarm.
type Deadline struct {
	id     uint64
	task   *Task
	handle DeadlineHandle
}

// Arm arms a deadline that fires d from now. Must be called from the task
// t's own running context (i.e. from inside t's Func), not from another
// goroutine.
func Arm(t *Task, d time.Duration) *Deadline {
	return ArmAt(t, time.Now().Add(d))
}

// ArmAt arms a deadline that fires at the given absolute time.
func ArmAt(t *Task, when time.Time) *Deadline {
	id := nextDeadlineObjID.Add(1)
	dl := &Deadline{id: id, task: t}
	dl.handle = t.scheduler.timers.insert(t, when, &ferr.DeadlineReached{DeadlineID: id})
	return dl
}

// Disarm cancels the deadline if it has not yet fired. Safe to call more
// than once, and safe to call after the deadline has already fired (a
// no-op in that case, since the timer record is removed on fire).
func (d *Deadline) Disarm() {
	if d == nil {
		return
	}
	d.task.scheduler.timers.cancel(d.handle)
}

// Fired reports whether err is exactly this Deadline firing, as opposed
// to some other deadline or a plain cancellation.
func (d *Deadline) Fired(err error) bool {
	var dr *ferr.DeadlineReached
	if errors.As(err, &dr) {
		return dr.DeadlineID == d.id
	}
	return false
}
