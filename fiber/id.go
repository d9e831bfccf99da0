package fiber

import "sync/atomic"

// TaskID uniquely identifies a Task, process-wide, monotonically
// increasing. It keys the Scheduler's tasks map and appears in diagnostics;
// ready queues, timer records, waiter lists and fd-wait callbacks hold
// *Task pointers, not TaskIDs.
type TaskID uint64

var nextTaskID atomic.Uint64

func newTaskID() TaskID {
	return TaskID(nextTaskID.Add(1))
}

// SchedulerID uniquely identifies a Scheduler (one per participating OS
// thread), as returned by Scheduler.ID. There is no registry that looks a
// Scheduler up by id: SpawnOn takes the target *Scheduler directly.
type SchedulerID uint64

var nextSchedulerID atomic.Uint64

func newSchedulerID() SchedulerID {
	return SchedulerID(nextSchedulerID.Add(1))
}

// DeadlineHandle identifies a timeout record inserted into a timerSet,
// returned by timerSet.insert and consumed by timerSet.cancel.
type DeadlineHandle uint64

var nextDeadlineHandle atomic.Uint64

func newDeadlineHandle() DeadlineHandle {
	return DeadlineHandle(nextDeadlineHandle.Add(1))
}
