package fiber

import (
	"container/heap"
	"time"
)

// timeoutRecord is spec §3's "Timeout record": {when, exception}, plus a
// back-reference to its task. The same record pointer is listed both in
// the owning task's timeouts slice and in the scheduler's timerSet (heap
// and handle map); insert, cancel and expire keep the two in step.
type timeoutRecord struct {
	handle    DeadlineHandle
	when      time.Time
	task      *Task
	exception error // nil for a plain sleep_for/sleep_until
	index     int   // heap index, maintained by timerHeap's Swap
}

// timerHeap is a min-heap ordered by timeoutRecord.when, grounded directly
// on the teacher's loop.go timerHeap (container/heap over a slice of
// timers) generalized to carry a task back-reference, an optional sentinel
// exception, and a stable handle for O(log n) cancellation.
type timerHeap []*timeoutRecord

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	// Ties broken by insertion order (lower handle value inserted first),
	// per spec §4.3 ("tie-break arbitrary but stable within one insertion
	// order").
	if h[i].when.Equal(h[j].when) {
		return h[i].handle < h[j].handle
	}
	return h[i].when.Before(h[j].when)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	r := x.(*timeoutRecord)
	r.index = len(*h)
	*h = append(*h, r)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	r.index = -1
	*h = old[:n-1]
	return r
}

// timerSet is the per-scheduler ordered store of pending timeouts, spec
// §4.3. It is not safe for concurrent use; it is only ever touched by its
// owning Scheduler's own goroutine.
type timerSet struct {
	h      timerHeap
	byHand map[DeadlineHandle]*timeoutRecord
}

func newTimerSet() *timerSet {
	return &timerSet{
		byHand: make(map[DeadlineHandle]*timeoutRecord),
	}
}

// insert adds a new timeout record and returns a handle usable with cancel.
func (s *timerSet) insert(task *Task, when time.Time, exception error) DeadlineHandle {
	r := &timeoutRecord{
		handle:    newDeadlineHandle(),
		when:      when,
		task:      task,
		exception: exception,
	}
	heap.Push(&s.h, r)
	s.byHand[r.handle] = r
	task.addTimeout(r)
	return r.handle
}

// cancel removes a still-pending timeout record by handle. It is a no-op if
// the handle has already fired or was already canceled.
func (s *timerSet) cancel(handle DeadlineHandle) {
	r, ok := s.byHand[handle]
	if !ok {
		return
	}
	delete(s.byHand, handle)
	if r.index >= 0 && r.index < len(s.h) && s.h[r.index] == r {
		heap.Remove(&s.h, r.index)
	}
	r.task.removeTimeout(r)
}

// earliest returns the soonest pending deadline, if any.
func (s *timerSet) earliest() (time.Time, bool) {
	if len(s.h) == 0 {
		return time.Time{}, false
	}
	return s.h[0].when, true
}

// expire pops every record due at or before now, in ascending order of
// when, invoking visit for each after removing it from the set.
func (s *timerSet) expire(now time.Time, visit func(r *timeoutRecord)) {
	for len(s.h) > 0 && !s.h[0].when.After(now) {
		r := heap.Pop(&s.h).(*timeoutRecord)
		delete(s.byHand, r.handle)
		r.task.removeTimeout(r)
		visit(r)
	}
}

func (s *timerSet) len() int { return len(s.h) }
