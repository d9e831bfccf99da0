package fiber

import "sync"

type rendezWaiter struct {
	task  *Task
	woken bool
}

// Rendez is spec §5's condition variable, always used bound to a specific
// Qutex: Wait atomically releases that qutex and suspends, waking with
// the qutex re-acquired — mirroring the classic
// lock/wait/(unlock,suspend,relock) condition-variable contract.
type Rendez struct {
	q *Qutex

	mu    sync.Mutex
	waitQ []*rendezWaiter
}

// NewRendez constructs a Rendez bound to q. The caller must hold q when
// calling Wait.
func NewRendez(q *Qutex) *Rendez { return &Rendez{q: q} }

// Wait releases the bound qutex and blocks until Signal or Broadcast
// wakes this task, or until it is canceled or hits a deadline, then
// re-acquires the qutex before returning — even on error, so the caller's
// critical section is always re-entered consistently (spec §5's
// "wait never returns without the lock held again").
func (r *Rendez) Wait(t *Task) error {
	t.enterCancelPoint()
	defer t.leaveCancelPoint()

	w := &rendezWaiter{task: t}
	r.mu.Lock()
	r.waitQ = append(r.waitQ, w)
	r.mu.Unlock()

	r.q.Unlock(t)

	t.suspend(nil)

	var waitErr error
	if w.woken {
		t.checkCancellation() //nolint:errcheck // condition already signaled; don't misreport as canceled
	} else if err := t.checkCancellation(); err != nil {
		r.removeWaiter(w)
		waitErr = err
	}

	// Lock can itself be interrupted (e.g. a deadline firing while the
	// qutex is contended); keep trying so Wait never returns without it.
	for {
		lockErr := r.q.Lock(t)
		if lockErr == nil {
			break
		}
		if waitErr == nil {
			waitErr = lockErr
		}
	}
	return waitErr
}

// Signal wakes at most one waiting task, in FIFO order.
func (r *Rendez) Signal() {
	r.mu.Lock()
	if len(r.waitQ) == 0 {
		r.mu.Unlock()
		return
	}
	w := r.waitQ[0]
	r.waitQ = r.waitQ[1:]
	r.mu.Unlock()
	w.woken = true
	wakeTask(w.task)
}

// Broadcast wakes every currently waiting task.
func (r *Rendez) Broadcast() {
	r.mu.Lock()
	waiters := r.waitQ
	r.waitQ = nil
	r.mu.Unlock()
	for _, w := range waiters {
		w.woken = true
		wakeTask(w.task)
	}
}

func (r *Rendez) removeWaiter(w *rendezWaiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, x := range r.waitQ {
		if x == w {
			r.waitQ = append(r.waitQ[:i], r.waitQ[i+1:]...)
			return
		}
	}
}
