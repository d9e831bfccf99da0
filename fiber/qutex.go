package fiber

import (
	"sync"

	"github.com/fiberkit/fiber/ferr"
)

type qutexWaiter struct {
	task    *Task
	granted bool
}

// Qutex is spec §5's fair, FIFO task mutex: waiters are granted ownership
// strictly in arrival order, with no barging — a task that calls Lock
// while others are already waiting joins the back of the queue even if
// the qutex happens to be free the instant it checks (it never is, in
// that case: ownership is handed directly from Unlock to the head
// waiter, with no unlocked window in between).
type Qutex struct {
	mu     sync.Mutex
	locked bool
	owner  *Task
	waitQ  []*qutexWaiter
}

// NewQutex constructs an unlocked Qutex.
func NewQutex() *Qutex { return &Qutex{} }

// Lock blocks until t holds the qutex, or until t is canceled or hits a
// deadline.
func (q *Qutex) Lock(t *Task) error {
	t.enterCancelPoint()
	defer t.leaveCancelPoint()
	for {
		q.mu.Lock()
		if !q.locked && len(q.waitQ) == 0 {
			q.locked = true
			q.owner = t
			q.mu.Unlock()
			return nil
		}
		w := &qutexWaiter{task: t}
		q.waitQ = append(q.waitQ, w)
		q.mu.Unlock()

		t.suspend(nil)
		if w.granted {
			// Ownership already transferred; a racing Cancel cannot undo
			// that without leaking the qutex forever, so it is swallowed.
			t.checkCancellation() //nolint:errcheck
			return nil
		}
		if err := t.checkCancellation(); err != nil {
			q.removeWaiter(w)
			return err
		}
	}
}

// TryLock attempts the non-blocking fast path: succeeds only if the
// qutex is free and no task is already queued ahead (preserving FIFO
// fairness — TryLock never jumps the queue). Returns ferr.ErrWouldBlock
// otherwise.
func (q *Qutex) TryLock(t *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.locked || len(q.waitQ) > 0 {
		return ferr.ErrWouldBlock
	}
	q.locked = true
	q.owner = t
	return nil
}

// Unlock releases the qutex, held by t. Unlocking a qutex not held by t
// is a programming error. If another task is waiting, ownership transfers
// to it directly (the qutex never observably becomes free in between).
func (q *Qutex) Unlock(t *Task) {
	q.mu.Lock()
	if q.owner != t {
		q.mu.Unlock()
		ferr.Panicf("fiber: qutex unlocked by non-owner")
	}
	if len(q.waitQ) > 0 {
		w := q.waitQ[0]
		q.waitQ = q.waitQ[1:]
		w.granted = true
		q.owner = w.task
		q.mu.Unlock()
		wakeTask(w.task)
		return
	}
	q.locked = false
	q.owner = nil
	q.mu.Unlock()
}

func (q *Qutex) removeWaiter(w *qutexWaiter) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, x := range q.waitQ {
		if x == w {
			q.waitQ = append(q.waitQ[:i], q.waitQ[i+1:]...)
			return
		}
	}
}
