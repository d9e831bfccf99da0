package fiber

import (
	"sync"

	"github.com/fiberkit/fiber/ferr"
)

// chanWaiter is one task parked on a Channel, either offering a value
// (Send) or awaiting one (Recv). Exactly one of value/slot is meaningful,
// depending on which queue the waiter sits in.
type chanWaiter[T any] struct {
	task   *Task
	value  T  // set by a send waiter: the value being offered
	slot   *T // set by a recv waiter: where the matched value is deposited
	closed bool
	done   bool
}

// Channel is spec §5's typed rendezvous/bounded MPMC channel. Capacity 0
// behaves as a pure rendezvous (a send only completes once a matching
// receive has claimed its value); capacity >= 1 allows that many values
// to be buffered before a sender must wait for a receiver.
//
// A Channel may be shared across tasks on different schedulers; its
// internal state is protected by a plain mutex rather than the
// single-owner cooperative discipline Scheduler's own queues rely on,
// since, unlike a Scheduler's ready/timer state, a Channel has no single
// owning thread.
type Channel[T any] struct {
	mu       sync.Mutex
	capacity int
	buf      []T
	closed   bool
	sendQ    []*chanWaiter[T]
	recvQ    []*chanWaiter[T]
}

// NewChannel constructs a Channel with the given buffer capacity (0 for a
// pure rendezvous channel).
func NewChannel[T any](capacity int) *Channel[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Channel[T]{capacity: capacity}
}

// Send blocks until v is accepted — by a waiting receiver directly, by
// the buffer (if capacity allows), or until the channel is closed or t is
// canceled/hits a deadline. Sending on a closed channel always fails with
// ferr.ErrChannelClosed, even if the buffer has room.
func (c *Channel[T]) Send(t *Task, v T) error {
	t.enterCancelPoint()
	defer t.leaveCancelPoint()
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ferr.ErrChannelClosed
		}
		if len(c.recvQ) > 0 {
			w := c.recvQ[0]
			c.recvQ = c.recvQ[1:]
			*w.slot = v
			w.done = true
			c.mu.Unlock()
			wakeTask(w.task)
			return nil
		}
		if len(c.buf) < c.capacity {
			c.buf = append(c.buf, v)
			c.mu.Unlock()
			return nil
		}

		w := &chanWaiter[T]{task: t, value: v}
		c.sendQ = append(c.sendQ, w)
		c.mu.Unlock()

		t.suspend(nil)
		// A match already committed to w wins over a racing Cancel/deadline:
		// the value has left this Send's hands, so there is nothing left to
		// interrupt.
		if w.done {
			t.checkCancellation() //nolint:errcheck // clears any pending sentinel so it isn't misattributed to a later cancellation point
			return nil
		}
		if w.closed {
			t.checkCancellation() //nolint:errcheck
			return ferr.ErrChannelClosed
		}
		if err := t.checkCancellation(); err != nil {
			c.removeSendWaiter(w)
			return err
		}
		// Spurious wake: withdraw the offer, then loop and retry. If it is
		// no longer queued, a receiver or Close took it in the meantime.
		if !c.removeSendWaiter(w) {
			if w.done {
				return nil
			}
			return ferr.ErrChannelClosed
		}
	}
}

// Recv blocks until a value is available — from a waiting sender
// directly, from the buffer, or until the channel is closed (returning
// any still-buffered values first) or t is canceled/hits a deadline.
func (c *Channel[T]) Recv(t *Task) (T, error) {
	t.enterCancelPoint()
	defer t.leaveCancelPoint()
	var zero T
	for {
		c.mu.Lock()
		if len(c.buf) > 0 {
			v := c.buf[0]
			c.buf = c.buf[1:]
			if len(c.sendQ) > 0 {
				sw := c.sendQ[0]
				c.sendQ = c.sendQ[1:]
				c.buf = append(c.buf, sw.value)
				sw.done = true
				c.mu.Unlock()
				wakeTask(sw.task)
				return v, nil
			}
			c.mu.Unlock()
			return v, nil
		}
		if len(c.sendQ) > 0 {
			sw := c.sendQ[0]
			c.sendQ = c.sendQ[1:]
			sw.done = true
			c.mu.Unlock()
			wakeTask(sw.task)
			return sw.value, nil
		}
		if c.closed {
			c.mu.Unlock()
			return zero, ferr.ErrChannelClosed
		}

		w := &chanWaiter[T]{task: t, slot: new(T)}
		c.recvQ = append(c.recvQ, w)
		c.mu.Unlock()

		t.suspend(nil)
		if w.done {
			t.checkCancellation() //nolint:errcheck // clears any pending sentinel so it isn't misattributed to a later cancellation point
			return *w.slot, nil
		}
		if w.closed {
			t.checkCancellation() //nolint:errcheck
			return zero, ferr.ErrChannelClosed
		}
		if err := t.checkCancellation(); err != nil {
			c.removeRecvWaiter(w)
			return zero, err
		}
	}
}

// TrySend attempts the non-blocking fast path: a waiting receiver or free
// buffer slot. Returns ferr.ErrWouldBlock if neither is available, and
// ferr.ErrChannelClosed if the channel is closed.
func (c *Channel[T]) TrySend(v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ferr.ErrChannelClosed
	}
	if len(c.recvQ) > 0 {
		w := c.recvQ[0]
		c.recvQ = c.recvQ[1:]
		*w.slot = v
		w.done = true
		wakeTask(w.task)
		return nil
	}
	if len(c.buf) < c.capacity {
		c.buf = append(c.buf, v)
		return nil
	}
	return ferr.ErrWouldBlock
}

// TryRecv attempts the non-blocking fast path. Returns ferr.ErrWouldBlock
// if no value or waiting sender is available.
func (c *Channel[T]) TryRecv() (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	if len(c.buf) > 0 {
		v := c.buf[0]
		c.buf = c.buf[1:]
		if len(c.sendQ) > 0 {
			sw := c.sendQ[0]
			c.sendQ = c.sendQ[1:]
			c.buf = append(c.buf, sw.value)
			sw.done = true
			wakeTask(sw.task)
		}
		return v, nil
	}
	if len(c.sendQ) > 0 {
		sw := c.sendQ[0]
		c.sendQ = c.sendQ[1:]
		sw.done = true
		wakeTask(sw.task)
		return sw.value, nil
	}
	if c.closed {
		return zero, ferr.ErrChannelClosed
	}
	return zero, ferr.ErrWouldBlock
}

// Close closes the channel: further Sends fail immediately, and every
// still-waiting sender/receiver is woken with ferr.ErrChannelClosed.
// Buffered values already in the channel remain available to Recv until
// drained. Closing an already-closed channel is a no-op.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sendWaiters := c.sendQ
	recvWaiters := c.recvQ
	c.sendQ, c.recvQ = nil, nil
	c.mu.Unlock()

	for _, w := range sendWaiters {
		w.closed = true
		wakeTask(w.task)
	}
	for _, w := range recvWaiters {
		w.closed = true
		wakeTask(w.task)
	}
}

// Len reports the number of buffered values currently queued.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// IsClosed reports whether Close has been called. A true result is
// permanent; a false result is only a snapshot, since another task may
// close the channel immediately afterward.
func (c *Channel[T]) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// RecvAll drains every value currently available without blocking: the
// whole buffer, followed by any values offered by waiting senders (each
// woken as its value is claimed, same as a sequence of TryRecv calls).
// It never waits for a sender to arrive — an empty (or nil) result just
// means nothing was immediately available, whether or not the channel is
// closed.
func (c *Channel[T]) RecvAll() []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]T, 0, len(c.buf)+len(c.sendQ))
	out = append(out, c.buf...)
	c.buf = c.buf[:0]

	senders := c.sendQ
	c.sendQ = nil
	for _, sw := range senders {
		out = append(out, sw.value)
		sw.done = true
		wakeTask(sw.task)
	}
	return out
}

// removeSendWaiter removes w from sendQ and reports whether it was still
// queued.
func (c *Channel[T]) removeSendWaiter(w *chanWaiter[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, x := range c.sendQ {
		if x == w {
			c.sendQ = append(c.sendQ[:i], c.sendQ[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Channel[T]) removeRecvWaiter(w *chanWaiter[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, x := range c.recvQ {
		if x == w {
			c.recvQ = append(c.recvQ[:i], c.recvQ[i+1:]...)
			return
		}
	}
}
