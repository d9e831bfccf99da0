package fiber

// WaitReadable suspends t until fd becomes readable, or until t is
// canceled or hits a deadline. On a normal return, fd's read waiter slot
// has already fired and been cleared — the reactor is edge-triggered and
// one-shot per spec §4.4, so a caller that did not fully drain fd should
// call WaitReadable again rather than assume it stays ready.
func (t *Task) WaitReadable(fd int) error { return t.waitFD(fd, EventRead) }

// WaitWritable suspends t until fd becomes writable, under the same
// one-shot, edge-triggered discipline as WaitReadable.
func (t *Task) WaitWritable(fd int) error { return t.waitFD(fd, EventWrite) }

// waitFD is spec §4.4's wait_fd(fd, direction): register interest via the
// suspend/post sequencing (so registration only happens once t has
// actually swapped away, closing the lost-wakeup race against readiness
// arriving first), then suspend until the reactor fires the callback, t is
// canceled, or a deadline fires.
func (t *Task) waitFD(fd int, dir IOEvent) error {
	t.enterCancelPoint()
	defer t.leaveCancelPoint()

	var regErr error
	t.suspend(func() {
		err := t.scheduler.rx.wait(fd, dir, func(IOEvent) {
			t.scheduler.wakeLocal(t)
		})
		if err != nil {
			// Registration itself failed: nothing will ever wake t via the
			// reactor, so wake it directly with the error to report.
			regErr = err
			t.scheduler.wakeLocal(t)
		}
	})

	if regErr != nil {
		return regErr
	}
	if err := t.checkCancellation(); err != nil {
		// The waiter may or may not have already fired; either way it must
		// not remain registered once this task has stopped waiting on it,
		// so a fresh waiter on the same fd+direction is accepted next.
		_ = t.scheduler.rx.cancelWait(fd, dir)
		return err
	}
	return nil
}
