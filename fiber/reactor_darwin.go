//go:build darwin

package fiber

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/fiberkit/fiber/ferr"
)

// kqueueReactor implements reactor via kqueue, edge-triggered
// (unix.EV_CLEAR), grounded on the teacher's FastPoller (poller_darwin.go)
// generalized from a fixed callback-per-fd slice to independent read/write
// waiter maps.
type kqueueReactor struct {
	kq       int
	eventBuf [256]unix.Kevent_t
	read     map[int]IOCallback
	write    map[int]IOCallback
}

func newReactor() reactor {
	return &kqueueReactor{kq: -1, read: make(map[int]IOCallback), write: make(map[int]IOCallback)}
}

func (r *kqueueReactor) init() error {
	kq, err := unix.Kqueue()
	if err != nil {
		return &ferr.IOError{Op: "kqueue", FD: -1, Err: err}
	}
	unix.CloseOnExec(kq)
	r.kq = kq
	return nil
}

func (r *kqueueReactor) close() error {
	if r.kq < 0 {
		return nil
	}
	fd := r.kq
	err := unix.Close(fd)
	r.kq = -1
	if err != nil {
		return &ferr.IOError{Op: "close", FD: fd, Err: err}
	}
	return nil
}

func (r *kqueueReactor) filterFor(dir IOEvent) int16 {
	if dir == EventRead {
		return unix.EVFILT_READ
	}
	return unix.EVFILT_WRITE
}

func (r *kqueueReactor) wait(fd int, dir IOEvent, cb IOCallback) error {
	m := r.read
	if dir == EventWrite {
		m = r.write
	} else if dir != EventRead {
		ferr.Panicf("fiber: wait: invalid direction %v", dir)
	}
	if _, dup := m[fd]; dup {
		ferr.Panicf("fiber: duplicate waiter on fd %d dir %v", fd, dir)
	}
	m[fd] = cb

	kev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: r.filterFor(dir),
		Flags:  unix.EV_ADD | unix.EV_ENABLE | unix.EV_CLEAR,
	}
	if _, err := unix.Kevent(r.kq, []unix.Kevent_t{kev}, nil, nil); err != nil {
		delete(m, fd)
		return &ferr.IOError{Op: "kevent_add", FD: fd, Err: err}
	}
	return nil
}

func (r *kqueueReactor) cancelWait(fd int, dir IOEvent) error {
	m := r.read
	if dir == EventWrite {
		m = r.write
	}
	if _, ok := m[fd]; !ok {
		return nil
	}
	delete(m, fd)
	kev := unix.Kevent_t{Ident: uint64(fd), Filter: r.filterFor(dir), Flags: unix.EV_DELETE}
	_, _ = unix.Kevent(r.kq, []unix.Kevent_t{kev}, nil, nil) // already-gone is fine
	return nil
}

func (r *kqueueReactor) poll(timeout time.Duration) error {
	var ts *unix.Timespec
	if timeout >= 0 {
		ts = &unix.Timespec{Sec: int64(timeout / time.Second), Nsec: int64(timeout % time.Second)}
	}
	n, err := unix.Kevent(r.kq, nil, r.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return &ferr.IOError{Op: "kevent_wait", FD: -1, Err: err}
	}
	for i := 0; i < n; i++ {
		kev := &r.eventBuf[i]
		fd := int(kev.Ident)
		ev := keventToIOEvent(kev)
		switch kev.Filter {
		case unix.EVFILT_READ:
			if cb, ok := r.read[fd]; ok {
				delete(r.read, fd)
				cb(ev)
			}
		case unix.EVFILT_WRITE:
			if cb, ok := r.write[fd]; ok {
				delete(r.write, fd)
				cb(ev)
			}
		}
	}
	return nil
}

func keventToIOEvent(kev *unix.Kevent_t) IOEvent {
	var ev IOEvent
	switch kev.Filter {
	case unix.EVFILT_READ:
		ev |= EventRead
	case unix.EVFILT_WRITE:
		ev |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		ev |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		ev |= EventHangup
	}
	return ev
}
