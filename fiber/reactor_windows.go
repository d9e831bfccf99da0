//go:build windows

package fiber

import (
	"sync"
	"time"

	"golang.org/x/sys/windows"

	"github.com/fiberkit/fiber/ferr"
)

// iocpReactor implements reactor on Windows. Unlike epoll/kqueue, IOCP is
// not naturally an edge-triggered "tell me when fd X is readable" API —
// each handle's overlapped I/O is associated with the port at the point an
// operation is issued. This backend does no per-handle overlapped I/O: it
// creates and closes a completion port but posts nothing to it and never
// waits on it, and cross-thread wakes rely on poll returning after at most
// one pollInterval (see wake_windows.go). Fd readiness comes from the
// pollReadable/pollWritable probes below, which do not inspect the
// descriptor: a read waiter is never reported ready, so WaitReadable does
// not complete on Windows, and a write waiter is reported ready on the
// next poll.
type iocpReactor struct {
	port windows.Handle

	mu    sync.Mutex
	read  map[int]IOCallback
	write map[int]IOCallback
}

func newReactor() reactor {
	return &iocpReactor{
		port:  windows.InvalidHandle,
		read:  make(map[int]IOCallback),
		write: make(map[int]IOCallback),
	}
}

func (r *iocpReactor) init() error {
	port, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return &ferr.IOError{Op: "CreateIoCompletionPort", FD: -1, Err: err}
	}
	r.port = port
	return nil
}

func (r *iocpReactor) close() error {
	if r.port == windows.InvalidHandle {
		return nil
	}
	err := windows.CloseHandle(r.port)
	r.port = windows.InvalidHandle
	if err != nil {
		return &ferr.IOError{Op: "CloseHandle", FD: -1, Err: err}
	}
	return nil
}

func (r *iocpReactor) wait(fd int, dir IOEvent, cb IOCallback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.read
	if dir == EventWrite {
		m = r.write
	}
	if _, dup := m[fd]; dup {
		ferr.Panicf("fiber: duplicate waiter on fd %d dir %v", fd, dir)
	}
	m[fd] = cb
	return nil
}

func (r *iocpReactor) cancelWait(fd int, dir IOEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dir == EventWrite {
		delete(r.write, fd)
	} else {
		delete(r.read, fd)
	}
	return nil
}

// pollInterval bounds how long one poll call sleeps when nothing is ready,
// and so how late a cross-thread wake is observed.
const pollInterval = 500 * time.Microsecond

// poll makes one readiness pass; if nothing is ready and timeout is not
// zero, it sleeps for at most pollInterval (or timeout, if shorter) and
// returns, so the scheduler loop re-checks its queues at least that often.
func (r *iocpReactor) poll(timeout time.Duration) error {
	r.mu.Lock()
	ready := make(map[int]IOCallback, len(r.read)+len(r.write))
	for fd, cb := range r.read {
		if pollReadable(fd) {
			ready[fd] = cb
			delete(r.read, fd)
		}
	}
	for fd, cb := range r.write {
		if pollWritable(fd) {
			ready[-fd-1] = cb // disjoint key space from read fds
			delete(r.write, fd)
		}
	}
	r.mu.Unlock()

	if len(ready) > 0 {
		for _, cb := range ready {
			cb(EventRead | EventWrite)
		}
		return nil
	}
	if timeout != 0 {
		wait := pollInterval
		if timeout > 0 && timeout < wait {
			wait = timeout
		}
		time.Sleep(wait)
	}
	return nil
}

// pollReadable/pollWritable are the readiness probes used by poll. They do
// not inspect fd: pollReadable always reports false and pollWritable
// always reports true.
func pollReadable(fd int) bool  { return false }
func pollWritable(fd int) bool  { return true }
