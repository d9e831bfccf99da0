//go:build linux

package fiber

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/fiberkit/fiber/ferr"
)

// maxReactorFDs bounds direct-indexed fd slots, matching the teacher's
// FastPoller fixed-array sizing on Linux (poller_linux.go).
const maxReactorFDs = 65536

// fdSlot holds the independent read/write waiter callbacks for one fd.
type fdSlot struct {
	read, write IOCallback
	registered  bool // true once added to epoll via EPOLL_CTL_ADD
}

// epollReactor implements reactor via epoll, edge-triggered
// (unix.EPOLLET), grounded on the teacher's FastPoller
// (poller_linux.go) generalized to track read/write waiters
// independently instead of one combined callback per fd.
type epollReactor struct {
	epfd     int
	eventBuf [256]unix.EpollEvent
	fds      [maxReactorFDs]fdSlot
}

func newReactor() reactor { return &epollReactor{epfd: -1} }

func (r *epollReactor) init() error {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return &ferr.IOError{Op: "epoll_create1", FD: -1, Err: err}
	}
	r.epfd = fd
	return nil
}

func (r *epollReactor) close() error {
	if r.epfd < 0 {
		return nil
	}
	fd := r.epfd
	err := unix.Close(fd)
	r.epfd = -1
	if err != nil {
		return &ferr.IOError{Op: "close", FD: fd, Err: err}
	}
	return nil
}

func (r *epollReactor) interestMask(s *fdSlot) uint32 {
	var mask uint32
	if s.read != nil {
		mask |= unix.EPOLLIN
	}
	if s.write != nil {
		mask |= unix.EPOLLOUT
	}
	return mask | unix.EPOLLET
}

func (r *epollReactor) wait(fd int, dir IOEvent, cb IOCallback) error {
	if fd < 0 || fd >= maxReactorFDs {
		return &ferr.IOError{Op: "wait", FD: fd, Err: unix.EBADF}
	}
	s := &r.fds[fd]
	switch dir {
	case EventRead:
		if s.read != nil {
			ferr.Panicf("fiber: duplicate read waiter on fd %d", fd)
		}
		s.read = cb
	case EventWrite:
		if s.write != nil {
			ferr.Panicf("fiber: duplicate write waiter on fd %d", fd)
		}
		s.write = cb
	default:
		ferr.Panicf("fiber: wait: invalid direction %v", dir)
	}

	ev := unix.EpollEvent{Events: r.interestMask(s), Fd: int32(fd)}
	op := unix.EPOLL_CTL_MOD
	if !s.registered {
		op = unix.EPOLL_CTL_ADD
	}
	if err := unix.EpollCtl(r.epfd, op, fd, &ev); err != nil {
		return &ferr.IOError{Op: "epoll_ctl", FD: fd, Err: err}
	}
	s.registered = true
	return nil
}

func (r *epollReactor) cancelWait(fd int, dir IOEvent) error {
	if fd < 0 || fd >= maxReactorFDs {
		return nil
	}
	s := &r.fds[fd]
	switch dir {
	case EventRead:
		s.read = nil
	case EventWrite:
		s.write = nil
	}
	if !s.registered {
		return nil
	}
	if s.read == nil && s.write == nil {
		err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		s.registered = false
		if err != nil && err != unix.ENOENT {
			return &ferr.IOError{Op: "epoll_ctl_del", FD: fd, Err: err}
		}
		return nil
	}
	ev := unix.EpollEvent{Events: r.interestMask(s), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return &ferr.IOError{Op: "epoll_ctl", FD: fd, Err: err}
	}
	return nil
}

func (r *epollReactor) poll(timeout time.Duration) error {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	n, err := unix.EpollWait(r.epfd, r.eventBuf[:], ms)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return &ferr.IOError{Op: "epoll_wait", FD: -1, Err: err}
	}
	for i := 0; i < n; i++ {
		fd := int(r.eventBuf[i].Fd)
		if fd < 0 || fd >= maxReactorFDs {
			continue
		}
		s := &r.fds[fd]
		ev := epollToIOEvent(r.eventBuf[i].Events)
		// Edge-triggered + one-shot: fire and clear each ready direction so
		// a re-registration is required to observe the fd again, per spec
		// §4.4.
		if ev&(EventRead|EventError|EventHangup) != 0 && s.read != nil {
			cb := s.read
			s.read = nil
			cb(ev)
		}
		if ev&(EventWrite|EventError|EventHangup) != 0 && s.write != nil {
			cb := s.write
			s.write = nil
			cb(ev)
		}
		if s.registered && (s.read != nil || s.write != nil) {
			_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
				Events: r.interestMask(s), Fd: int32(fd),
			})
		} else if s.registered {
			_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
			s.registered = false
		}
	}
	return nil
}

func epollToIOEvent(mask uint32) IOEvent {
	var ev IOEvent
	if mask&unix.EPOLLIN != 0 {
		ev |= EventRead
	}
	if mask&unix.EPOLLOUT != 0 {
		ev |= EventWrite
	}
	if mask&unix.EPOLLERR != 0 {
		ev |= EventError
	}
	if mask&unix.EPOLLHUP != 0 || mask&unix.EPOLLRDHUP != 0 {
		ev |= EventHangup
	}
	return ev
}
