//go:build linux

package fiber

import (
	"golang.org/x/sys/unix"

	"github.com/fiberkit/fiber/ferr"
)

// eventfdWake is a wakeSource backed by an eventfd, grounded on the
// teacher's createWakeFd/drainWakeUpPipe (wakeup_linux.go).
type eventfdWake struct {
	efd int
}

func newWakeSource() (wakeSource, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, &ferr.IOError{Op: "eventfd", FD: -1, Err: err}
	}
	return &eventfdWake{efd: fd}, nil
}

func (w *eventfdWake) fd() int { return w.efd }

func (w *eventfdWake) signal() error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(w.efd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return &ferr.IOError{Op: "eventfd_write", FD: w.efd, Err: err}
	}
	return nil
}

func (w *eventfdWake) drain() {
	var buf [8]byte
	for {
		if _, err := unix.Read(w.efd, buf[:]); err != nil {
			return
		}
	}
}

func (w *eventfdWake) close() error {
	return unix.Close(w.efd)
}
