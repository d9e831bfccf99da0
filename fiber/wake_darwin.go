//go:build darwin

package fiber

import (
	"golang.org/x/sys/unix"

	"github.com/fiberkit/fiber/ferr"
)

// pipeWake is a wakeSource backed by a self-pipe, grounded on the
// teacher's createWakeFd (wakeup_darwin.go): Darwin has no eventfd
// equivalent, so a non-blocking pipe stands in.
type pipeWake struct {
	r, w int
}

func newWakeSource() (wakeSource, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return nil, &ferr.IOError{Op: "pipe", FD: -1, Err: err}
	}
	for _, fd := range fds {
		_ = unix.SetNonblock(fd, true)
		unix.CloseOnExec(fd)
	}
	return &pipeWake{r: fds[0], w: fds[1]}, nil
}

func (w *pipeWake) fd() int { return w.r }

func (w *pipeWake) signal() error {
	_, err := unix.Write(w.w, []byte{1})
	if err != nil && err != unix.EAGAIN {
		return &ferr.IOError{Op: "pipe_write", FD: w.w, Err: err}
	}
	return nil
}

func (w *pipeWake) drain() {
	var buf [64]byte
	for {
		if _, err := unix.Read(w.r, buf[:]); err != nil {
			return
		}
	}
}

func (w *pipeWake) close() error {
	err1 := unix.Close(w.r)
	err2 := unix.Close(w.w)
	if err1 != nil {
		return err1
	}
	return err2
}
