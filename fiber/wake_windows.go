//go:build windows

package fiber

// noFDWake is the Windows wakeSource: reactor_windows.go's fallback poll
// loop already wakes every pollInterval, so a cross-thread wake only needs
// to be observed on the next such tick rather than interrupt a blocking
// syscall directly (see reactor_windows.go's doc comment for why this
// runtime does not attempt full IOCP overlapped-I/O integration).
type noFDWake struct{}

func newWakeSource() (wakeSource, error) { return noFDWake{}, nil }

func (noFDWake) fd() int      { return -1 }
func (noFDWake) signal() error { return nil }
func (noFDWake) drain()        {}
func (noFDWake) close() error  { return nil }
