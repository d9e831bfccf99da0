// Package fiberlog provides the runtime's pluggable structured-logging
// seam. A Scheduler accepts a Logger via the fiber.WithLogger option (its
// reactor's poll errors are reported through it); channels and the io-proc
// pool take no logger. In the absence of one, a no-op logger is used so
// the hot path never pays for formatting nobody reads.
//
// The default, non-no-op implementation is backed by
// github.com/joeycumines/logiface, a generic zero-allocation structured
// logging façade, writing JSON events through
// github.com/joeycumines/stumpy.
package fiberlog

import (
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Field is a single structured key/value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// F is a convenience constructor for Field.
func F(key string, value any) Field { return Field{Key: key, Value: value} }

// Logger is the structured-logging seam used throughout the runtime.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// noop discards everything; it is the default Logger when none is configured.
type noop struct{}

func (noop) Debug(string, ...Field) {}
func (noop) Info(string, ...Field)  {}
func (noop) Warn(string, ...Field)  {}
func (noop) Error(string, ...Field) {}

// NoOp returns a Logger that discards everything.
func NoOp() Logger { return noop{} }

// stumpyLogger adapts a *logiface.Logger[*stumpy.Event] to the Logger
// interface used by the rest of this module.
type stumpyLogger struct {
	l *logiface.Logger[*stumpy.Event]
}

// NewDefault returns a Logger that writes newline-delimited JSON events to
// w (os.Stderr if nil) via stumpy, the teacher stack's model logiface
// backend.
func NewDefault(w *os.File) Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
	)
	return &stumpyLogger{l: logger}
}

func (s *stumpyLogger) emit(lvl logiface.Level, msg string, fields []Field) {
	b := s.l.Build(lvl)
	if b == nil {
		return
	}
	for _, f := range fields {
		b = b.Any(f.Key, f.Value)
	}
	b.Log(msg)
}

func (s *stumpyLogger) Debug(msg string, fields ...Field) { s.emit(logiface.LevelDebug, msg, fields) }
func (s *stumpyLogger) Info(msg string, fields ...Field) {
	s.emit(logiface.LevelInformational, msg, fields)
}
func (s *stumpyLogger) Warn(msg string, fields ...Field)  { s.emit(logiface.LevelWarning, msg, fields) }
func (s *stumpyLogger) Error(msg string, fields ...Field) { s.emit(logiface.LevelError, msg, fields) }
