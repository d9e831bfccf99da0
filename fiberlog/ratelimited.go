package fiberlog

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// RateLimited wraps a Logger, suppressing repeated Warn/Error calls that
// share the same msg more often than rates allows. The reactor and the
// io-proc pool both see the same transient errno or panic spam far more
// often than it is useful to actually write out; Debug/Info pass through
// unfiltered, since they are already off by default in production use.
type RateLimited struct {
	base    Logger
	limiter *catrate.Limiter
}

// NewRateLimited returns a Logger that forwards to base, except that Warn
// and Error calls sharing the same msg are throttled per rates (see
// catrate.NewLimiter for the rate map's semantics).
func NewRateLimited(base Logger, rates map[time.Duration]int) Logger {
	if base == nil {
		base = NoOp()
	}
	return &RateLimited{base: base, limiter: catrate.NewLimiter(rates)}
}

func (r *RateLimited) Debug(msg string, fields ...Field) { r.base.Debug(msg, fields...) }
func (r *RateLimited) Info(msg string, fields ...Field)  { r.base.Info(msg, fields...) }

func (r *RateLimited) Warn(msg string, fields ...Field) {
	if _, ok := r.limiter.Allow(msg); ok {
		r.base.Warn(msg, fields...)
	}
}

func (r *RateLimited) Error(msg string, fields ...Field) {
	if _, ok := r.limiter.Allow(msg); ok {
		r.base.Error(msg, fields...)
	}
}
