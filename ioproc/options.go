package ioproc

// options holds resolved Pool configuration, grounded on the teacher's
// functional-options layer (see fiber/options.go) generalized to this
// package.
type options struct {
	workers    int
	queueDepth int
}

func defaultOptions() options {
	return options{workers: 4, queueDepth: 64}
}

// Option configures a Pool at construction time.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

// WithWorkers sets the fixed number of worker goroutines, each pinned to
// its own OS thread for the lifetime of the Pool via runtime.LockOSThread.
// Default 4.
func WithWorkers(n int) Option {
	return optionFunc(func(o *options) {
		if n > 0 {
			o.workers = n
		}
	})
}

// WithQueueDepth sets the submission channel's buffer size: how many
// Calls may be pending dispatch before Call itself blocks waiting for a
// free worker. Default 64.
func WithQueueDepth(n int) Option {
	return optionFunc(func(o *options) {
		if n >= 0 {
			o.queueDepth = n
		}
	})
}

func resolveOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}
