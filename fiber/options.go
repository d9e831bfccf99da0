package fiber

import (
	"github.com/fiberkit/fiber/fiberlog"
)

// schedulerOptions holds the resolved configuration for a Scheduler,
// assembled by applying a slice of SchedulerOption, grounded on the
// teacher's functional-options layer (options.go's loopOptions/LoopOption
// pair).
type schedulerOptions struct {
	logger         fiberlog.Logger
	defaultStack   StackConfig
	readyQueueHint int
	metrics        bool
}

func defaultSchedulerOptions() schedulerOptions {
	return schedulerOptions{
		logger:         fiberlog.NoOp(),
		defaultStack:   StackConfig{Size: DefaultStackSize},
		readyQueueHint: 64,
	}
}

// SchedulerOption configures a Scheduler at construction time.
type SchedulerOption interface {
	apply(*schedulerOptions)
}

type schedulerOptionFunc func(*schedulerOptions)

func (f schedulerOptionFunc) apply(o *schedulerOptions) { f(o) }

// WithLogger attaches a structured logger. The default is a no-op logger.
func WithLogger(l fiberlog.Logger) SchedulerOption {
	return schedulerOptionFunc(func(o *schedulerOptions) {
		if l != nil {
			o.logger = l
		}
	})
}

// WithDefaultStack sets the StackConfig used for tasks spawned without an
// explicit one.
func WithDefaultStack(cfg StackConfig) SchedulerOption {
	return schedulerOptionFunc(func(o *schedulerOptions) {
		o.defaultStack = cfg.resolve()
	})
}

// WithReadyQueueCapacityHint pre-sizes the scheduler's ready queue backing
// array, avoiding early reallocation for workloads known to spawn many
// tasks up front.
func WithReadyQueueCapacityHint(n int) SchedulerOption {
	return schedulerOptionFunc(func(o *schedulerOptions) {
		if n > 0 {
			o.readyQueueHint = n
		}
	})
}

// WithMetrics enables collection of the scheduler's metrics (see
// MetricsSnapshot in metrics.go for what is recorded). Disabled by
// default, matching the teacher's WithMetrics/metrics.go opt-in design.
func WithMetrics(enabled bool) SchedulerOption {
	return schedulerOptionFunc(func(o *schedulerOptions) {
		o.metrics = enabled
	})
}

func resolveSchedulerOptions(opts []SchedulerOption) schedulerOptions {
	o := defaultSchedulerOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}
