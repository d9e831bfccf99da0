package ioproc

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/fiberkit/fiber/fiber"
)

// Job is a blocking operation to run off a Scheduler's loop goroutine —
// spec §4.9's motivating examples are net.LookupHost, os.Stat, or a cgo
// call: anything the reactor cannot turn into an edge-triggered fd wait.
// Grounded on eventloop/promisify.go's ctx-aware function shape.
type Job func(ctx context.Context) (any, error)

// Result is what a Job produces, delivered back to the calling task over
// an ordinary fiber.Channel.
type Result struct {
	Value any
	Err   error
}

// ErrGoexit is reported when a Job's goroutine exits via runtime.Goexit
// instead of returning, mirroring eventloop/promisify.go's ErrGoexit.
var ErrGoexit = errors.New("ioproc: job goroutine exited via runtime.Goexit")

// ErrClosed is returned by Call once the Pool has been closed.
var ErrClosed = errors.New("ioproc: pool closed")

// PanicError wraps a panic value recovered from a Job, mirroring
// eventloop/promisify.go's PanicError.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("ioproc: job panicked: %v", e.Value) }

type submission struct {
	ctx   context.Context
	fn    Job
	reply *fiber.Channel[Result]
}

// Stats is a point-in-time snapshot of pool activity. It is a supplemental
// feature, not named in spec.md, matching the teacher's own metrics.go
// operational-visibility pattern (see fiber.MetricsSnapshot).
type Stats struct {
	Submitted uint64
	Completed uint64
	Panicked  uint64
	Goexited  uint64
}

// Pool is the IO-proc pool of spec §4.9: a fixed-size set of worker
// goroutines, each pinned to its own OS thread via runtime.LockOSThread,
// dedicated to running blocking Jobs so they never stall a Scheduler's
// loop goroutine for their duration.
type Pool struct {
	opts options
	jobs chan submission

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup

	submitted atomic.Uint64
	completed atomic.Uint64
	panicked  atomic.Uint64
	goexited  atomic.Uint64
}

// New starts a Pool with the given options and returns it. Workers start
// immediately and run until Close.
func New(opts ...Option) *Pool {
	o := resolveOptions(opts)
	p := &Pool{
		opts: o,
		jobs: make(chan submission, o.queueDepth),
	}
	p.wg.Add(o.workers)
	for i := 0; i < o.workers; i++ {
		go p.workerLoop()
	}
	return p
}

func (p *Pool) workerLoop() {
	exited := false
	defer func() {
		if !exited {
			// A Job called runtime.Goexit, which unwinds this worker too:
			// start a replacement so the pool keeps its fixed size.
			p.wg.Add(1)
			go p.workerLoop()
		}
		p.wg.Done()
	}()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	for s := range p.jobs {
		p.runJob(s)
	}
	exited = true
}

func (p *Pool) runJob(s submission) {
	completed := false
	var result Result
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			result = Result{Err: &PanicError{Value: r}}
		} else if !completed {
			p.goexited.Add(1)
			result = Result{Err: ErrGoexit}
		}
		p.completed.Add(1)
		// Capacity-1 reply channel with exactly one sender: TrySend always
		// succeeds, whether or not the caller is still waiting.
		_ = s.reply.TrySend(result)
	}()

	v, err := s.fn(s.ctx)
	result = Result{Value: v, Err: err}
	completed = true
}

// Call submits fn for execution on a pool worker and cooperatively
// suspends t until it completes, or t is canceled or hits a deadline. If
// t's wait is interrupted, fn still runs to completion on its worker —
// once submitted, a Job is owned by that worker, not by t.
func (p *Pool) Call(t *fiber.Task, ctx context.Context, fn Job) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	reply := fiber.NewChannel[Result](1)

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrClosed
	}
	p.submitted.Add(1)
	p.jobs <- submission{ctx: ctx, fn: fn, reply: reply}
	p.mu.RUnlock()

	res, err := reply.Recv(t)
	if err != nil {
		return nil, err
	}
	return res.Value, res.Err
}

// Close stops accepting new work and waits for every already-submitted
// job, including anything still queued, to finish running. Safe to call
// more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
	})
	p.wg.Wait()
}

// Stats returns a point-in-time snapshot of pool activity.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
		Goexited:  p.goexited.Load(),
	}
}
