package ioproc

import (
	"context"

	"github.com/fiberkit/fiber/fiber"
	"github.com/joeycumines/go-microbatch"
)

// BatchProcessor runs one coalesced group of jobs, matching
// microbatch.BatchProcessor's shape minus the context parameter: work
// submitted through a BatchCaller is already off its originating task's
// critical path by the time a batch runs, so there is no per-task
// cancellation left to propagate into it.
type BatchProcessor[J any] func(jobs []J) error

// BatchCaller coalesces many small blocking calls submitted from
// different tasks — e.g. many concurrent small writes or stat calls —
// into fewer underlying dispatches, the round-trip reduction
// microbatch.Batcher exists for. Unlike Pool.Call, the coalesced work runs
// on a goroutine owned by the Batcher itself rather than a pinned Pool
// worker; a BatchProcessor that still needs OS-thread pinning should
// submit into a Pool internally.
type BatchCaller[J any] struct {
	b *microbatch.Batcher[J]
}

// NewBatchCaller starts a BatchCaller. cfg may be nil (see
// microbatch.BatcherConfig for defaults: batches of up to 16 jobs,
// flushed after 50ms of inactivity).
func NewBatchCaller[J any](cfg *microbatch.BatcherConfig, proc BatchProcessor[J]) *BatchCaller[J] {
	return &BatchCaller[J]{
		b: microbatch.NewBatcher(cfg, func(_ context.Context, jobs []J) error {
			return proc(jobs)
		}),
	}
}

// Submit enqueues job and cooperatively suspends t until its batch has
// been processed, or t is canceled or hits a deadline. As with Pool.Call,
// a cancel does not un-submit job: the batch it landed in still runs.
func (bc *BatchCaller[J]) Submit(t *fiber.Task, job J) error {
	reply := fiber.NewChannel[error](1)
	go func() {
		jr, err := bc.b.Submit(context.Background(), job)
		if err != nil {
			_ = reply.TrySend(err)
			return
		}
		_ = reply.TrySend(jr.Wait(context.Background()))
	}()

	jobErr, recvErr := reply.Recv(t)
	if recvErr != nil {
		return recvErr
	}
	return jobErr
}

// Close stops accepting new submissions and waits for any in-flight batch
// to finish.
func (bc *BatchCaller[J]) Close() error {
	return bc.b.Close()
}
