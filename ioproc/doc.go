// Package ioproc implements the IO-proc pool of spec §4.9: a bounded set
// of worker goroutines, each pinned to its own OS thread, dedicated to
// running blocking calls the reactor cannot turn into an edge-triggered
// fd wait (DNS resolution, os.Stat, a cgo call). Submission and reply both
// travel over an ordinary fiber.Channel, so a caller's cancellation and
// deadlines compose with Call exactly as with any other suspension point.
//
// Grounded on _examples/ygrebnov-workers (fixed worker-pool lifecycle) and
// eventloop/promisify.go (panic/Goexit-safe execution of arbitrary
// functions on a detached goroutine).
package ioproc
