// Package fiber implements a user-space cooperative concurrency runtime:
// stack-switched-in-spirit tasks multiplexed onto a small number of
// schedulers (one per participating OS thread), an edge-triggered I/O
// reactor, and the channel/qutex/rendez/deadline primitives tasks use to
// coordinate and suspend.
//
// Go gives no supported way to hand-roll register/stack context
// switching the way the source design's make_context/swap_context pair
// does; fiberctx implements the same two-point-swap contract on top of a
// dedicated goroutine and a pair of unbuffered channels instead, and
// fiber.Task layers suspend/resume, cancellation, and timeout semantics
// on top of that. See fiberctx's package doc and DESIGN.md for the full
// rationale.
//
// A Task's body receives its own *Task explicitly (see Func) rather than
// recovering it from ambient per-goroutine state, matching how
// context.Context is threaded explicitly through idiomatic Go call
// chains.
package fiber
