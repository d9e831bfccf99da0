// Package fiberctx implements the minimal two-point context switch that
// fiber.Task is built on: swap from the caller's execution state into a
// previously-prepared one, passing an integer argument, and resume later
// with a reciprocal swap carrying a return value.
//
// Go's runtime gives no supported way to hand-roll register/stack
// save-restore the way a C coroutine library does (that machinery is
// exactly what the goroutine scheduler hides). This package instead
// implements the same *contract* — at most one side of a Context pair is
// ever running, and Swap blocks the caller until its counterpart swaps
// back — using one dedicated goroutine per Context and a pair of
// unbuffered channels for the handoff. This is recorded as a deliberate
// redesign in DESIGN.md rather than a literal port of register-level
// context switching; see spec §4.1 and §9 ("deep inheritance in the
// source's context backends" / "flatten to one context abstraction").
package fiberctx

// EntryFunc is invoked on the first Swap into a Context created by New.
// Its argument is the integer passed to that first Swap; its return value
// becomes the argument observed by the Swap that the entry function's
// eventual return value is delivered through.
type EntryFunc func(arg int) int

// Context is one side of a two-point context switch. The zero value is not
// usable; construct with New.
type Context struct {
	resume chan int // sent to wake this context, carrying the handoff arg
	done   chan int // sent by this context to hand control back
}

// New prepares a Context whose first Swap-in runs entry(arg) on a fresh
// goroutine. The goroutine blocks immediately until the first Swap
// delivers its argument; entry does not start running until then.
//
// Rather than a caller-owned stack buffer (spec's make_context signature),
// the "stack" here is the Go runtime's own growable goroutine stack —
// Go provides no supported way to hand it a foreign buffer, so the stack
// allocator contract (guard page, fixed size) is satisfied by the
// fiber.StackConfig type as a sizing/accounting hint rather than a literal
// memory region; see fiber.StackConfig and DESIGN.md.
func New(entry EntryFunc) *Context {
	c := &Context{
		resume: make(chan int),
		done:   make(chan int),
	}
	go func() {
		arg := <-c.resume
		ret := entry(arg)
		c.done <- ret
	}()
	return c
}

// Swap transfers control from the caller into to, passing arg, and blocks
// until to (or whatever it later swaps into) hands control back to the
// caller. It returns the integer supplied by that reciprocal handoff.
//
// Swap must be called with "to" being the Context last constructed by New
// or last swapped away from by a prior call; this package does not track a
// "from" side explicitly because the caller's goroutine *is* the from side
// — it is simply blocked on the channel receive below for the duration.
func Swap(to *Context, arg int) int {
	to.resume <- arg
	return <-to.done
}

// SwapBack is called from inside entry (or code entry calls) to yield
// control to the original caller, returning whatever the next Swap(to,
// arg) call passes.
func SwapBack(c *Context, arg int) int {
	c.done <- arg
	return <-c.resume
}
