package fiberctx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSwapRunsEntryOnFirstSwap mirrors how fiber.Task uses Swap/SwapBack: the
// entry function does not start running until the first Swap, and the
// caller is blocked for the whole time a counterpart is "running".
func TestSwapRunsEntryOnFirstSwap(t *testing.T) {
	started := false
	c := New(func(arg int) int {
		started = true
		return arg * 2
	})
	require.False(t, started, "entry must not run before the first Swap")

	ret := Swap(c, 21)
	require.True(t, started)
	require.Equal(t, 42, ret)
}

// TestSwapBackRoundTrips verifies the suspend/resume contract a Task builds
// on: entry can call SwapBack repeatedly, handing a value back to the
// caller and receiving whatever the caller's next Swap sends, before
// finally returning.
func TestSwapBackRoundTrips(t *testing.T) {
	var observed []int
	var c *Context
	c = New(func(arg int) int {
		observed = append(observed, arg)
		next := SwapBack(c, arg+1)
		observed = append(observed, next)
		return next + 1
	})

	first := Swap(c, 1)
	require.Equal(t, 2, first) // arg(1)+1 handed back via SwapBack

	second := Swap(c, 10)
	require.Equal(t, 11, second) // next(10)+1 handed back via the final return

	require.Equal(t, []int{1, 10}, observed)
}

// TestMultipleContextsAreIndependent confirms two Context instances don't
// share state — the scheduler relies on one per Task.
func TestMultipleContextsAreIndependent(t *testing.T) {
	a := New(func(arg int) int { return arg + 1 })
	b := New(func(arg int) int { return arg + 100 })

	require.Equal(t, 6, Swap(a, 5))
	require.Equal(t, 105, Swap(b, 5))
}
