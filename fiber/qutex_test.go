package fiber

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestQutexFIFOFairness is spec §8 P8: waiters queued in order T1..Tn
// acquire the qutex in that order, never overtaken by a later arrival.
func TestQutexFIFOFairness(t *testing.T) {
	q := NewQutex()
	const n = 5
	var order []int

	sched, err := Main(func(root *Task) {
		require.NoError(t, q.Lock(root)) // root holds it first, forcing T1..Tn to queue

		tasks := make([]*Task, n)
		for i := 0; i < n; i++ {
			idx := i
			tasks[i] = root.Scheduler().Spawn(func(tk *Task) {
				require.NoError(t, q.Lock(tk))
				order = append(order, idx)
				q.Unlock(tk)
			})
			_ = root.Yield() // let each task actually reach Lock and queue before spawning the next
		}

		q.Unlock(root)
		for _, tk := range tasks {
			_ = root.Join(tk)
		}
	})
	require.NoError(t, err)
	require.NotNil(t, sched)

	want := make([]int, n)
	for i := range want {
		want[i] = i
	}
	require.Equal(t, want, order)
}

// TestQutexUnlockByNonOwnerPanics confirms the documented programming-error
// behavior rather than a silent no-op.
func TestQutexUnlockByNonOwnerPanics(t *testing.T) {
	q := NewQutex()
	_, err := Main(func(root *Task) {
		require.NoError(t, q.Lock(root))
		intruder := root.Scheduler().Spawn(func(tk *Task) {
			require.Panics(t, func() { q.Unlock(tk) })
		})
		_ = root.Join(intruder)
		q.Unlock(root)
	})
	require.NoError(t, err)
}

// TestQutexTryLockNeverJumpsQueue confirms TryLock respects FIFO ordering:
// it fails while root holds the qutex and another task is queued for it.
func TestQutexTryLockNeverJumpsQueue(t *testing.T) {
	q := NewQutex()
	_, err := Main(func(root *Task) {
		require.NoError(t, q.Lock(root))
		waiter := root.Scheduler().Spawn(func(tk *Task) {
			require.NoError(t, q.Lock(tk))
			q.Unlock(tk)
		})
		_ = root.Yield() // let waiter queue up behind root

		require.Error(t, q.TryLock(root))
		q.Unlock(root)
		_ = root.Join(waiter)
	})
	require.NoError(t, err)
}
