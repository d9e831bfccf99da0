package fiber

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fiberkit/fiber/ferr"
)

// TestRendezWaitAlwaysReturnsWithLockHeld is the classic condvar contract:
// Wait re-acquires the bound qutex before returning, whether it was woken
// by Signal or by cancellation.
func TestRendezWaitAlwaysReturnsWithLockHeld(t *testing.T) {
	q := NewQutex()
	cond := NewRendez(q)
	ready := false

	_, err := Main(func(root *Task) {
		waiter := root.Scheduler().Spawn(func(tk *Task) {
			require.NoError(t, q.Lock(tk))
			for !ready {
				require.NoError(t, cond.Wait(tk))
			}
			// Wait must have re-acquired q: Unlock by a non-owner would panic.
			require.NotPanics(t, func() { q.Unlock(tk) })
		})
		_ = root.Yield() // waiter locks q, finds !ready, and parks in cond.Wait

		require.NoError(t, q.Lock(root))
		ready = true
		cond.Signal()
		q.Unlock(root)

		_ = root.Join(waiter)
	})
	require.NoError(t, err)
}

// TestRendezWaitCanceledStillReacquiresLock: even when Wait is interrupted
// by cancellation rather than Signal, it must still hand the qutex back
// before returning the error.
func TestRendezWaitCanceledStillReacquiresLock(t *testing.T) {
	q := NewQutex()
	cond := NewRendez(q)
	var waitErr error

	_, err := Main(func(root *Task) {
		waiter := root.Scheduler().Spawn(func(tk *Task) {
			require.NoError(t, q.Lock(tk))
			waitErr = cond.Wait(tk)
			require.NotPanics(t, func() { q.Unlock(tk) })
		})
		_ = root.Yield() // waiter locks q, releases it via Wait, and parks

		waiter.Cancel()
		_ = root.Join(waiter)
	})
	require.NoError(t, err)
	require.ErrorIs(t, waitErr, ferr.TaskInterrupted)
}

// TestRendezBroadcastWakesAllWaiters confirms Broadcast, unlike Signal,
// releases every currently parked task.
func TestRendezBroadcastWakesAllWaiters(t *testing.T) {
	q := NewQutex()
	cond := NewRendez(q)
	const n = 4
	var woken int

	_, err := Main(func(root *Task) {
		tasks := make([]*Task, n)
		for i := 0; i < n; i++ {
			tasks[i] = root.Scheduler().Spawn(func(tk *Task) {
				require.NoError(t, q.Lock(tk))
				require.NoError(t, cond.Wait(tk))
				woken++
				q.Unlock(tk)
			})
			_ = root.Yield() // this task locks, waits, and parks before the next spawns
		}

		require.NoError(t, q.Lock(root))
		cond.Broadcast()
		q.Unlock(root)

		for _, tk := range tasks {
			_ = root.Join(tk)
		}
	})
	require.NoError(t, err)
	require.Equal(t, n, woken)
}
