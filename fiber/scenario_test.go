package fiber

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fiberkit/fiber/ferr"
)

// TestScenario_PrimeSieve is spec §8 scenario 1: a generator feeding
// 2,3,4,... into a channel, with a fresh filter stage spawned per prime
// found, each forwarding only values not divisible by that prime.
func TestScenario_PrimeSieve(t *testing.T) {
	const wanted = 100

	var primes []int
	sched, err := Main(func(root *Task) {
		head := NewChannel[int](1)
		root.Scheduler().Spawn(func(tk *Task) {
			for n := 2; ; n++ {
				if tk.CancelRequested() {
					return
				}
				if err := head.Send(tk, n); err != nil {
					return
				}
			}
		})

		cur := head
		for len(primes) < wanted {
			p, err := cur.Recv(root)
			if err != nil {
				return
			}
			primes = append(primes, p)

			in := cur
			next := NewChannel[int](1)
			root.Scheduler().Spawn(func(tk *Task) {
				for {
					v, err := in.Recv(tk)
					if err != nil {
						return
					}
					if v%p != 0 {
						if err := next.Send(tk, v); err != nil {
							return
						}
					}
				}
			})
			cur = next
		}
		root.Scheduler().Shutdown()
	})
	require.NoError(t, err)
	require.NotNil(t, sched)

	require.Len(t, primes, wanted)
	require.Equal(t, []int{2, 3, 5, 7, 11}, primes[:5])
}

// TestScenario_Ring is spec §8 scenario 2: n=10 tasks linked into a cycle,
// value 0 injected at one point, each task incrementing and forwarding.
// After m=1000 rotations the value and the total messages observed both
// equal n*m, since each rotation visits all n tasks exactly once.
func TestScenario_Ring(t *testing.T) {
	const n = 10
	const m = 1000

	chans := make([]*Channel[int], n)
	for i := range chans {
		chans[i] = NewChannel[int](0)
	}

	var totalMessages atomic.Int64
	var finalValue int

	sched, err := Main(func(t0 *Task) {
		for i := 1; i < n; i++ {
			idx := i
			t0.Scheduler().Spawn(func(tk *Task) {
				in := chans[idx-1]
				out := chans[idx]
				for {
					v, err := in.Recv(tk)
					if err != nil {
						return
					}
					totalMessages.Add(1)
					if err := out.Send(tk, v+1); err != nil {
						return
					}
				}
			})
		}

		val := 0
		if err := chans[0].Send(t0, val); err != nil {
			return
		}
		for rotation := 1; rotation <= m; rotation++ {
			v, err := chans[n-1].Recv(t0)
			if err != nil {
				return
			}
			totalMessages.Add(1)
			val = v + 1
			if rotation == m {
				finalValue = val
				break
			}
			if err := chans[0].Send(t0, val); err != nil {
				return
			}
		}
		for _, c := range chans {
			c.Close()
		}
	})
	require.NoError(t, err)
	require.NotNil(t, sched)

	require.Equal(t, n*m, finalValue)
	require.EqualValues(t, n*m, totalMessages.Load())
}

// TestScenario_ChannelCloseRacingRecv is spec §8 scenario 3: two receivers
// parked on an unbuffered channel, then a third task yields once and
// closes it. Both receivers must observe ErrChannelClosed and the closer
// must complete; three task-local observations are recorded in total.
func TestScenario_ChannelCloseRacingRecv(t *testing.T) {
	ch := NewChannel[int](0)
	var observed atomic.Int32

	sched, err := Main(func(root *Task) {
		recv1 := root.Scheduler().Spawn(func(tk *Task) {
			if _, err := ch.Recv(tk); errors.Is(err, ferr.ErrChannelClosed) {
				observed.Add(1)
			}
		})
		recv2 := root.Scheduler().Spawn(func(tk *Task) {
			if _, err := ch.Recv(tk); errors.Is(err, ferr.ErrChannelClosed) {
				observed.Add(1)
			}
		})
		closer := root.Scheduler().Spawn(func(tk *Task) {
			_ = tk.Yield()
			ch.Close()
			observed.Add(1)
		})
		_ = root.Join(recv1)
		_ = root.Join(recv2)
		_ = root.Join(closer)
	})
	require.NoError(t, err)
	require.NotNil(t, sched)
	require.EqualValues(t, 3, observed.Load())
}

// TestScenario_DeadlineFiresYieldAfterRecoveryIsBenign is spec §8 scenario
// 4: a 10ms deadline armed around a 200ms sleep must fire (P5: the deadline
// sentinel, not a plain cancel); after recovering from it, two further
// cancellation points (Yield) must not themselves raise anything.
func TestScenario_DeadlineFiresYieldAfterRecoveryIsBenign(t *testing.T) {
	var sleepErr, yield1Err, yield2Err error
	var fired bool

	sched, err := Main(func(tk *Task) {
		dl := Arm(tk, 10*time.Millisecond)
		sleepErr = tk.SleepFor(200 * time.Millisecond)
		fired = dl.Fired(sleepErr)
		dl.Disarm()

		yield1Err = tk.Yield()
		yield2Err = tk.Yield()
	})
	require.NoError(t, err)
	require.NotNil(t, sched)

	require.True(t, fired, "expected the armed deadline to fire, got %v", sleepErr)
	require.NoError(t, yield1Err)
	require.NoError(t, yield2Err)
}

// TestScenario_CrossThreadHandoff is spec §8 scenario 5: two independent
// schedulers, each driven by its own goroutine, rendezvous 1000 times over
// a shared unbuffered channel; every send and receive succeeds and exactly
// 1000 values of 42 arrive.
func TestScenario_CrossThreadHandoff(t *testing.T) {
	const iterations = 1000

	schedA, err := NewScheduler()
	require.NoError(t, err)
	schedB, err := NewScheduler()
	require.NoError(t, err)

	ch := NewChannel[int](0)
	received := make([]int, 0, iterations)
	var sendErrs, recvErrs int

	SpawnOn(schedA, func(tk *Task) {
		for i := 0; i < iterations; i++ {
			v, err := ch.Recv(tk)
			if err != nil {
				recvErrs++
				break
			}
			received = append(received, v)
		}
		schedA.Shutdown()
	})
	SpawnOn(schedB, func(tk *Task) {
		for i := 0; i < iterations; i++ {
			if err := ch.Send(tk, 42); err != nil {
				sendErrs++
				break
			}
		}
		schedB.Shutdown()
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); schedA.Run() }()
	go func() { defer wg.Done(); schedB.Run() }()
	wg.Wait()

	require.Zero(t, sendErrs)
	require.Zero(t, recvErrs)
	require.Len(t, received, iterations)
	for _, v := range received {
		require.Equal(t, 42, v)
	}
}
