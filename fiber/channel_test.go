package fiber

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fiberkit/fiber/ferr"
)

// TestChannelOrderingPreserved is spec §8 P3: sends from a single producer
// that happen-before each other are received in that same order.
func TestChannelOrderingPreserved(t *testing.T) {
	ch := NewChannel[int](0)
	var received []int

	sched, err := Main(func(root *Task) {
		producer := root.Scheduler().Spawn(func(tk *Task) {
			for i := 0; i < 20; i++ {
				require.NoError(t, ch.Send(tk, i))
			}
		})
		consumer := root.Scheduler().Spawn(func(tk *Task) {
			for i := 0; i < 20; i++ {
				v, err := ch.Recv(tk)
				require.NoError(t, err)
				received = append(received, v)
			}
		})
		_ = root.Join(producer)
		_ = root.Join(consumer)
	})
	require.NoError(t, err)
	require.NotNil(t, sched)

	want := make([]int, 20)
	for i := range want {
		want[i] = i
	}
	require.Equal(t, want, received)
}

// TestChannelClosedDrainsBufferFirst is spec §8 P4: after Close, buffered
// values are still delivered in order before Recv starts reporting
// ErrChannelClosed.
func TestChannelClosedDrainsBufferFirst(t *testing.T) {
	ch := NewChannel[int](3)
	require.NoError(t, ch.TrySend(1))
	require.NoError(t, ch.TrySend(2))
	require.NoError(t, ch.TrySend(3))
	ch.Close()

	var got []int
	_, err := Main(func(tk *Task) {
		for {
			v, err := ch.Recv(tk)
			if err != nil {
				require.ErrorIs(t, err, ferr.ErrChannelClosed)
				return
			}
			got = append(got, v)
		}
	})
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, got)
}

// TestChannelCloseIsIdempotent covers the spec's round-trip property:
// closing an already-closed channel is a no-op, not a panic or a second
// wakeup storm.
func TestChannelCloseIsIdempotent(t *testing.T) {
	ch := NewChannel[int](0)
	require.NotPanics(t, func() {
		ch.Close()
		ch.Close()
		ch.Close()
	})
	_, err := ch.TryRecv()
	require.ErrorIs(t, err, ferr.ErrChannelClosed)
}

// TestChannelCapacityZeroIsPureHandoff: a capacity-0 channel never lets a
// value rest in the buffer — TrySend only succeeds once a receiver is
// already parked.
func TestChannelCapacityZeroIsPureHandoff(t *testing.T) {
	ch := NewChannel[int](0)
	require.ErrorIs(t, ch.TrySend(1), ferr.ErrWouldBlock)
	require.Zero(t, ch.Len())
}

// TestChannelCapacityOneActsAsSemaphore: a capacity-1 channel buffers
// exactly one value before a second TrySend must block.
func TestChannelCapacityOneActsAsSemaphore(t *testing.T) {
	ch := NewChannel[int](1)
	require.NoError(t, ch.TrySend(1))
	require.ErrorIs(t, ch.TrySend(2), ferr.ErrWouldBlock)

	v, err := ch.TryRecv()
	require.NoError(t, err)
	require.Equal(t, 1, v)

	require.NoError(t, ch.TrySend(3))
}

// TestChannelSendOnClosedFailsEvenWithBufferRoom: Send on a closed channel
// always fails, regardless of remaining buffer capacity.
func TestChannelSendOnClosedFailsEvenWithBufferRoom(t *testing.T) {
	ch := NewChannel[int](5)
	ch.Close()
	_, err := Main(func(tk *Task) {
		require.ErrorIs(t, ch.Send(tk, 1), ferr.ErrChannelClosed)
	})
	require.NoError(t, err)
}

// TestChannelRecvAllDrainsBufferWithoutBlocking confirms RecvAll drains
// every currently-buffered value in order and never waits for more.
func TestChannelRecvAllDrainsBufferWithoutBlocking(t *testing.T) {
	ch := NewChannel[int](5)
	require.NoError(t, ch.TrySend(1))
	require.NoError(t, ch.TrySend(2))
	require.NoError(t, ch.TrySend(3))

	got := ch.RecvAll()
	require.Equal(t, []int{1, 2, 3}, got)
	require.Zero(t, ch.Len())

	require.Empty(t, ch.RecvAll()) // nothing left: must not block
}

// TestChannelRecvAllAlsoClaimsWaitingSenders: on a capacity-0 (or full)
// channel, values offered by parked senders are available to RecvAll too,
// and each such sender is woken as its value is claimed.
func TestChannelRecvAllAlsoClaimsWaitingSenders(t *testing.T) {
	ch := NewChannel[int](0)
	var sendErrs [3]error

	_, err := Main(func(root *Task) {
		senders := make([]*Task, 3)
		for i := 0; i < 3; i++ {
			idx := i
			senders[i] = root.Scheduler().Spawn(func(tk *Task) {
				sendErrs[idx] = ch.Send(tk, idx+1)
			})
			_ = root.Yield() // let this sender park before spawning the next
		}

		got := ch.RecvAll()
		require.ElementsMatch(t, []int{1, 2, 3}, got)

		for _, s := range senders {
			_ = root.Join(s)
		}
	})
	require.NoError(t, err)
	for _, e := range sendErrs {
		require.NoError(t, e)
	}
}

// TestChannelIsClosedReflectsCloseState.
func TestChannelIsClosedReflectsCloseState(t *testing.T) {
	ch := NewChannel[int](1)
	require.False(t, ch.IsClosed())
	ch.Close()
	require.True(t, ch.IsClosed())
}

// TestChannelCancelAfterMatchDoesNotLoseAlreadyCommittedSend exercises the
// "already-committed wins over racing cancel" rule: once a receiver has
// matched a waiting sender, a Cancel that reaches the sender before it gets
// CPU time again must not turn its completed Send into an error.
func TestChannelCancelAfterMatchDoesNotLoseAlreadyCommittedSend(t *testing.T) {
	ch := NewChannel[int](0)
	var recvVal int
	var recvErr, sendErr error

	_, err := Main(func(root *Task) {
		sender := root.Scheduler().Spawn(func(tk *Task) {
			sendErr = ch.Send(tk, 7)
		})
		_ = root.Yield() // sender parks in sendQ, offering 7

		receiver := root.Scheduler().Spawn(func(tk *Task) {
			recvVal, recvErr = ch.Recv(tk)
		})
		_ = root.Yield() // receiver matches immediately: sender's waiter is
		// marked done and sender is woken, before sender itself runs again

		sender.Cancel() // arrives too late to undo the already-committed match
		_ = root.Join(sender)
		_ = root.Join(receiver)
	})
	require.NoError(t, err)
	require.NoError(t, sendErr)
	require.NoError(t, recvErr)
	require.Equal(t, 7, recvVal)
}
