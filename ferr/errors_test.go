package ferr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeadlineReachedIsMatchesAnyID(t *testing.T) {
	fired := &DeadlineReached{DeadlineID: 7}
	require.True(t, errors.Is(fired, &DeadlineReached{}))
	require.True(t, errors.Is(fired, &DeadlineReached{DeadlineID: 99}))
	require.False(t, errors.Is(fired, TaskInterrupted))
}

func TestIOErrorUnwraps(t *testing.T) {
	underlying := errors.New("bad file descriptor")
	err := &IOError{Op: "read", FD: 4, Err: underlying}
	require.ErrorIs(t, err, underlying)
	require.Contains(t, err.Error(), "read(fd=4)")
}

func TestIOErrorWithoutFD(t *testing.T) {
	err := &IOError{Op: "getaddrinfo", FD: -1, Err: errors.New("no such host")}
	require.NotContains(t, err.Error(), "fd=")
}

func TestIsCancellation(t *testing.T) {
	require.True(t, IsCancellation(TaskInterrupted))
	require.True(t, IsCancellation(&DeadlineReached{DeadlineID: 1}))
	require.False(t, IsCancellation(ErrChannelClosed))
	require.False(t, IsCancellation(nil))
}

func TestPanicfPanicsWithProgrammingError(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		pe, ok := r.(*ProgrammingError)
		require.True(t, ok)
		require.Equal(t, "fiber: programming error: duplicate waiter on fd 5", pe.Error())
	}()
	Panicf("duplicate waiter on fd %d", 5)
}
