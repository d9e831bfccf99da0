package fiber

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerSetExpiresInAscendingOrder(t *testing.T) {
	s := newTimerSet()
	base := time.Unix(1700000000, 0)

	var fired []int
	visit := func(r *timeoutRecord) { fired = append(fired, int(r.task.id)) }

	tasks := []*Task{{id: 30}, {id: 10}, {id: 20}}
	s.insert(tasks[0], base.Add(3*time.Second), nil)
	s.insert(tasks[1], base.Add(1*time.Second), nil)
	s.insert(tasks[2], base.Add(2*time.Second), nil)

	require.Equal(t, 3, s.len())
	earliest, ok := s.earliest()
	require.True(t, ok)
	require.True(t, earliest.Equal(base.Add(1*time.Second)))

	s.expire(base.Add(2*time.Second), visit)
	require.Equal(t, []int{10, 20}, fired)
	require.Equal(t, 1, s.len())

	s.expire(base.Add(3*time.Second), visit)
	require.Equal(t, []int{10, 20, 30}, fired)
	require.Equal(t, 0, s.len())
}

func TestTimerSetCancelRemovesBeforeFiring(t *testing.T) {
	s := newTimerSet()
	tk := &Task{id: 1}
	when := time.Unix(1700000000, 0)

	h := s.insert(tk, when, nil)
	require.Equal(t, 1, s.len())
	require.Len(t, tk.timeouts, 1)

	s.cancel(h)
	require.Equal(t, 0, s.len())
	require.Empty(t, tk.timeouts)

	var fired bool
	s.expire(when.Add(time.Hour), func(*timeoutRecord) { fired = true })
	require.False(t, fired)
}

func TestTimerSetCancelIsIdempotent(t *testing.T) {
	s := newTimerSet()
	tk := &Task{id: 1}
	h := s.insert(tk, time.Unix(1700000000, 0), nil)
	require.NotPanics(t, func() {
		s.cancel(h)
		s.cancel(h) // already fired/canceled: must be a no-op, not a panic
	})
}

func TestTimerSetTiesBrokenByInsertionOrder(t *testing.T) {
	s := newTimerSet()
	when := time.Unix(1700000000, 0)
	tasks := []*Task{{id: 1}, {id: 2}, {id: 3}}
	for _, tk := range tasks {
		s.insert(tk, when, nil)
	}

	var order []int
	s.expire(when, func(r *timeoutRecord) { order = append(order, int(r.task.id)) })
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestTimerSetDeliversDeadlineException(t *testing.T) {
	s := newTimerSet()
	tk := &Task{id: 1}
	want := errors.New("boom")
	s.insert(tk, time.Unix(1700000000, 0), want)

	var got error
	s.expire(time.Unix(1700000001, 0), func(r *timeoutRecord) { got = r.exception })
	require.Equal(t, want, got)
}
