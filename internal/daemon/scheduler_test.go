package daemon

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func TestScheduler_ScheduleCron(t *testing.T) {
	t.Run("returns job id for valid cron", func(t *testing.T) {
		s := newTestScheduler(t)
		id, err := s.ScheduleCron("test", "0 3 * * *", func() {})
		require.NoError(t, err)
		require.NotEmpty(t, id)
		require.NoError(t, s.Start(context.Background()))

		next, err := s.NextRun(id)
		require.NoError(t, err)
		require.Equal(t, 3, next.Hour())
	})

	t.Run("rejects invalid cron", func(t *testing.T) {
		s := newTestScheduler(t)
		_, err := s.ScheduleCron("test", "this is not a cron", func() {})
		require.Error(t, err)
	})
}

func TestScheduler_Reschedule(t *testing.T) {
	s := newTestScheduler(t)
	id, err := s.ScheduleCron("update", "0 3 * * *", func() {})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Reschedule(id, "30 5 * * *"))
	next, err := s.NextRun(id)
	require.NoError(t, err)
	require.Equal(t, 5, next.Hour())
	require.Equal(t, 30, next.Minute())

	require.Error(t, s.Reschedule(id, "not cron"))
	require.Error(t, s.Reschedule("not-a-uuid", "0 3 * * *"))
}

func TestScheduler_RunNowAndSingleton(t *testing.T) {
	s := newTestScheduler(t)

	var active, maxActive, runs atomic.Int32
	task := func() {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		active.Add(-1)
		runs.Add(1)
	}

	id, err := s.ScheduleCron("busy", "0 3 * * *", task)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	for range 3 {
		require.NoError(t, s.RunNow(id))
	}

	require.Eventually(t, func() bool { return runs.Load() >= 1 && active.Load() == 0 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(1), maxActive.Load())
	require.True(t, s.Health().IsHealthy())
}
