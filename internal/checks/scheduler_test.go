package checks

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerAddCronRejectsBadExpression(t *testing.T) {
	s := NewScheduler(nil)
	err := s.AddCron("not a cron expr", "bad", func(context.Context) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestSchedulerAtFiresJob(t *testing.T) {
	s := NewScheduler(nil)
	var fired atomic.Bool
	done := make(chan struct{})

	s.At(time.Now().Add(20*time.Millisecond), "soon", func(context.Context) {
		fired.Store(true)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("one-off job never fired")
	}
	assert.True(t, fired.Load())
	require.NoError(t, s.Shutdown(context.Background()))
}

func TestSchedulerAtFiresPastDueJobsImmediately(t *testing.T) {
	// An appointment already inside the reminder window when the sweep
	// runs still gets its reminder.
	s := NewScheduler(nil)
	var fired atomic.Bool
	done := make(chan struct{})

	s.At(time.Now().Add(-time.Minute), "past-due", func(context.Context) {
		fired.Store(true)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("past-due job never fired")
	}
	assert.True(t, fired.Load())
	require.NoError(t, s.Shutdown(context.Background()))
}

func TestSchedulerShutdownCancelsPendingJobs(t *testing.T) {
	s := NewScheduler(nil)
	var fired atomic.Bool

	s.At(time.Now().Add(time.Hour), "far-future", func(context.Context) {
		fired.Store(true)
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.False(t, fired.Load())
}
