package nutest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRequiresCallback(t *testing.T) {
	s := NewScheduler(time.Minute, log.New())
	require.Error(t, s.Start(context.Background()))
}

func TestSchedulerRunsImmediately(t *testing.T) {
	s := NewScheduler(time.Hour, log.New())

	var runs atomic.Int64
	s.RegisterCallback(func() error {
		runs.Add(1)
		return nil
	})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Equal(t, int64(1), runs.Load(), "first run happens before Start returns")
	assert.False(t, s.Stopped())
}

func TestSchedulerFirstRunErrorPropagates(t *testing.T) {
	s := NewScheduler(time.Hour, log.New())
	s.RegisterCallback(func() error {
		return errors.New("suite failed")
	})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "suite failed")
}

func TestSchedulerRunsPeriodically(t *testing.T) {
	s := NewScheduler(10*time.Millisecond, log.New())

	var runs atomic.Int64
	s.RegisterCallback(func() error {
		runs.Add(1)
		return nil
	})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool {
		return runs.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSchedulerStop(t *testing.T) {
	s := NewScheduler(5*time.Millisecond, log.New())

	var runs atomic.Int64
	s.RegisterCallback(func() error {
		runs.Add(1)
		return nil
	})

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	assert.True(t, s.Stopped())

	require.NoError(t, s.WaitForShutdown(context.Background()))
	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after shutdown completes")

	// Stopping twice is a no-op.
	s.Stop()
}

func TestSchedulerContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(time.Hour, log.New())
	s.RegisterCallback(func() error { return nil })

	require.NoError(t, s.Start(ctx))
	cancel()

	require.NoError(t, s.WaitForShutdown(context.Background()))
	assert.True(t, s.Stopped())
}

func TestSchedulerWaitForShutdownTimeout(t *testing.T) {
	s := NewScheduler(time.Hour, log.New())
	s.RegisterCallback(func() error { return nil })
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.WaitForShutdown(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
