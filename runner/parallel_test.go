package runner

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nushell-tools/nutest/types"
)

// fakeExecutor returns canned results and records how it was driven.
type fakeExecutor struct {
	mu       sync.Mutex
	ran      []string
	inFlight atomic.Int64
	peak     atomic.Int64
	delay    time.Duration
	err      error
	status   func(tc types.TestCase) types.TestStatus
}

func (f *fakeExecutor) RunCase(_ context.Context, tc types.TestCase) (*types.TestResult, error) {
	cur := f.inFlight.Add(1)
	for {
		peak := f.peak.Load()
		if cur <= peak || f.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	defer f.inFlight.Add(-1)

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.ran = append(f.ran, tc.Module+"/"+tc.Test)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	status := types.TestStatusPass
	if f.status != nil {
		status = f.status(tc)
	}
	result := &types.TestResult{
		File:   tc.File,
		Module: tc.Module,
		Test:   tc.Test,
		Status: status,
	}
	if status == types.TestStatusFail {
		result.Error = fmt.Errorf("%s failed", tc.Test)
	}
	return result, nil
}

func (f *fakeExecutor) executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.ran...)
	sort.Strings(out)
	return out
}

func TestClampWorkers(t *testing.T) {
	max := runtime.NumCPU()
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"zero becomes one", 0, 1},
		{"negative becomes one", -3, 1},
		{"one stays one", 1, 1},
		{"cpu count stays", max, max},
		{"above cpu count clamps", max + 7, max},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampWorkers(tt.in))
		})
	}
}

func TestWorkerPoolDo(t *testing.T) {
	t.Run("returns the executor result", func(t *testing.T) {
		exec := &fakeExecutor{}
		pool := NewWorkerPool(context.Background(), exec, 2, testlogger())
		defer pool.Close()

		result := pool.Do(context.Background(), types.TestCase{Module: "m", Test: "t"})
		require.NotNil(t, result)
		assert.Equal(t, types.TestStatusPass, result.Status)
		assert.Equal(t, "m", result.Module)
	})

	t.Run("folds executor error into a fail result", func(t *testing.T) {
		exec := &fakeExecutor{err: fmt.Errorf("disk full")}
		pool := NewWorkerPool(context.Background(), exec, 1, testlogger())
		defer pool.Close()

		result := pool.Do(context.Background(), types.TestCase{Module: "m", Test: "t"})
		require.NotNil(t, result)
		assert.Equal(t, types.TestStatusFail, result.Status)
		require.Error(t, result.Error)
		assert.Contains(t, result.Error.Error(), "disk full")
	})

	t.Run("cancelled context returns a fail result without running", func(t *testing.T) {
		exec := &fakeExecutor{}
		ctx, cancel := context.WithCancel(context.Background())
		pool := NewWorkerPool(ctx, exec, 1, testlogger())
		cancel()

		result := pool.Do(ctx, types.TestCase{Module: "m", Test: "t"})
		require.NotNil(t, result)
		assert.Equal(t, types.TestStatusFail, result.Status)
		require.Error(t, result.Error)
		assert.Contains(t, result.Error.Error(), "cancelled")
	})
}

func TestWorkerPoolConcurrencyBound(t *testing.T) {
	exec := &fakeExecutor{delay: 20 * time.Millisecond}
	pool := NewWorkerPool(context.Background(), exec, 2, testlogger())
	defer pool.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pool.Do(context.Background(), types.TestCase{Module: "m", Test: fmt.Sprintf("t%d", i)})
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, exec.peak.Load(), int64(2), "never more subprocesses than workers")
	assert.Len(t, exec.executed(), 8)
}

func TestWorkerCountDoesNotChangeResults(t *testing.T) {
	cases := make([]types.TestCase, 12)
	for i := range cases {
		cases[i] = types.TestCase{Module: "m", Test: fmt.Sprintf("t%02d", i)}
	}

	run := func(workers int) []string {
		exec := &fakeExecutor{delay: time.Millisecond}
		pool := NewWorkerPool(context.Background(), exec, workers, testlogger())
		defer pool.Close()

		var wg sync.WaitGroup
		for _, tc := range cases {
			wg.Add(1)
			go func(tc types.TestCase) {
				defer wg.Done()
				pool.Do(context.Background(), tc)
			}(tc)
		}
		wg.Wait()
		return exec.executed()
	}

	assert.Equal(t, run(1), run(8), "the set of executed tests is independent of worker count")
}
