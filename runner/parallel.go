package runner

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/nushell-tools/nutest/types"
)

// ClampWorkers bounds a requested worker count to [1, NumCPU].
func ClampWorkers(n int) int {
	if n < 1 {
		return 1
	}
	if max := runtime.NumCPU(); n > max {
		return max
	}
	return n
}

// caseTask is one unit of pool work with its reply channel.
type caseTask struct {
	testCase types.TestCase
	reply    chan *types.TestResult
}

// WorkerPool is a bounded pool of OS-thread workers, each of which blocks for
// the full lifetime of the interpreter subprocess it spawns. Both per-test
// fan-out work and per-module setup/teardown barrier work go through the same
// pool, which bounds total subprocess concurrency deterministically.
type WorkerPool struct {
	executor CaseExecutor
	tasks    chan caseTask
	wg       sync.WaitGroup
	log      log.Logger
}

// NewWorkerPool starts workers goroutines consuming from the pool.
func NewWorkerPool(ctx context.Context, executor CaseExecutor, workers int, logger log.Logger) *WorkerPool {
	if executor == nil {
		panic("executor cannot be nil")
	}
	workers = ClampWorkers(workers)
	if logger == nil {
		logger = log.New()
	}

	p := &WorkerPool{
		executor: executor,
		tasks:    make(chan caseTask),
		log:      logger,
	}

	logger.Debug("Starting worker pool", "workers", workers)
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	return p
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.log.Debug("Worker starting", "workerID", id)
	defer p.log.Debug("Worker exiting", "workerID", id)

	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			result, err := p.executor.RunCase(ctx, task.testCase)
			if err != nil {
				p.log.Error("Test execution failed in worker",
					"workerID", id, "module", task.testCase.Module, "test", task.testCase.Test, "error", err)
				result = failedResult(task.testCase, err)
			}
			task.reply <- result
		case <-ctx.Done():
			return
		}
	}
}

// Do submits one test case and blocks until its result is available. Callers
// that need barrier semantics (setup before fan-out, teardown after it) get
// them by calling Do inline.
func (p *WorkerPool) Do(ctx context.Context, tc types.TestCase) *types.TestResult {
	task := caseTask{testCase: tc, reply: make(chan *types.TestResult, 1)}

	select {
	case p.tasks <- task:
	case <-ctx.Done():
		return failedResult(tc, fmt.Errorf("run cancelled: %w", ctx.Err()))
	}

	select {
	case result := <-task.reply:
		return result
	case <-ctx.Done():
		return failedResult(tc, fmt.Errorf("run cancelled: %w", ctx.Err()))
	}
}

// Close stops accepting work and waits for in-flight tasks to finish.
func (p *WorkerPool) Close() {
	close(p.tasks)
	p.wg.Wait()
}

func failedResult(tc types.TestCase, err error) *types.TestResult {
	return &types.TestResult{
		File:   tc.File,
		Module: tc.Module,
		Test:   tc.Test,
		Status: types.TestStatusFail,
		Error:  err,
	}
}
