// Package runner executes discovered test modules. Each module goes through a
// strict setup → tests → teardown sequence; every individual invocation runs
// in its own interpreter process, scheduled over one shared bounded worker
// pool. No ordering exists across modules.
package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/nushell-tools/nutest/metrics"
	"github.com/nushell-tools/nutest/types"
)

// emptyContext is the global context literal for modules without before-all.
const emptyContext = "{}"

// ModuleResult captures all result rows of one module's run.
type ModuleResult struct {
	Module      types.ModuleDescriptor
	Results     []*types.TestResult
	SetupFailed bool
}

// RunResult captures the complete test run results.
type RunResult struct {
	Modules  []ModuleResult
	Status   types.TestStatus
	Stats    ResultStats
	Duration time.Duration
	RunID    string
}

// ResultStats tracks test statistics for a run.
type ResultStats struct {
	Total     int
	Passed    int
	Failed    int
	Skipped   int
	StartTime time.Time
	EndTime   time.Time
}

// Runner drives the full suite.
type Runner struct {
	modules  []types.ModuleDescriptor
	executor CaseExecutor
	workers  int
	log      log.Logger
	tracer   trace.Tracer
	runID    string
}

// Config holds configuration for creating a new runner.
type Config struct {
	Modules  []types.ModuleDescriptor
	Executor CaseExecutor
	Workers  int // clamped to [1, NumCPU]
	Log      log.Logger
}

// NewRunner creates a new runner instance.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	return &Runner{
		modules:  cfg.Modules,
		executor: cfg.Executor,
		workers:  ClampWorkers(cfg.Workers),
		log:      cfg.Log,
		tracer:   otel.Tracer("test runner"),
	}, nil
}

// RunAll executes every module and returns the fully materialized result set.
// Nothing is printed here; reporting happens only after all workers are done,
// so worker diagnostics never interleave with the report.
func (r *Runner) RunAll(ctx context.Context) (*RunResult, error) {
	r.runID = uuid.New().String()
	start := time.Now()
	r.log.Info("Running all tests", "run_id", r.runID, "modules", len(r.modules), "workers", r.workers)

	pool := NewWorkerPool(ctx, r.executor, r.workers, r.log)

	moduleResults := make([]ModuleResult, len(r.modules))
	var wg sync.WaitGroup
	for i, module := range r.modules {
		wg.Add(1)
		go func(i int, module types.ModuleDescriptor) {
			defer wg.Done()
			moduleResults[i] = r.runModule(ctx, pool, module)
		}(i, module)
	}
	wg.Wait()
	pool.Close()

	result := &RunResult{
		Modules: moduleResults,
		RunID:   r.runID,
		Stats:   ResultStats{StartTime: start, EndTime: time.Now()},
	}
	for _, mr := range moduleResults {
		for _, row := range mr.Results {
			result.Stats.Total++
			switch row.Status {
			case types.TestStatusPass:
				result.Stats.Passed++
			case types.TestStatusFail:
				result.Stats.Failed++
			case types.TestStatusSkip:
				result.Stats.Skipped++
			}
		}
	}
	result.Duration = time.Since(start)
	result.Status = determineRunStatus(result)

	r.log.Info("Test run complete",
		"run_id", r.runID,
		"status", result.Status,
		"total", result.Stats.Total,
		"failed", result.Stats.Failed,
		"duration", result.Duration)
	return result, nil
}

// runModule drives one module through its state machine: global setup when
// before-all is present, test fan-out, then global teardown. Setup runs
// before any test of the module; teardown runs only after every test of the
// module has completed.
func (r *Runner) runModule(ctx context.Context, pool *WorkerPool, module types.ModuleDescriptor) ModuleResult {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("module %s", module.Name))
	defer span.End()

	record := module.Record
	mr := ModuleResult{Module: module}

	// GLOBAL_SETUP. The before-all function runs through the same executor
	// protocol with a bootstrap context; its serialized return becomes the
	// module's global context, shared with every test strictly by value.
	globalContext := emptyContext
	if record.BeforeAll != "" {
		setup := pool.Do(ctx, types.TestCase{
			File:              module.File,
			Module:            module.Name,
			Test:              record.BeforeAll,
			BeforeEachSnippet: "let context = " + emptyContext,
		})
		if setup.Status != types.TestStatusPass {
			// Fatal for this module only: no test executes, the module is
			// reported as a setup failure. Other modules are unaffected.
			r.log.Error("Module setup failed", "module", module.Name, "error", setup.Error)
			setup.Error = fmt.Errorf("before-all failed for module %s: %w", module.Name, setup.Error)
			r.recordRow(setup)
			mr.SetupFailed = true
			mr.Results = append(mr.Results, setup)
			mr.Results = append(mr.Results, r.skipRows(module)...)
			return mr
		}
		if out := strings.TrimSpace(setup.Stdout); out != "" {
			globalContext = out
		}
	}

	beforeEach := beforeEachSnippet(globalContext, record.BeforeEach)
	afterEach := afterEachSnippet(record.AfterEach)

	// TEST_FANOUT. All of the module's tests go through the shared pool
	// concurrently; results land at their record position.
	rows := make([]*types.TestResult, len(record.Tests))
	var wg sync.WaitGroup
	for i, test := range record.Tests {
		wg.Add(1)
		go func(i int, test string) {
			defer wg.Done()
			testCtx, testSpan := r.tracer.Start(ctx, fmt.Sprintf("test %s", test))
			defer testSpan.End()
			rows[i] = pool.Do(testCtx, types.TestCase{
				File:              module.File,
				Module:            module.Name,
				Test:              test,
				BeforeEachSnippet: beforeEach,
				AfterEachSnippet:  afterEach,
			})
			r.recordRow(rows[i])
		}(i, test)
	}
	wg.Wait()
	mr.Results = append(mr.Results, rows...)

	// Skipped tests never spawn a subprocess.
	mr.Results = append(mr.Results, r.skipRows(module)...)

	// GLOBAL_TEARDOWN. Runs once after all fan-out work, receiving the global
	// context. A failure here is escalated as a regular fail row so broken
	// cleanup is not silent.
	if record.AfterAll != "" {
		teardown := pool.Do(ctx, types.TestCase{
			File:              module.File,
			Module:            module.Name,
			Test:              record.AfterAll,
			BeforeEachSnippet: "let context = (" + globalContext + ")",
		})
		if teardown.Status != types.TestStatusPass {
			r.log.Error("Module teardown failed", "module", module.Name, "error", teardown.Error)
			teardown.Error = fmt.Errorf("after-all failed for module %s: %w", module.Name, teardown.Error)
			r.recordRow(teardown)
			mr.Results = append(mr.Results, teardown)
		}
	}

	return mr
}

// skipRows synthesizes skip results for the module's ignored tests.
func (r *Runner) skipRows(module types.ModuleDescriptor) []*types.TestResult {
	rows := make([]*types.TestResult, 0, len(module.Record.Skipped))
	for _, test := range module.Record.Skipped {
		row := &types.TestResult{
			File:   module.File,
			Module: module.Name,
			Test:   test,
			Status: types.TestStatusSkip,
		}
		r.recordRow(row)
		rows = append(rows, row)
	}
	return rows
}

func (r *Runner) recordRow(row *types.TestResult) {
	metrics.RecordTest(r.runID, row.Module, row.Test, row.Status)
}

// beforeEachSnippet renders the context-binding statement for a test
// invocation. The global context literal is embedded by value; when the
// module has a before-each, its result is merged over the global context.
func beforeEachSnippet(globalContext, beforeEach string) string {
	if beforeEach == "" {
		return fmt.Sprintf("let context = (%s)", globalContext)
	}
	return fmt.Sprintf("let context = ((%s) | merge ((%s) | %s))", globalContext, globalContext, beforeEach)
}

// afterEachSnippet renders the cleanup statement, empty when the module has
// no after-each.
func afterEachSnippet(afterEach string) string {
	if afterEach == "" {
		return ""
	}
	return fmt.Sprintf("$context | %s", afterEach)
}

// determineRunStatus determines the overall status of the test run.
func determineRunStatus(result *RunResult) types.TestStatus {
	if result.Stats.Total == 0 {
		return types.TestStatusSkip
	}
	if result.Stats.Failed > 0 {
		return types.TestStatusFail
	}
	if result.Stats.Passed == 0 {
		return types.TestStatusSkip
	}
	return types.TestStatusPass
}

// FlattenResults returns every module's rows as one sequence, in module order.
func (r *RunResult) FlattenResults() []*types.TestResult {
	var rows []*types.TestResult
	for _, mr := range r.Modules {
		rows = append(rows, mr.Results...)
	}
	return rows
}
