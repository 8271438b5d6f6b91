// Package nutest wires discovery, execution and reporting into the top-level
// test runner service.
package nutest

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/nushell-tools/nutest/interp"
	"github.com/nushell-tools/nutest/metrics"
	"github.com/nushell-tools/nutest/registry"
	"github.com/nushell-tools/nutest/reporting"
	"github.com/nushell-tools/nutest/runner"
	"github.com/nushell-tools/nutest/scanner"
)

// Service runs the annotation-driven test suite described by its Config.
type Service struct {
	config   *Config
	registry *registry.Registry
	runner   *runner.Runner
	result   *runner.RunResult
}

// New discovers the test modules and prepares a runner for them. Discovery
// errors (missing path, unevaluable module, bad pattern) surface here, before
// anything is scheduled.
func New(ctx context.Context, config *Config) (*Service, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating nutest service",
		"path", config.Path,
		"module", config.Module,
		"threads", config.Threads,
		"nuBinary", config.NuBinary)

	interpCfg := interp.Config{
		Binary:  config.NuBinary,
		Plugins: config.Plugins,
	}

	scan := scanner.New(scanner.Config{
		Log:    config.Log,
		Interp: interpCfg,
	})

	reg, err := registry.NewRegistry(registry.Config{
		Log:           config.Log,
		Scanner:       scan,
		Root:          config.Path,
		Module:        config.Module,
		TestFilter:    config.TestFilter,
		TestExclude:   config.TestExclude,
		ModuleExclude: config.ModuleExclude,
	})
	if err != nil {
		return nil, NewRuntimeError(err)
	}
	if err := reg.Discover(ctx); err != nil {
		return nil, NewRuntimeError(err)
	}

	s := &Service{config: config, registry: reg}
	if config.List {
		return s, nil
	}

	tests, skipped := reg.CountTests()
	if tests+skipped == 0 {
		return nil, NewRuntimeError(fmt.Errorf("no test to run under %s", config.Path))
	}
	config.Log.Info("Discovered tests", "modules", len(reg.Modules()), "tests", tests, "skipped", skipped)

	executor := runner.NewExecutor(runner.ExecutorConfig{
		Log:     config.Log,
		Interp:  interpCfg,
		Timeout: config.Timeout,
	})
	testRunner, err := runner.NewRunner(runner.Config{
		Modules:  reg.Modules(),
		Executor: executor,
		Workers:  config.Threads,
		Log:      config.Log,
	})
	if err != nil {
		return nil, NewRuntimeError(err)
	}
	s.runner = testRunner

	return s, nil
}

// Start runs the suite once, or periodically when a run interval is
// configured. Under --list it prints the discovered test table and executes
// nothing.
func (s *Service) Start(ctx context.Context) error {
	if s.config.List {
		reporting.PrintList(os.Stdout, s.registry.Modules())
		return nil
	}

	if s.config.RunOnce {
		s.config.Log.Info("Starting nutest in run-once mode")
		return s.runTests(ctx)
	}

	s.config.Log.Info("Starting nutest in continuous mode", "interval", s.config.RunInterval)
	sched := NewScheduler(s.config.RunInterval, s.config.Log)
	sched.RegisterCallback(func() error {
		if err := s.runTests(ctx); err != nil {
			// In continuous mode a failing run is logged and the next run
			// still happens.
			s.config.Log.Error("Suite run failed", "error", err)
		}
		return nil
	})
	if err := sched.Start(ctx); err != nil {
		return NewRuntimeError(err)
	}

	<-ctx.Done()
	sched.Stop()
	return sched.WaitForShutdown(context.Background())
}

// Result returns the most recent run result.
func (s *Service) Result() *runner.RunResult {
	return s.result
}

// runTests executes the suite and post-processes the fully materialized
// result set.
func (s *Service) runTests(ctx context.Context) error {
	result, err := s.runner.RunAll(ctx)
	if err != nil {
		return NewRuntimeError(err)
	}
	s.result = result

	metrics.RecordRun(result.RunID, result.Status, result.Stats.Passed, result.Stats.Failed, result.Duration)

	reporting.PrintSummary(os.Stdout, result)

	rows := result.FlattenResults()
	if reporting.HasFailures(rows) {
		reporting.PrintReport(os.Stdout, rows)
		return NewTestFailureError(reporting.FormatReport(rows))
	}
	return nil
}
