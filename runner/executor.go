package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/nushell-tools/nutest/interp"
	"github.com/nushell-tools/nutest/types"
)

// DefaultTimeout bounds a single interpreter invocation. A hung subprocess
// must never block its worker indefinitely.
const DefaultTimeout = 5 * time.Minute

// CaseExecutor runs one isolated test invocation.
type CaseExecutor interface {
	RunCase(ctx context.Context, tc types.TestCase) (*types.TestResult, error)
}

// nuExecutor implements CaseExecutor with the process-per-test protocol: the
// test is wrapped in a synthesized function, appended to a transient copy of
// its module, and run in a freshly spawned interpreter process. OS-process
// isolation guarantees no interpreter-global state leaks between concurrently
// running tests.
type nuExecutor struct {
	interp  interp.Config
	timeout time.Duration
	log     log.Logger
}

var _ CaseExecutor = (*nuExecutor)(nil)

// ExecutorConfig holds configuration for creating a new executor.
type ExecutorConfig struct {
	Log     log.Logger
	Interp  interp.Config
	Timeout time.Duration // per-test timeout; 0 means DefaultTimeout
}

// NewExecutor creates a new test case executor.
func NewExecutor(cfg ExecutorConfig) CaseExecutor {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &nuExecutor{
		interp:  cfg.Interp,
		timeout: cfg.Timeout,
		log:     cfg.Log,
	}
}

// RunCase executes one test case. Infrastructure failures (unreadable module,
// unwritable directory) return an error; a failing test returns a fail result
// with the interpreter's stderr as diagnostic.
func (e *nuExecutor) RunCase(ctx context.Context, tc types.TestCase) (*types.TestResult, error) {
	source, err := os.ReadFile(tc.File)
	if err != nil {
		return nil, fmt.Errorf("reading module %s: %w", tc.File, err)
	}

	wrapperName := "nutest-" + randomSuffix()
	transientPath := transientModulePath(tc)

	full := string(source) + "\n\n" + wrapperSource(wrapperName, tc)
	if err := os.WriteFile(transientPath, []byte(full), 0o600); err != nil {
		return nil, fmt.Errorf("writing transient module %s: %w", transientPath, err)
	}
	// The transient file is removed on every path; only an abnormal crash of
	// the orchestrator itself can orphan one.
	defer func() {
		if err := os.Remove(transientPath); err != nil {
			e.log.Error("Failed to remove transient module", "path", transientPath, "error", err)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	script := fmt.Sprintf("use %s *; %s | to nuon", interp.QuoteLiteral(transientPath), wrapperName)
	cmd := e.interp.Command(runCtx, script)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.log.Debug("Running test case",
		"module", tc.Module,
		"test", tc.Test,
		"transient", filepath.Base(transientPath),
		"command", cmd.String())

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := &types.TestResult{
		File:     tc.File,
		Module:   tc.Module,
		Test:     tc.Test,
		Status:   types.TestStatusPass,
		Duration: duration,
		Stdout:   stdout.String(),
	}

	if runErr != nil {
		result.Status = types.TestStatusFail
		diagnostic := strings.TrimSpace(stripansi.Strip(stderr.String()))
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			result.Error = fmt.Errorf("test timed out after %v", e.timeout)
		} else if diagnostic != "" {
			result.Error = fmt.Errorf("%s", diagnostic)
		} else {
			result.Error = fmt.Errorf("interpreter exited abnormally: %v", runErr)
		}
	}

	return result, nil
}

// transientModulePath places the duplicate module beside the original so that
// relative imports in its source still resolve.
func transientModulePath(tc types.TestCase) string {
	name := fmt.Sprintf("%s-%s.nu", tc.Module, randomSuffix())
	return filepath.Join(filepath.Dir(tc.File), name)
}

// randomSuffix returns an identifier long enough that collisions between
// concurrent invocations of the same module are negligible.
func randomSuffix() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// wrapperSource synthesizes the wrapper function body: bind context, invoke
// the test with it, and run the after-each snippet on every path. When the
// test body raises, cleanup still runs and the original failure propagates
// via $err.raw.
func wrapperSource(name string, tc types.TestCase) string {
	var b strings.Builder
	fmt.Fprintf(&b, "export def %s [] {\n", name)
	fmt.Fprintf(&b, "    %s\n", tc.BeforeEachSnippet)
	b.WriteString("    try {\n")
	fmt.Fprintf(&b, "        $context | %s\n", tc.Test)
	if tc.AfterEachSnippet != "" {
		fmt.Fprintf(&b, "        %s\n", tc.AfterEachSnippet)
	}
	b.WriteString("    } catch { |err|\n")
	if tc.AfterEachSnippet != "" {
		fmt.Fprintf(&b, "        %s\n", tc.AfterEachSnippet)
	}
	b.WriteString("        $err.raw\n")
	b.WriteString("    }\n")
	b.WriteString("}\n")
	return b.String()
}
