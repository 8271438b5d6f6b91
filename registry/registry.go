// Package registry discovers test modules under a directory tree and applies
// name and pattern filters to them.
package registry

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/nushell-tools/nutest/scanner"
	"github.com/nushell-tools/nutest/types"
)

// moduleExt is the file extension of candidate module files.
const moduleExt = ".nu"

// Registry manages discovered test modules.
type Registry struct {
	config  Config
	modules []types.ModuleDescriptor
	mu      sync.RWMutex

	testFilter    *regexp.Regexp
	testExclude   *regexp.Regexp
	moduleExclude *regexp.Regexp
}

// Config contains registry configuration.
type Config struct {
	Log     log.Logger
	Scanner scanner.Lister

	Root          string // directory tree to search
	Module        string // exact module basename filter, empty for all
	TestFilter    string // include pattern applied to test names
	TestExclude   string // exclude pattern applied to test names
	ModuleExclude string // exclude pattern applied to module names
}

// NewRegistry creates a new registry instance. The root directory must exist;
// a missing path is a fatal discovery error.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Scanner == nil {
		return nil, fmt.Errorf("scanner is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("test path %q not found: %w", cfg.Root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("test path %q is not a directory", cfg.Root)
	}

	r := &Registry{config: cfg}
	if r.testFilter, err = compilePattern(cfg.TestFilter); err != nil {
		return nil, fmt.Errorf("invalid --test pattern: %w", err)
	}
	if r.testExclude, err = compilePattern(cfg.TestExclude); err != nil {
		return nil, fmt.Errorf("invalid --exclude pattern: %w", err)
	}
	if r.moduleExclude, err = compilePattern(cfg.ModuleExclude); err != nil {
		return nil, fmt.Errorf("invalid --exclude-module pattern: %w", err)
	}

	return r, nil
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile(pattern)
}

// Discover walks the root, scans every candidate file and builds the filtered
// module set. Scan failures propagate; they are never treated as "no tests".
func (r *Registry) Discover(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	files, err := r.findModuleFiles()
	if err != nil {
		return fmt.Errorf("enumerating module files: %w", err)
	}

	var modules []types.ModuleDescriptor
	for _, file := range files {
		annotated, err := r.config.Scanner.ListAnnotatedFunctions(ctx, file)
		if err != nil {
			return fmt.Errorf("scanning %s: %w", file, err)
		}

		name := strings.TrimSuffix(filepath.Base(file), moduleExt)
		record, err := BuildRecord(name, annotated)
		if err != nil {
			return err
		}
		if record.IsEmpty() {
			// Not every script file is a test file.
			r.config.Log.Debug("Module has no tests, dropping", "file", file)
			continue
		}

		if r.moduleExclude != nil && r.moduleExclude.MatchString(name) {
			r.config.Log.Debug("Module excluded by pattern", "module", name)
			continue
		}

		record.Tests = r.filterTests(record.Tests)
		record.Skipped = r.filterTests(record.Skipped)
		if record.IsEmpty() {
			r.config.Log.Debug("Module empty after test filters, dropping", "module", name)
			continue
		}

		modules = append(modules, types.ModuleDescriptor{
			File:   file,
			Name:   name,
			Record: record,
		})
	}

	sort.Slice(modules, func(i, j int) bool { return modules[i].File < modules[j].File })
	r.modules = modules

	r.config.Log.Debug("Discovery complete", "len(modules)", len(modules))
	return nil
}

// findModuleFiles enumerates candidate files under the root, honoring the
// exact module-name filter when set.
func (r *Registry) findModuleFiles() ([]string, error) {
	wantBase := ""
	if r.config.Module != "" {
		wantBase = r.config.Module + moduleExt
	}

	var files []string
	err := filepath.WalkDir(r.config.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), moduleExt) {
			return nil
		}
		if wantBase != "" && d.Name() != wantBase {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// filterTests applies the include pattern, then the exclude pattern,
// preserving order.
func (r *Registry) filterTests(names []string) []string {
	var kept []string
	for _, name := range names {
		if r.testFilter != nil && !r.testFilter.MatchString(name) {
			continue
		}
		if r.testExclude != nil && r.testExclude.MatchString(name) {
			continue
		}
		kept = append(kept, name)
	}
	return kept
}

// Modules returns the discovered module descriptors.
func (r *Registry) Modules() []types.ModuleDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modules
}

// CountTests returns the total number of runnable and skipped tests.
func (r *Registry) CountTests() (tests int, skipped int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.modules {
		tests += len(m.Record.Tests)
		skipped += len(m.Record.Skipped)
	}
	return tests, skipped
}

// BuildRecord groups scanner output into a module's canonical test record.
// A second candidate for any single-valued slot is a configuration error,
// not a silent pick.
func BuildRecord(module string, annotated []types.AnnotatedFunction) (types.TestRecord, error) {
	var record types.TestRecord

	setSlot := func(slot *string, fn types.AnnotatedFunction) error {
		if *slot != "" {
			return fmt.Errorf("module %s declares both %q and %q as %s; at most one is allowed",
				module, *slot, fn.Name, fn.Kind)
		}
		*slot = fn.Name
		return nil
	}

	for _, fn := range annotated {
		var err error
		switch fn.Kind {
		case types.AnnotationTest:
			record.Tests = append(record.Tests, fn.Name)
		case types.AnnotationTestSkip:
			record.Skipped = append(record.Skipped, fn.Name)
		case types.AnnotationBeforeEach:
			err = setSlot(&record.BeforeEach, fn)
		case types.AnnotationBeforeAll:
			err = setSlot(&record.BeforeAll, fn)
		case types.AnnotationAfterEach:
			err = setSlot(&record.AfterEach, fn)
		case types.AnnotationAfterAll:
			err = setSlot(&record.AfterAll, fn)
		default:
			return types.TestRecord{}, fmt.Errorf("module %s: unknown annotation kind %q", module, fn.Kind)
		}
		if err != nil {
			return types.TestRecord{}, err
		}
	}

	return record, nil
}
