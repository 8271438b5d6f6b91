package nutest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/nushell-tools/nutest/flags"
)

// Config holds the application configuration
type Config struct {
	Path          string        // root of the test tree
	Module        string        // exact module name filter
	TestFilter    string        // test-name include pattern
	TestExclude   string        // test-name exclude pattern
	ModuleExclude string        // module-name exclude pattern
	List          bool          // list discovered tests instead of running
	Threads       int           // requested worker count
	Plugins       []string      // interpreter plugin registry paths
	NuBinary      string        // path to the nu binary
	Timeout       time.Duration // per-test timeout
	RunInterval   time.Duration // interval between runs in continuous mode
	RunOnce       bool          // exit after one run
	Serve         bool          // expose healthz/metrics endpoints
	Log           log.Logger
}

// suiteDefaults is the shape of the optional yaml suite file. Values apply
// only where the corresponding flag was not set explicitly.
type suiteDefaults struct {
	Plugins       []string `yaml:"plugins"`
	Threads       int      `yaml:"threads"`
	Test          string   `yaml:"test"`
	Exclude       string   `yaml:"exclude"`
	ExcludeModule string   `yaml:"exclude-module"`
	Timeout       string   `yaml:"timeout"` // duration string, e.g. "90s"
	NuBinary      string   `yaml:"nu-binary"`
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, logger log.Logger) (*Config, error) {
	path := ctx.String(flags.Path.Name)
	if path == "" {
		path = "."
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for test directory %q: %w", path, err)
	}

	cfg := &Config{
		Path:          absPath,
		Module:        ctx.String(flags.Module.Name),
		TestFilter:    ctx.String(flags.Test.Name),
		TestExclude:   ctx.String(flags.Exclude.Name),
		ModuleExclude: ctx.String(flags.ExcludeModule.Name),
		List:          ctx.Bool(flags.List.Name),
		Threads:       ctx.Int(flags.Threads.Name),
		Plugins:       ctx.StringSlice(flags.Plugins.Name),
		NuBinary:      ctx.String(flags.NuBinary.Name),
		Timeout:       ctx.Duration(flags.Timeout.Name),
		RunInterval:   ctx.Duration(flags.RunInterval.Name),
		Serve:         ctx.Bool(flags.Serve.Name),
		Log:           logger,
	}
	cfg.RunOnce = cfg.RunInterval == 0

	if suitePath := ctx.String(flags.SuiteConfig.Name); suitePath != "" {
		if err := cfg.applySuiteDefaults(ctx, suitePath); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// applySuiteDefaults fills in values from the yaml suite file for flags the
// user did not set on the command line.
func (c *Config) applySuiteDefaults(ctx *cli.Context, path string) error {
	c.Log.Debug("Reading suite config file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading suite config file: %w", err)
	}
	var defaults suiteDefaults
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return fmt.Errorf("parsing suite config file: %w", err)
	}

	if !ctx.IsSet(flags.Plugins.Name) && len(defaults.Plugins) > 0 {
		c.Plugins = defaults.Plugins
	}
	if !ctx.IsSet(flags.Threads.Name) && defaults.Threads != 0 {
		c.Threads = defaults.Threads
	}
	if !ctx.IsSet(flags.Test.Name) && defaults.Test != "" {
		c.TestFilter = defaults.Test
	}
	if !ctx.IsSet(flags.Exclude.Name) && defaults.Exclude != "" {
		c.TestExclude = defaults.Exclude
	}
	if !ctx.IsSet(flags.ExcludeModule.Name) && defaults.ExcludeModule != "" {
		c.ModuleExclude = defaults.ExcludeModule
	}
	if !ctx.IsSet(flags.Timeout.Name) && defaults.Timeout != "" {
		timeout, err := time.ParseDuration(defaults.Timeout)
		if err != nil {
			return fmt.Errorf("parsing suite config file: invalid timeout %q: %w", defaults.Timeout, err)
		}
		c.Timeout = timeout
	}
	if !ctx.IsSet(flags.NuBinary.Name) && defaults.NuBinary != "" {
		c.NuBinary = defaults.NuBinary
	}
	return nil
}
