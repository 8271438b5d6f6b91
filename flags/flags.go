package flags

import (
	"runtime"
	"time"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "NUTEST"

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	Path = &cli.StringFlag{
		Name:    "path",
		Value:   ".",
		EnvVars: prefixEnvVars("PATH"),
		Usage:   "Directory tree to search for test modules",
	}
	Module = &cli.StringFlag{
		Name:    "module",
		Value:   "",
		EnvVars: prefixEnvVars("MODULE"),
		Usage:   "Run only the module with this exact name",
	}
	Test = &cli.StringFlag{
		Name:    "test",
		Value:   "",
		EnvVars: prefixEnvVars("TEST"),
		Usage:   "Run only tests whose name matches this pattern",
	}
	Exclude = &cli.StringFlag{
		Name:    "exclude",
		Value:   "",
		EnvVars: prefixEnvVars("EXCLUDE"),
		Usage:   "Skip tests whose name matches this pattern",
	}
	ExcludeModule = &cli.StringFlag{
		Name:    "exclude-module",
		Value:   "",
		EnvVars: prefixEnvVars("EXCLUDE_MODULE"),
		Usage:   "Skip modules whose name matches this pattern",
	}
	List = &cli.BoolFlag{
		Name:    "list",
		Value:   false,
		EnvVars: prefixEnvVars("LIST"),
		Usage:   "List the discovered tests without running them",
	}
	Threads = &cli.IntFlag{
		Name:    "threads",
		Value:   runtime.NumCPU(),
		EnvVars: prefixEnvVars("THREADS"),
		Usage:   "Number of test workers (clamped to the number of logical CPUs)",
	}
	Plugins = &cli.StringSliceFlag{
		Name:    "plugins",
		EnvVars: prefixEnvVars("PLUGINS"),
		Usage:   "Plugin registry paths to load into every interpreter process",
	}
	NuBinary = &cli.StringFlag{
		Name:    "nu-binary",
		Value:   "nu",
		EnvVars: prefixEnvVars("NU_BINARY"),
		Usage:   "Path to the nu binary to use for running tests",
	}
	Timeout = &cli.DurationFlag{
		Name:    "timeout",
		Value:   5 * time.Minute,
		EnvVars: prefixEnvVars("TIMEOUT"),
		Usage:   "Per-test timeout; an expired test is killed and reported as failed",
	}
	SuiteConfig = &cli.StringFlag{
		Name:    "config",
		Value:   "",
		EnvVars: prefixEnvVars("CONFIG"),
		Usage:   "Path to a yaml file with suite defaults (eg. 'nutest.yaml')",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	Serve = &cli.BoolFlag{
		Name:    "serve",
		Value:   false,
		EnvVars: prefixEnvVars("SERVE"),
		Usage:   "Expose healthz and metrics HTTP endpoints while running",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log.level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "The lowest log level that will be output",
	}
)

var Flags = []cli.Flag{
	Path,
	Module,
	Test,
	Exclude,
	ExcludeModule,
	List,
	Threads,
	Plugins,
	NuBinary,
	Timeout,
	SuiteConfig,
	RunInterval,
	Serve,
	LogLevel,
}
