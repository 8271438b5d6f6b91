package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	nutest "github.com/nushell-tools/nutest"
	"github.com/nushell-tools/nutest/exitcodes"
	"github.com/nushell-tools/nutest/flags"
	"github.com/nushell-tools/nutest/service"
)

var (
	Version   = "v0.2.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "nutest"
	app.Usage = "Annotation-driven test runner for Nushell modules"
	app.Description = "nutest discovers annotated tests in .nu modules and runs each one in an isolated interpreter process"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			if nutest.IsRuntimeError(err) {
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
			} else {
				// Test failures and anything unspecified exit with code 1.
				cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
			}
		}
	}

	// Telemetry is best-effort; a missing collector must not break a test run.
	shutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Warn("Failed to set up open telemetry", "error", err)
	} else {
		defer shutdown()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		// The exit error handler has already mapped the exit code; reaching
		// this point means it declined to exit.
		log.Crit("Application failed", "message", err)
	}
}

func run(ctx *cli.Context) error {
	logger, err := setupLogger(ctx)
	if err != nil {
		return nutest.NewRuntimeError(err)
	}

	cfg, err := nutest.NewConfig(ctx, logger)
	if err != nil {
		return nutest.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	cfg.Log.Debug("Config", "path", cfg.Path, "threads", cfg.Threads, "list", cfg.List)

	if cfg.Serve {
		svc := service.New()
		svc.Start(ctx.Context)
		defer svc.Shutdown()
	}

	runnerService, err := nutest.New(ctx.Context, cfg)
	if err != nil {
		return err
	}
	return runnerService.Start(ctx.Context)
}

func setupLogger(ctx *cli.Context) (log.Logger, error) {
	lvl, err := log.LvlFromString(ctx.String(flags.LogLevel.Name))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, lvl, false)
	logger := log.NewLogger(handler)
	log.SetDefault(logger)
	return logger, nil
}
