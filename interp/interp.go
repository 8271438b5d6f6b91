// Package interp builds invocations of the Nushell interpreter. The runner
// depends on the interpreter only through this boundary: a flag to disable
// ambient user configuration, a fixed plugin list, a literal script string,
// and the process exit code plus captured stdout/stderr.
package interp

import (
	"context"
	"os/exec"
	"strings"
)

// DefaultBinary is the interpreter executable used when none is configured.
const DefaultBinary = "nu"

// Config describes how interpreter subprocesses are spawned.
type Config struct {
	Binary  string   // path to the nu binary
	Plugins []string // plugin registry paths passed to every invocation
}

// Command returns an exec.Cmd that runs script in a fresh, unconfigured
// interpreter process. The caller owns stdout/stderr wiring and Run.
func (c Config) Command(ctx context.Context, script string) *exec.Cmd {
	binary := c.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	args := []string{"--no-config-file"}
	if len(c.Plugins) > 0 {
		args = append(args, "--plugins", PluginList(c.Plugins))
	}
	args = append(args, "--commands", script)
	return exec.CommandContext(ctx, binary, args...)
}

// PluginList renders plugin paths as a nushell list literal.
func PluginList(paths []string) string {
	quoted := make([]string, len(paths))
	for i, p := range paths {
		quoted[i] = QuoteLiteral(p)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// QuoteLiteral quotes s as a nushell raw string. Raw strings are the only
// quoting form with no escape processing, so arbitrary file paths survive
// embedding in generated source. The hash fence grows until it does not
// occur in s.
func QuoteLiteral(s string) string {
	fence := "#"
	for strings.Contains(s, "'"+fence) {
		fence += "#"
	}
	return "r" + fence + "'" + s + "'" + fence
}
