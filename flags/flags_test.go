package flags

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// TestUniqueFlags asserts that no flag name or env var is registered twice.
func TestUniqueFlags(t *testing.T) {
	seenNames := make(map[string]bool)
	seenEnvVars := make(map[string]bool)
	for _, flag := range Flags {
		name := flag.Names()[0]
		assert.False(t, seenNames[name], "duplicate flag name %s", name)
		seenNames[name] = true

		envFlag, ok := flag.(interface{ GetEnvVars() []string })
		require.True(t, ok, "flag %s has no env vars", name)
		for _, envVar := range envFlag.GetEnvVars() {
			assert.False(t, seenEnvVars[envVar], "duplicate env var %s", envVar)
			seenEnvVars[envVar] = true
		}
	}
}

// TestEnvVarFormat asserts every env var carries the application prefix and
// uppercase spelling.
func TestEnvVarFormat(t *testing.T) {
	for _, flag := range Flags {
		envFlag, ok := flag.(interface{ GetEnvVars() []string })
		require.True(t, ok)
		for _, envVar := range envFlag.GetEnvVars() {
			assert.True(t, strings.HasPrefix(envVar, EnvVarPrefix+"_"),
				"env var %s does not start with %s_", envVar, EnvVarPrefix)
			assert.Equal(t, strings.ToUpper(envVar), envVar, "env var %s is not uppercase", envVar)
		}
	}
}

func TestFlagsHaveUsage(t *testing.T) {
	for _, flag := range Flags {
		docFlag, ok := flag.(cli.DocGenerationFlag)
		require.True(t, ok)
		assert.NotEmpty(t, docFlag.GetUsage(), "flag %s has no usage text", flag.Names()[0])
	}
}
