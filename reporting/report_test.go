package reporting

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nushell-tools/nutest/runner"
	"github.com/nushell-tools/nutest/types"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func row(module, test string, status types.TestStatus) *types.TestResult {
	return &types.TestResult{Module: module, Test: test, Status: status}
}

func TestStatusGlyph(t *testing.T) {
	assert.Equal(t, "✓", statusGlyph(types.TestStatusPass))
	assert.Equal(t, "✗", statusGlyph(types.TestStatusFail))
	assert.Equal(t, "-", statusGlyph(types.TestStatusSkip))
}

func TestFormatRow(t *testing.T) {
	assert.Equal(t, "  ✓ orders creates order", FormatRow(row("orders", "creates order", types.TestStatusPass)))
	assert.Equal(t, "  ✗ orders rejects empty cart", FormatRow(row("orders", "rejects empty cart", types.TestStatusFail)))
	assert.Equal(t, "  - orders flaky payment", FormatRow(row("orders", "flaky payment", types.TestStatusSkip)))
}

func TestFormatReport(t *testing.T) {
	rows := []*types.TestResult{
		row("orders", "creates order", types.TestStatusPass),
		row("orders", "rejects empty cart", types.TestStatusFail),
		row("users", "registers user", types.TestStatusSkip),
	}

	got := FormatReport(rows)
	want := "  ✓ orders creates order\n" +
		"  ✗ orders rejects empty cart\n" +
		"  - users registers user\n"
	assert.Equal(t, want, got)
}

func TestHasFailures(t *testing.T) {
	assert.False(t, HasFailures(nil))
	assert.False(t, HasFailures([]*types.TestResult{
		row("m", "a", types.TestStatusPass),
		row("m", "b", types.TestStatusSkip),
	}))
	assert.True(t, HasFailures([]*types.TestResult{
		row("m", "a", types.TestStatusPass),
		row("m", "b", types.TestStatusFail),
	}))
}

func TestPrintReport(t *testing.T) {
	failed := row("orders", "rejects empty cart", types.TestStatusFail)
	failed.Error = fmt.Errorf("assertion failed: cart was accepted")

	var buf bytes.Buffer
	PrintReport(&buf, []*types.TestResult{
		row("orders", "creates order", types.TestStatusPass),
		failed,
	})

	out := buf.String()
	assert.Contains(t, out, "  ✓ orders creates order")
	assert.Contains(t, out, "  ✗ orders rejects empty cart")
	assert.Contains(t, out, "orders rejects empty cart: assertion failed: cart was accepted")
}

func TestPrintList(t *testing.T) {
	modules := []types.ModuleDescriptor{
		{
			File: "/suite/orders.nu",
			Name: "orders",
			Record: types.TestRecord{
				Tests:   []string{"creates order", "totals taxes"},
				Skipped: []string{"flaky payment"},
			},
		},
		{
			File:   "/suite/users.nu",
			Name:   "users",
			Record: types.TestRecord{Tests: []string{"registers user"}},
		},
	}

	render := func() string {
		var buf bytes.Buffer
		PrintList(&buf, modules)
		return buf.String()
	}

	out := render()
	assert.Contains(t, out, "Discovered Tests")
	assert.Contains(t, out, "creates order")
	assert.Contains(t, out, "flaky payment")
	assert.Contains(t, out, "registers user")
	assert.Contains(t, out, "skip")

	require.Equal(t, out, render(), "listing is stable across invocations")
}

func TestPrintSummary(t *testing.T) {
	result := &runner.RunResult{
		Modules: []runner.ModuleResult{
			{
				Module: types.ModuleDescriptor{Name: "orders"},
				Results: []*types.TestResult{
					row("orders", "creates order", types.TestStatusPass),
					row("orders", "rejects empty cart", types.TestStatusFail),
				},
			},
			{
				Module: types.ModuleDescriptor{Name: "users"},
				Results: []*types.TestResult{
					row("users", "registers user", types.TestStatusSkip),
				},
			},
		},
		Status:   types.TestStatusFail,
		Stats:    runner.ResultStats{Total: 3, Passed: 1, Failed: 1, Skipped: 1},
		Duration: 2350 * time.Millisecond,
	}

	var buf bytes.Buffer
	PrintSummary(&buf, result)

	out := buf.String()
	assert.Contains(t, out, "Test Results (2.4s)")
	assert.Contains(t, out, "orders")
	assert.Contains(t, out, "users")
	assert.Contains(t, out, "✗ fail")
	assert.Contains(t, out, "- skip")
	assert.Contains(t, out, "Total")
}
