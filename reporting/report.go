// Package reporting renders discovery tables and run reports. It consumes
// fully materialized results only; nothing here runs concurrently with test
// workers.
package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/nushell-tools/nutest/runner"
	"github.com/nushell-tools/nutest/types"
)

var (
	passLine = color.New(color.FgGreen)
	failLine = color.New(color.FgRed)
	skipLine = color.New(color.FgYellow)
)

// statusGlyph returns the one-character marker for a result row.
func statusGlyph(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "✓"
	case types.TestStatusSkip:
		return "-"
	default:
		return "✗"
	}
}

// FormatRow renders one outcome line: indentation, glyph, module, test name.
func FormatRow(row *types.TestResult) string {
	line := fmt.Sprintf("  %s %s %s", statusGlyph(row.Status), row.Module, row.Test)
	switch row.Status {
	case types.TestStatusPass:
		return passLine.Sprint(line)
	case types.TestStatusSkip:
		return skipLine.Sprint(line)
	default:
		return failLine.Sprint(line)
	}
}

// FormatReport renders the per-row report for every result, one line each.
// The same text becomes the aggregate failure message when anything failed.
func FormatReport(rows []*types.TestResult) string {
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(FormatRow(row))
		b.WriteString("\n")
	}
	return b.String()
}

// HasFailures reports whether any result row failed.
func HasFailures(rows []*types.TestResult) bool {
	for _, row := range rows {
		if row.Status == types.TestStatusFail {
			return true
		}
	}
	return false
}

// PrintReport writes the per-row report followed by failure diagnostics.
func PrintReport(w io.Writer, rows []*types.TestResult) {
	fmt.Fprint(w, FormatReport(rows))
	for _, row := range rows {
		if row.Status == types.TestStatusFail && row.Error != nil {
			fmt.Fprintf(w, "\n%s %s: %v\n", row.Module, row.Test, row.Error)
		}
	}
}

// PrintList renders the discovered module table without executing anything.
// Repeated invocations on an unchanged tree print an identical table.
func PrintList(w io.Writer, modules []types.ModuleDescriptor) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Discovered Tests")
	t.AppendHeader(table.Row{"Module", "File", "Test", "Kind"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Module", AutoMerge: true},
		{Name: "File", AutoMerge: true, WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, m := range modules {
		for _, testName := range m.Record.Tests {
			t.AppendRow(table.Row{m.Name, m.File, testName, "test"})
		}
		for _, testName := range m.Record.Skipped {
			t.AppendRow(table.Row{m.Name, m.File, testName, "skip"})
		}
	}
	t.Render()
}

// PrintSummary renders the per-module statistics table for a finished run.
func PrintSummary(w io.Writer, result *runner.RunResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Test Results (%s)", formatDuration(result)))
	t.AppendHeader(table.Row{"Module", "Tests", "Passed", "Failed", "Skipped", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
	})

	for _, mr := range result.Modules {
		var passed, failed, skipped int
		for _, row := range mr.Results {
			switch row.Status {
			case types.TestStatusPass:
				passed++
			case types.TestStatusFail:
				failed++
			case types.TestStatusSkip:
				skipped++
			}
		}
		status := types.TestStatusPass
		if failed > 0 {
			status = types.TestStatusFail
		} else if passed == 0 {
			status = types.TestStatusSkip
		}
		t.AppendRow(table.Row{
			mr.Module.Name, len(mr.Results), passed, failed, skipped, getResultString(status),
		})
	}
	t.AppendFooter(table.Row{
		"Total", result.Stats.Total, result.Stats.Passed, result.Stats.Failed,
		result.Stats.Skipped, getResultString(result.Status),
	})
	t.Render()
}

// getResultString returns a glyphed string representing a status.
func getResultString(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "✓ pass"
	case types.TestStatusSkip:
		return "- skip"
	default:
		return "✗ fail"
	}
}

// formatDuration formats the run duration to seconds with 1 decimal place.
func formatDuration(result *runner.RunResult) string {
	return fmt.Sprintf("%.1fs", result.Duration.Seconds())
}
