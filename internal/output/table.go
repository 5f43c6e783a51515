package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/namelens/entryguard/internal/core"
	"github.com/namelens/entryguard/internal/core/report"
)

// TableFormatter renders results as ASCII tables.
type TableFormatter struct{}

// FormatRun renders one table of entries and one of log lines.
func (f *TableFormatter) FormatRun(result *core.RunResult, runErr error) (string, error) {
	if runErr != nil {
		return report.Build(result, runErr).Body, nil
	}
	if result == nil {
		return "", nil
	}

	entries := table.NewWriter()
	entries.SetStyle(table.StyleRounded)
	entries.SetTitle(runTitle(result))
	entries.AppendHeader(table.Row{"File", "Domain", "Errors", "Warnings", "Status"})
	for _, entry := range result.Entries {
		entries.AppendRow(table.Row{entry.File, entry.Domain, entry.Errors, entry.Warnings, entryStatus(entry)})
	}

	summary := report.Summarize(result)
	entries.AppendFooter(table.Row{"", "", summary.Errors, summary.Warnings, verdict(summary)})

	rendered := entries.Render()
	if len(result.Log) == 0 {
		return rendered, nil
	}

	lines := table.NewWriter()
	lines.SetStyle(table.StyleRounded)
	lines.AppendHeader(table.Row{"Level", "Check", "File", "Detail"})
	for _, line := range result.Log {
		lines.AppendRow(table.Row{line.Kind.String(), line.Check, line.File, lineDetail(line)})
	}

	return rendered + "\n" + lines.Render(), nil
}

func runTitle(result *core.RunResult) string {
	if result.Repository == "" {
		return "Validation"
	}
	return fmt.Sprintf("%s#%d", result.Repository, result.PullRequest)
}

func entryStatus(entry core.EntryReport) string {
	switch {
	case entry.Faults > 0:
		return "fault"
	case entry.Errors > 0:
		return "rejected"
	case entry.Warnings > 0:
		return "warnings"
	default:
		return "ok"
	}
}

func verdict(summary report.Summary) string {
	switch {
	case summary.Faults > 0:
		return "FAULT"
	case summary.Passed():
		return "PASS"
	default:
		return "FAIL"
	}
}

func lineDetail(line core.LogEntry) string {
	if line.Title == "" {
		return line.Text
	}
	return strings.TrimSpace(line.Title + ": " + line.Text)
}
