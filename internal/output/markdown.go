package output

import (
	"fmt"
	"strings"

	"github.com/namelens/entryguard/internal/core"
	"github.com/namelens/entryguard/internal/core/report"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// FormatRun renders a run as Markdown suitable for a PR comment.
func (f *MarkdownFormatter) FormatRun(result *core.RunResult, runErr error) (string, error) {
	var sb strings.Builder

	if runErr != nil {
		sb.WriteString("## Validation aborted\n\n")
		sb.WriteString(fmt.Sprintf("%s: %s\n", report.DiscoveryFailedTitle, escapeMarkdownCell(runErr.Error())))
		return sb.String(), nil
	}
	if result == nil {
		return "", nil
	}

	summary := report.Summarize(result)
	sb.WriteString(fmt.Sprintf("## %s %s\n\n", escapeMarkdownCell(runTitle(result)), verdict(summary)))

	if len(result.Log) > 0 {
		sb.WriteString("| Level | Check | File | Detail |\n")
		sb.WriteString("|-------|-------|------|--------|\n")
		for _, line := range result.Log {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				line.Kind.String(),
				escapeMarkdownCell(line.Check),
				escapeMarkdownCell(line.File),
				escapeMarkdownCell(lineDetail(line)),
			))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("**Entries**: %d, **errors**: %d, **warnings**: %d\n",
		summary.Entries, summary.Errors, summary.Warnings))
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
