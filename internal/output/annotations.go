package output

import (
	"github.com/namelens/entryguard/internal/core"
	"github.com/namelens/entryguard/internal/core/report"
)

// AnnotationFormatter renders the same body the HTTP endpoint returns.
type AnnotationFormatter struct{}

// FormatRun renders result as annotation lines.
func (f *AnnotationFormatter) FormatRun(result *core.RunResult, runErr error) (string, error) {
	return report.Build(result, runErr).Body, nil
}
