package output

import (
	"fmt"
	"strings"

	"github.com/namelens/entryguard/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatAnnotations Format = "annotations"
	FormatTable       Format = "table"
	FormatJSON        Format = "json"
	FormatYAML        Format = "yaml"
	FormatMarkdown    Format = "markdown"
)

// Formatter renders a validation run. runErr is the error that aborted the
// run, if any.
type Formatter interface {
	FormatRun(result *core.RunResult, runErr error) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatAnnotations):
		return FormatAnnotations, nil
	case string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatTable:
		return &TableFormatter{}
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &AnnotationFormatter{}
	}
}
