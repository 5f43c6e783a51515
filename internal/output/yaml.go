package output

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/namelens/entryguard/internal/core"
)

// YAMLFormatter renders results as YAML.
type YAMLFormatter struct{}

// FormatRun renders a run as a YAML Document.
func (f *YAMLFormatter) FormatRun(result *core.RunResult, runErr error) (string, error) {
	var sb strings.Builder
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(NewDocument(result, runErr)); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
