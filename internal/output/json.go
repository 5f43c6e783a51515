package output

import (
	"encoding/json"

	"github.com/namelens/entryguard/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatRun renders a run as a JSON Document.
func (f *JSONFormatter) FormatRun(result *core.RunResult, runErr error) (string, error) {
	doc := NewDocument(result, runErr)

	var (
		data []byte
		err  error
	)
	if f.Indent {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
