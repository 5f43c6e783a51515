package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/namelens/entryguard/internal/output"
)

// sinkTarget describes where a command writes what it renders: --out names a
// file, --out-dir a directory that receives <name>.<ext>, neither means stdout.
type sinkTarget struct {
	out    string
	outDir string
	name   string
	format output.Format
}

// sink is an opened sinkTarget.
type sink struct {
	io.Writer
	path   string
	closer func() error
}

func (s *sink) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}

func (t sinkTarget) path() (string, error) {
	out, dir := strings.TrimSpace(t.out), strings.TrimSpace(t.outDir)
	switch {
	case out != "" && dir != "":
		return "", errors.New("--out and --out-dir are mutually exclusive")
	case dir == "":
		return out, nil
	}

	// #nosec G301 -- report directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return filepath.Join(dir, sanitizeFilename(t.name)+"."+outputExtension(t.format)), nil
}

func (t sinkTarget) open() (*sink, error) {
	path, err := t.path()
	if err != nil {
		return nil, err
	}
	if path == "" || path == "-" {
		return &sink{Writer: os.Stdout, path: "-"}, nil
	}

	// #nosec G301 -- report directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(path) // #nosec G304 -- path comes from the operator's flags
	if err != nil {
		return nil, err
	}
	return &sink{Writer: file, path: path, closer: file.Close}, nil
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func outputExtension(format output.Format) string {
	switch format {
	case output.FormatJSON:
		return "json"
	case output.FormatYAML:
		return "yaml"
	case output.FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// sanitizeFilename lowercases value and collapses anything unsafe to '-'.
func sanitizeFilename(value string) string {
	clean := unsafeFilenameChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "-")
	if clean = strings.Trim(clean, "-."); clean == "" {
		return "output"
	}
	return clean
}
