package output

import (
	"time"

	"github.com/namelens/entryguard/internal/core"
	"github.com/namelens/entryguard/internal/core/report"
)

// Document is the structured form of a run used by the JSON and YAML formats.
type Document struct {
	ID          string          `json:"id,omitempty" yaml:"id,omitempty"`
	Repository  string          `json:"repository,omitempty" yaml:"repository,omitempty"`
	PullRequest int             `json:"pull_request,omitempty" yaml:"pull_request,omitempty"`
	Status      int             `json:"status" yaml:"status"`
	Passed      bool            `json:"passed" yaml:"passed"`
	Error       string          `json:"error,omitempty" yaml:"error,omitempty"`
	Summary     report.Summary  `json:"summary" yaml:"summary"`
	Entries     []DocumentEntry `json:"entries" yaml:"entries"`
	Lines       []DocumentLine  `json:"lines" yaml:"lines"`
	StartedAt   *time.Time      `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Duration    string          `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// DocumentEntry reports one validated entry.
type DocumentEntry struct {
	File     string `json:"file" yaml:"file"`
	Domain   string `json:"domain" yaml:"domain"`
	Errors   int    `json:"errors" yaml:"errors"`
	Warnings int    `json:"warnings" yaml:"warnings"`
	Faults   int    `json:"faults,omitempty" yaml:"faults,omitempty"`
}

// DocumentLine is one log line with its annotation rendering.
type DocumentLine struct {
	Kind       string `json:"kind" yaml:"kind"`
	Check      string `json:"check,omitempty" yaml:"check,omitempty"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	Title      string `json:"title,omitempty" yaml:"title,omitempty"`
	Text       string `json:"text" yaml:"text"`
	Annotation string `json:"annotation" yaml:"annotation"`
}

// NewDocument builds the structured form of result.
func NewDocument(result *core.RunResult, runErr error) Document {
	resp := report.Build(result, runErr)
	summary := report.Summarize(result)

	doc := Document{
		Status:  resp.Status,
		Passed:  runErr == nil && summary.Passed() && summary.Faults == 0,
		Summary: summary,
		Entries: []DocumentEntry{},
		Lines:   []DocumentLine{},
	}
	if runErr != nil {
		doc.Error = runErr.Error()
	}
	if result == nil {
		return doc
	}

	doc.ID = result.ID
	doc.Repository = result.Repository
	doc.PullRequest = result.PullRequest
	if !result.StartedAt.IsZero() {
		started := result.StartedAt
		doc.StartedAt = &started
		if !result.CompletedAt.IsZero() {
			doc.Duration = result.CompletedAt.Sub(result.StartedAt).Round(time.Millisecond).String()
		}
	}

	for _, entry := range result.Entries {
		doc.Entries = append(doc.Entries, DocumentEntry{
			File:     entry.File,
			Domain:   entry.Domain,
			Errors:   entry.Errors,
			Warnings: entry.Warnings,
			Faults:   entry.Faults,
		})
	}
	if runErr == nil {
		for _, line := range result.Log {
			doc.Lines = append(doc.Lines, DocumentLine{
				Kind:       line.Kind.String(),
				Check:      line.Check,
				File:       line.File,
				Title:      line.Title,
				Text:       line.Text,
				Annotation: line.String(),
			})
		}
	}
	return doc
}
