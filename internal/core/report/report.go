// Package report turns a validation run into the response returned to CI.
package report

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/namelens/entryguard/internal/core"
)

// DiscoveryFailedTitle titles the single line emitted when a run is aborted.
const DiscoveryFailedTitle = "Entry discovery failed"

// Response is the transport-neutral outcome of a run.
type Response struct {
	Status int      `json:"status"`
	Body   string   `json:"body"`
	Lines  []string `json:"lines"`
}

// Summary counts the lines of a run by class.
type Summary struct {
	Entries  int `json:"entries"`
	Messages int `json:"messages"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
	Faults   int `json:"faults"`
}

// Passed reports whether the run produced no error lines.
func (s Summary) Passed() bool {
	return s.Errors == 0
}

// Build renders result as annotation lines in completion order.
//
// A run aborted by runErr yields 500 with one explanatory line. A run in which
// a check faulted yields 400. Otherwise the status is 200 and violations are
// carried only in the body.
func Build(result *core.RunResult, runErr error) Response {
	if runErr != nil {
		line := fmt.Sprintf("::error title=%s::%s", DiscoveryFailedTitle, singleLine(runErr.Error()))
		return Response{Status: http.StatusInternalServerError, Body: line, Lines: []string{line}}
	}

	var lines []string
	if result != nil {
		lines = make([]string, 0, len(result.Log))
		for _, entry := range result.Log {
			lines = append(lines, entry.String())
		}
	}

	status := http.StatusOK
	if result.Faults() > 0 {
		status = http.StatusBadRequest
	}

	return Response{Status: status, Body: strings.Join(lines, "\n"), Lines: lines}
}

// Summarize counts entries and lines of result.
func Summarize(result *core.RunResult) Summary {
	var summary Summary
	if result == nil {
		return summary
	}

	summary.Entries = len(result.Entries)
	summary.Faults = result.Faults()
	for _, entry := range result.Log {
		switch entry.Kind {
		case core.LogError:
			summary.Errors++
		case core.LogWarning:
			summary.Warnings++
		default:
			summary.Messages++
		}
	}
	return summary
}

func singleLine(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
