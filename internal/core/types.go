package core

import (
	"fmt"
	"time"
)

// CheckType identifies the kind of validation check.
type CheckType string

const (
	CheckTypeRank      CheckType = "rank"
	CheckTypeBlocklist CheckType = "blocklist"
	CheckTypeHandle    CheckType = "handle"
)

// Entry is one directory record under review in a pull request.
type Entry struct {
	File              string   `json:"file"`
	Domain            string   `json:"domain"`
	AdditionalDomains []string `json:"additional_domains,omitempty"`
	ContactHandle     string   `json:"contact_handle,omitempty"`
}

// Outcome is the result of a single check invocation.
//
// Expected domain conditions (unranked, blocklisted, missing handle) are
// failures, never errors.
type Outcome struct {
	Passed bool   `json:"passed"`
	Value  string `json:"value,omitempty"`

	// Skipped marks a pass caused by an upstream soft failure.
	Skipped bool `json:"skipped,omitempty"`

	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`

	// Advisory failures need manual review and are never attributed to the entry.
	Advisory bool `json:"advisory,omitempty"`
}

// Success returns a passing outcome carrying an optional display value.
func Success(value string) Outcome {
	return Outcome{Passed: true, Value: value}
}

// Skipped returns a passing outcome for an upstream soft failure.
func Skipped(reason string) Outcome {
	return Outcome{Passed: true, Skipped: true, Message: reason}
}

// Failure returns a failing outcome.
func Failure(title, message string) Outcome {
	return Outcome{Title: title, Message: message}
}

// ReviewRequired returns an advisory failure.
func ReviewRequired(title, message string) Outcome {
	return Outcome{Title: title, Message: message, Advisory: true}
}

// LogKind classifies a log line.
type LogKind int

const (
	LogMessage LogKind = iota
	LogWarning
	LogError
)

func (k LogKind) String() string {
	switch k {
	case LogWarning:
		return "warning"
	case LogError:
		return "error"
	default:
		return "message"
	}
}

// LogEntry is one line of validation output.
type LogEntry struct {
	Kind  LogKind `json:"-"`
	Check string  `json:"check,omitempty"`
	File  string  `json:"file,omitempty"`
	Title string  `json:"title,omitempty"`
	Text  string  `json:"text"`
}

// String renders the entry in the CI annotation format.
func (e LogEntry) String() string {
	switch e.Kind {
	case LogWarning:
		return fmt.Sprintf("::warning file=%s,title=%s::%s", e.File, e.Title, e.Text)
	case LogError:
		return fmt.Sprintf("::error file=%s,title=%s::%s", e.File, e.Title, e.Text)
	default:
		return fmt.Sprintf("%s: %s", e.Check, e.Text)
	}
}

// EntryState tracks an entry through validation.
type EntryState string

const (
	EntryPending EntryState = "pending"
	EntryRunning EntryState = "running"
	EntryDone    EntryState = "done"
)

// EntryReport summarizes validation of one entry.
type EntryReport struct {
	File     string     `json:"file"`
	Domain   string     `json:"domain"`
	State    EntryState `json:"state"`
	Errors   int        `json:"errors"`
	Warnings int        `json:"warnings"`
	Faults   int        `json:"faults,omitempty"`
}

// RunResult captures one pipeline run.
type RunResult struct {
	ID          string        `json:"id"`
	Repository  string        `json:"repository"`
	PullRequest int           `json:"pull_request"`
	Entries     []EntryReport `json:"entries"`
	Log         []LogEntry    `json:"log"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// Faults returns the number of recovered check faults across entries.
func (r *RunResult) Faults() int {
	if r == nil {
		return 0
	}
	total := 0
	for _, entry := range r.Entries {
		total += entry.Faults
	}
	return total
}
