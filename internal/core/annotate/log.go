// Package annotate accumulates the human-readable lines produced by one
// validation run. A Log is owned by a single run: the orchestrator writes to
// it and the report builder drains it.
package annotate

import (
	"sync"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/namelens/entryguard/internal/core"
)

// Log is an append-only, concurrency-safe sequence of log entries.
type Log struct {
	mu      sync.Mutex
	entries []core.LogEntry

	// Logger mirrors every appended line at debug level when set.
	Logger *logging.Logger
}

// New returns an empty log mirrored to logger (which may be nil).
func New(logger *logging.Logger) *Log {
	return &Log{Logger: logger}
}

// Message appends an informational line for check.
func (l *Log) Message(check, text string) {
	l.append(core.LogEntry{Kind: core.LogMessage, Check: check, Text: text})
}

// Warning appends a warning annotation attributed to file.
func (l *Log) Warning(file, title, text string) {
	l.append(core.LogEntry{Kind: core.LogWarning, File: file, Title: title, Text: text})
}

// Error appends an error annotation attributed to file.
func (l *Log) Error(file, title, text string) {
	l.append(core.LogEntry{Kind: core.LogError, File: file, Title: title, Text: text})
}

// Entries returns a snapshot of the log in insertion order.
func (l *Log) Entries() []core.LogEntry {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]core.LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Lines renders the current entries in annotation format.
func (l *Log) Lines() []string {
	return Lines(l.Entries())
}

// Drain returns all entries and empties the log.
func (l *Log) Drain() []core.LogEntry {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.entries
	l.entries = nil
	return out
}

// Len reports the number of entries currently held.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Lines renders entries in annotation format.
func Lines(entries []core.LogEntry) []string {
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, entry.String())
	}
	return lines
}

func (l *Log) append(entry core.LogEntry) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	if l.Logger != nil {
		l.Logger.Debug(entry.String(),
			zap.String("kind", entry.Kind.String()),
			zap.String("file", entry.File))
	}
}
