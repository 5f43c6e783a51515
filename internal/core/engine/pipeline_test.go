package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/namelens/entryguard/internal/core"
	"github.com/namelens/entryguard/internal/core/annotate"
)

type stubDiscoverer struct {
	entries []core.Entry
	err     error
	calls   int
}

func (s *stubDiscoverer) Discover(context.Context, string, int) ([]core.Entry, error) {
	s.calls++
	return s.entries, s.err
}

func TestPipelineRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	discoverer := &stubDiscoverer{entries: []core.Entry{{File: "entries/e/example.com.json", Domain: "example.com"}}}
	blocklist := &stubChecker{name: "Blocklist", outcomes: map[string]core.Outcome{
		"example.com": {Passed: true, Message: "example.com not found in any list"},
	}}
	pipeline := &Pipeline{
		Discoverer:   discoverer,
		Orchestrator: newOrchestrator(&stubChecker{name: "SimilarWeb"}, blocklist, nil),
		Clock:        func() time.Time { return now },
	}

	result, err := pipeline.Run(context.Background(), "directory", 7)
	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "directory", result.Repository)
	assert.Equal(t, 7, result.PullRequest)
	assert.Equal(t, now, result.StartedAt)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, []string{"Blocklist: example.com not found in any list"}, annotate.Lines(result.Log))
}

func TestPipelineRunsDoNotShareLines(t *testing.T) {
	defer goleak.VerifyNone(t)

	discoverer := &stubDiscoverer{entries: []core.Entry{{File: "f.json", Domain: "example.com"}}}
	blocklist := &stubChecker{name: "Blocklist", outcomes: map[string]core.Outcome{
		"example.com": {Passed: true, Message: "example.com not found in any list"},
	}}
	pipeline := &Pipeline{Discoverer: discoverer, Orchestrator: newOrchestrator(nil, blocklist, nil)}

	first, err := pipeline.Run(context.Background(), "directory", 1)
	require.NoError(t, err)
	second, err := pipeline.Run(context.Background(), "directory", 1)
	require.NoError(t, err)

	assert.Len(t, first.Log, 1)
	assert.Len(t, second.Log, 1)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestPipelineDiscoveryFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	rank := &stubChecker{name: "SimilarWeb"}
	discoverer := &stubDiscoverer{err: errors.New("github unavailable")}
	pipeline := &Pipeline{Discoverer: discoverer, Orchestrator: newOrchestrator(rank, nil, nil)}

	result, err := pipeline.Run(context.Background(), "directory", 3)
	require.EqualError(t, err, "github unavailable")
	require.NotNil(t, result)
	assert.Empty(t, result.Log)
	assert.Empty(t, rank.targets())
}

func TestPipelineNotConfigured(t *testing.T) {
	_, err := (&Pipeline{}).Run(context.Background(), "directory", 1)
	require.Error(t, err)
}
