package engine

import (
	"context"
	"errors"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/namelens/entryguard/internal/core"
	"github.com/namelens/entryguard/internal/core/annotate"
	"github.com/namelens/entryguard/internal/metrics"
)

// Discoverer lists the entries touched by a pull request.
type Discoverer interface {
	Discover(ctx context.Context, repository string, pr int) ([]core.Entry, error)
}

// Pipeline ties discovery to validation for one pull request.
type Pipeline struct {
	Discoverer   Discoverer
	Orchestrator *Orchestrator
	Logger       *logging.Logger
	Clock        func() time.Time
}

// Run discovers and validates the entries of pr. Each run gets its own log,
// so repeated runs in one process never share lines. A discovery failure
// aborts the run and is returned alongside the partial result.
func (p *Pipeline) Run(ctx context.Context, repository string, pr int) (*core.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if p == nil || p.Discoverer == nil || p.Orchestrator == nil {
		return nil, errors.New("pipeline is not configured")
	}

	result := &core.RunResult{
		ID:          uuid.NewString(),
		Repository:  repository,
		PullRequest: pr,
		StartedAt:   p.now(),
	}

	entries, err := p.Discoverer.Discover(ctx, repository, pr)
	if err != nil {
		result.CompletedAt = p.now()
		metrics.RecordRun("fatal", result.CompletedAt.Sub(result.StartedAt))
		if p.Logger != nil {
			p.Logger.Error("entry discovery failed",
				zap.String("run_id", result.ID),
				zap.String("repository", repository),
				zap.Int("pull_request", pr),
				zap.Error(err))
		}
		return result, err
	}

	log := annotate.New(p.Logger)
	result.Entries = p.Orchestrator.Validate(ctx, entries, log)
	result.Log = log.Drain()
	result.CompletedAt = p.now()

	status := "ok"
	if result.Faults() > 0 {
		status = "fault"
	}
	metrics.RecordRun(status, result.CompletedAt.Sub(result.StartedAt))

	if p.Logger != nil {
		p.Logger.Info("validation run complete",
			zap.String("run_id", result.ID),
			zap.String("repository", repository),
			zap.Int("pull_request", pr),
			zap.Int("entries", len(result.Entries)),
			zap.Int("lines", len(result.Log)),
			zap.Duration("duration", result.CompletedAt.Sub(result.StartedAt)))
	}

	return result, nil
}

func (p *Pipeline) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now().UTC()
}
