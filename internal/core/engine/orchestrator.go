package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/namelens/entryguard/internal/core"
	"github.com/namelens/entryguard/internal/core/annotate"
	"github.com/namelens/entryguard/internal/metrics"
)

// DomainChecker validates a single domain. Expected domain conditions are
// reported as failing outcomes, never as errors.
type DomainChecker interface {
	Check(ctx context.Context, domain string) core.Outcome
	Name() string
}

// HandleChecker validates a contact handle.
type HandleChecker interface {
	Check(ctx context.Context, handle string) core.Outcome
	Name() string
}

// Severity is the log class a failing check is reported under.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Orchestrator runs every check for every entry and records the results.
type Orchestrator struct {
	Rank      DomainChecker
	Blocklist DomainChecker
	Handle    HandleChecker
	Logger    *logging.Logger

	// Concurrency bounds the entries validated at once; zero is unbounded.
	Concurrency int
}

type task struct {
	checker  string
	target   string
	severity Severity
	run      func(ctx context.Context) core.Outcome
}

// Validate checks entries concurrently and appends results to log. It returns
// once every scheduled check has settled; reports follow entry order.
func (o *Orchestrator) Validate(ctx context.Context, entries []core.Entry, log *annotate.Log) []core.EntryReport {
	if ctx == nil {
		ctx = context.Background()
	}

	reports := make([]core.EntryReport, len(entries))
	for i, entry := range entries {
		reports[i] = core.EntryReport{File: entry.File, Domain: entry.Domain, State: core.EntryPending}
	}

	var group errgroup.Group
	if o.Concurrency > 0 {
		group.SetLimit(o.Concurrency)
	}
	for i := range entries {
		group.Go(func() error {
			reports[i] = o.validateEntry(ctx, entries[i], log)
			return nil
		})
	}
	_ = group.Wait()

	return reports
}

func (o *Orchestrator) validateEntry(ctx context.Context, entry core.Entry, log *annotate.Log) core.EntryReport {
	report := core.EntryReport{File: entry.File, Domain: entry.Domain, State: core.EntryRunning}
	tasks := o.tasks(entry)

	o.debug("validating entry", zap.String("file", entry.File), zap.Int("checks", len(tasks)))

	var (
		mu    sync.Mutex
		group errgroup.Group
	)
	for _, t := range tasks {
		group.Go(func() error {
			kind, fault := o.runTask(ctx, entry, t, log)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case fault:
				report.Faults++
				report.Errors++
			case kind == core.LogError:
				report.Errors++
			case kind == core.LogWarning:
				report.Warnings++
			}
			return nil
		})
	}
	_ = group.Wait()

	report.State = core.EntryDone
	return report
}

func (o *Orchestrator) tasks(entry core.Entry) []task {
	var tasks []task

	addDomain := func(domain string, rankSeverity Severity) {
		domain = strings.TrimSpace(domain)
		if domain == "" {
			return
		}
		if o.Rank != nil {
			tasks = append(tasks, task{
				checker:  o.Rank.Name(),
				target:   domain,
				severity: rankSeverity,
				run:      func(ctx context.Context) core.Outcome { return o.Rank.Check(ctx, domain) },
			})
		}
		if o.Blocklist != nil {
			tasks = append(tasks, task{
				checker:  o.Blocklist.Name(),
				target:   domain,
				severity: SeverityError,
				run:      func(ctx context.Context) core.Outcome { return o.Blocklist.Check(ctx, domain) },
			})
		}
	}

	addDomain(entry.Domain, SeverityError)
	for _, domain := range entry.AdditionalDomains {
		addDomain(domain, SeverityWarning)
	}

	if handle := strings.TrimSpace(entry.ContactHandle); handle != "" && o.Handle != nil {
		tasks = append(tasks, task{
			checker:  o.Handle.Name(),
			target:   handle,
			severity: SeverityError,
			run:      func(ctx context.Context) core.Outcome { return o.Handle.Check(ctx, handle) },
		})
	}

	return tasks
}

// runTask executes one check and records its outcome. A panicking check is
// recorded as an internal error on the entry instead of crashing the run.
func (o *Orchestrator) runTask(ctx context.Context, entry core.Entry, t task, log *annotate.Log) (kind core.LogKind, fault bool) {
	defer func() {
		if r := recover(); r != nil {
			kind, fault = core.LogError, true
			if o.Logger != nil {
				o.Logger.Error("check panicked",
					zap.String("file", entry.File),
					zap.String("check", t.checker),
					zap.String("target", t.target),
					zap.Any("panic", r))
			}
			metrics.RecordCheck(t.checker, "fault")
			log.Error(entry.File, "Internal error", fmt.Sprint(r))
		}
	}()

	outcome := t.run(ctx)
	kind = Classify(outcome, t.severity)
	metrics.RecordCheck(t.checker, outcomeLabel(outcome))

	switch kind {
	case core.LogError:
		log.Error(entry.File, outcome.Title, outcome.Message)
	case core.LogWarning:
		log.Warning(entry.File, outcome.Title, outcome.Message)
	default:
		if outcome.Message != "" && !outcome.Skipped {
			log.Message(t.checker, outcome.Message)
		}
	}
	return kind, false
}

// Classify maps an outcome to the log class it is reported under. Passing
// outcomes map to LogMessage.
func Classify(outcome core.Outcome, severity Severity) core.LogKind {
	switch {
	case outcome.Passed:
		return core.LogMessage
	case outcome.Advisory, severity == SeverityWarning:
		return core.LogWarning
	default:
		return core.LogError
	}
}

func outcomeLabel(outcome core.Outcome) string {
	switch {
	case outcome.Skipped:
		return "skipped"
	case outcome.Passed:
		return "passed"
	case outcome.Advisory:
		return "review"
	default:
		return "failed"
	}
}

func (o *Orchestrator) debug(msg string, fields ...zap.Field) {
	if o.Logger == nil {
		return
	}
	o.Logger.Debug(msg, fields...)
}
