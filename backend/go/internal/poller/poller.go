// Package poller pulls pending task rows for this agent and drives them
// through parse, consent, execute and report.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"TaskAgent/backend/go/internal/consent"
	"TaskAgent/backend/go/internal/models"
	"TaskAgent/backend/go/internal/task"
	"TaskAgent/backend/go/pkg/circuitbreaker"
	"TaskAgent/backend/go/pkg/logger"
)

// ErrCycleInProgress is returned by RunCycle while another cycle runs.
var ErrCycleInProgress = errors.New("poll cycle already in progress")

// TaskSource is the external task row store.
type TaskSource interface {
	FetchPending(ctx context.Context, sourceID string, limit int) ([]models.TaskRecord, error)
	// MarkInProgress reports false when the row was no longer pending.
	MarkInProgress(ctx context.Context, taskID string) (bool, error)
}

type Parser interface {
	Parse(raw models.TaskDescriptor, expectedSourceID string) (*task.ValidatedTask, error)
}

type Executor interface {
	Execute(ctx context.Context, t *task.ValidatedTask) models.TaskResult
}

type Reporter interface {
	Report(ctx context.Context, origin models.TaskOrigin, res models.TaskResult)
}

// State is the phase of the current cycle.
type State int32

const (
	Idle State = iota
	Fetching
	Processing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Processing:
		return "processing"
	}
	return "unknown"
}

// CycleStats summarizes one cycle.
type CycleStats struct {
	Fetched   int
	Claimed   int
	Executed  int
	Succeeded int
	Rejected  int // parse or consent failures, never executed
}

// Stats are totals since the poller was created.
type Stats struct {
	Cycles  int64
	Skipped int64
	Errors  int64
}

type Options struct {
	SourceID     string
	Interval     time.Duration
	BatchSize    int
	FetchTimeout time.Duration
	Breaker      circuitbreaker.CircuitBreaker
	Logger       *logger.Logger
}

type Poller struct {
	source   TaskSource
	parser   Parser
	consent  consent.Checker
	executor Executor
	reporter Reporter
	opts     Options

	busy    atomic.Bool
	state   atomic.Int32
	cycles  atomic.Int64
	skipped atomic.Int64
	errs    atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(source TaskSource, parser Parser, checker consent.Checker, executor Executor, reporter Reporter, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.New("task_poller", "", opts.SourceID)
	}
	return &Poller{
		source:   source,
		parser:   parser,
		consent:  checker,
		executor: executor,
		reporter: reporter,
		opts:     opts,
	}
}

// State returns the current phase.
func (p *Poller) State() State { return State(p.state.Load()) }

// Stats returns running totals.
func (p *Poller) Stats() Stats {
	return Stats{Cycles: p.cycles.Load(), Skipped: p.skipped.Load(), Errors: p.errs.Load()}
}

// Run starts a cycle immediately and then on every tick, until ctx ends or
// Stop is called. A tick that finds the previous cycle still running is
// skipped.
func (p *Poller) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.mu.Lock()
	p.cancel, p.done = cancel, done
	p.mu.Unlock()
	defer close(done)
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	p.opts.Logger.WithPayload(map[string]interface{}{"interval": p.opts.Interval.String()}).Info("Poll loop started")
	for {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.tick(ctx)
		}()
		select {
		case <-ctx.Done():
			p.opts.Logger.Info("Poll loop stopping")
			return
		case <-ticker.C:
		}
	}
}

// Stop ends Run and waits for the in-flight cycle to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) tick(ctx context.Context) {
	stats, err := p.RunCycle(ctx)
	switch {
	case errors.Is(err, ErrCycleInProgress):
		p.opts.Logger.Debug("Previous poll cycle still running, tick skipped")
	case err != nil:
		if ctx.Err() == nil {
			p.opts.Logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Poll cycle failed")
		}
	case stats.Fetched > 0:
		p.opts.Logger.WithPayload(map[string]interface{}{
			"fetched":   stats.Fetched,
			"claimed":   stats.Claimed,
			"executed":  stats.Executed,
			"succeeded": stats.Succeeded,
			"rejected":  stats.Rejected,
		}).Info("Poll cycle finished")
	}
}

// RunCycle fetches one batch and processes it in fetch order. Per-task
// failures are written back to the row and never abort the cycle.
func (p *Poller) RunCycle(ctx context.Context) (CycleStats, error) {
	var stats CycleStats
	if !p.busy.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		return stats, ErrCycleInProgress
	}
	defer p.busy.Store(false)
	defer p.state.Store(int32(Idle))
	p.cycles.Add(1)

	p.state.Store(int32(Fetching))
	rows, err := p.fetch(ctx)
	if err != nil {
		p.errs.Add(1)
		return stats, err
	}
	stats.Fetched = len(rows)

	p.state.Store(int32(Processing))
	for i := range rows {
		if ctx.Err() != nil {
			break
		}
		p.process(ctx, &rows[i], &stats)
	}
	return stats, nil
}

func (p *Poller) fetch(ctx context.Context) ([]models.TaskRecord, error) {
	var rows []models.TaskRecord
	call := func() error {
		fctx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
		defer cancel()
		var err error
		rows, err = p.source.FetchPending(fctx, p.opts.SourceID, p.opts.BatchSize)
		return err
	}
	var err error
	if p.opts.Breaker != nil {
		err = p.opts.Breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, fmt.Errorf("fetch pending tasks: %w", err)
	}
	return rows, nil
}

func (p *Poller) process(ctx context.Context, row *models.TaskRecord, stats *CycleStats) {
	log := p.opts.Logger.WithTask(row.ID, row.Action)
	claimed, err := p.source.MarkInProgress(ctx, row.ID)
	if err != nil {
		log.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to claim task")
		return
	}
	if !claimed {
		log.Debug("Task already claimed elsewhere")
		return
	}
	stats.Claimed++

	// From here on the row is ours and must reach a terminal status even if
	// the loop is stopping.
	ctx = context.WithoutCancel(ctx)

	t, err := p.parser.Parse(row.Descriptor(), p.opts.SourceID)
	if err != nil {
		stats.Rejected++
		log.WithError(models.ErrorInfo{Message: err.Error(), Code: string(task.CodeOf(err))}).Warn("Task rejected by parser")
		p.reporter.Report(ctx, models.OriginSource, task.FailedResult(row.ID, err))
		return
	}

	allowed, err := consent.Check(ctx, p.consent, t.SourceID)
	if err != nil || !allowed {
		stats.Rejected++
		detail := "consent not granted"
		if err != nil {
			detail = err.Error()
		}
		log.WithPayload(map[string]interface{}{"detail": detail}).Warn("Task refused, consent revoked")
		p.reporter.Report(ctx, models.OriginSource, models.Failed(t.ID, string(t.Kind), models.ErrConsentRevoked, "", detail))
		return
	}

	res := p.executor.Execute(ctx, t)
	switch {
	case res.ErrorCode == models.ErrConsentRevoked:
		// revoked while the task was queued behind earlier work
		stats.Rejected++
	case res.Success:
		stats.Executed++
		stats.Succeeded++
	default:
		stats.Executed++
	}
	p.reporter.Report(ctx, models.OriginSource, res)
}
