// Package executor runs validated tasks one at a time against the device
// capabilities.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"TaskAgent/backend/go/internal/capability"
	"TaskAgent/backend/go/internal/capability/storage"
	"TaskAgent/backend/go/internal/consent"
	"TaskAgent/backend/go/internal/journal"
	"TaskAgent/backend/go/internal/models"
	"TaskAgent/backend/go/internal/task"
	"TaskAgent/backend/go/pkg/clock"
	"TaskAgent/backend/go/pkg/logger"
)

var (
	ErrQueueFull = errors.New("executor queue is full")
	ErrStopped   = errors.New("executor is stopped")
)

// Capabilities are the adapters the executor drives. A nil adapter makes
// its kinds fail with UnsupportedPlatform.
type Capabilities struct {
	UI       capability.UIAutomation
	Gestures capability.Gestures
	Apps     capability.AppLauncher
	Files    capability.Files
	Sandbox  *storage.Sandbox
}

type Options struct {
	QueueSize      int
	AdapterTimeout time.Duration
	MaxWait        time.Duration
	Clock          clock.Clock
	Logger         *logger.Logger
	Journal        journal.Journal
	// Consent is re-read on the worker right before each task runs. Nil
	// disables the check.
	Consent consent.Checker
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.AdapterTimeout <= 0 {
		o.AdapterTimeout = 15 * time.Second
	}
	if o.MaxWait <= 0 || o.MaxWait > task.MaxWait {
		o.MaxWait = task.MaxWait
	}
	if o.Clock == nil {
		o.Clock = clock.Real{}
	}
	if o.Logger == nil {
		o.Logger = logger.New("task_executor", "", "")
	}
	if o.Journal == nil {
		o.Journal = journal.Discard{}
	}
	return o
}

type job struct {
	ctx  context.Context
	task *task.ValidatedTask
	done chan models.TaskResult
}

// Executor owns a single worker goroutine. Tasks run strictly in
// submission order and never overlap.
type Executor struct {
	caps  Capabilities
	opts  Options
	queue chan job

	mu      sync.RWMutex
	stopped bool
	depth   atomic.Int64
	wg      sync.WaitGroup
}

// New creates an Executor and starts its worker.
func New(caps Capabilities, opts Options) *Executor {
	opts = opts.withDefaults()
	e := &Executor{
		caps:  caps,
		opts:  opts,
		queue: make(chan job, opts.QueueSize),
	}
	e.wg.Add(1)
	go e.work()
	return e
}

// Submit enqueues t without blocking. The returned channel receives exactly
// one result. ctx scopes the adapter calls; cancelling it does not remove
// the task from the queue.
func (e *Executor) Submit(ctx context.Context, t *task.ValidatedTask) (<-chan models.TaskResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stopped {
		return nil, ErrStopped
	}
	j := job{ctx: ctx, task: t, done: make(chan models.TaskResult, 1)}
	e.depth.Add(1)
	select {
	case e.queue <- j:
		return j.done, nil
	default:
		e.depth.Add(-1)
		return nil, ErrQueueFull
	}
}

// Execute submits t and waits for its result. When ctx ends first a Timeout
// result is returned while the task itself keeps its place in the queue.
func (e *Executor) Execute(ctx context.Context, t *task.ValidatedTask) models.TaskResult {
	done, err := e.Submit(context.WithoutCancel(ctx), t)
	if err != nil {
		return models.Failed(t.ID, string(t.Kind), models.ErrAdapterFailure, reasonOf(err), err.Error())
	}
	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return models.Failed(t.ID, string(t.Kind), models.ErrTimeout, "caller_timeout", ctx.Err().Error())
	}
}

// QueueDepth reports tasks submitted but not yet finished.
func (e *Executor) QueueDepth() int {
	return int(e.depth.Load())
}

// Stop rejects new submissions, lets queued tasks finish and waits for the
// worker to exit.
func (e *Executor) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.queue)
	e.mu.Unlock()
	e.wg.Wait()
}

func (e *Executor) work() {
	defer e.wg.Done()
	for j := range e.queue {
		res, ok := e.admit(j.ctx, j.task)
		if ok {
			res = e.run(j.ctx, j.task)
		}
		e.depth.Add(-1)
		j.done <- res
	}
}

// admit re-checks consent for a dequeued task. Revocation while the task
// waited in the queue, or an unreadable flag, refuses it without running.
func (e *Executor) admit(ctx context.Context, t *task.ValidatedTask) (models.TaskResult, bool) {
	if e.opts.Consent == nil {
		return models.TaskResult{}, true
	}
	cctx, cancel := context.WithTimeout(ctx, e.opts.AdapterTimeout)
	allowed, err := consent.Check(cctx, e.opts.Consent, t.SourceID)
	cancel()
	if err == nil && allowed {
		return models.TaskResult{}, true
	}
	detail := "consent not granted"
	if err != nil {
		detail = err.Error()
	}
	e.opts.Logger.WithTask(t.ID, string(t.Kind)).
		WithPayload(map[string]interface{}{"origin": t.Origin, "detail": detail}).
		Warn("Task refused before execution, consent revoked")
	res := models.Failed(t.ID, string(t.Kind), models.ErrConsentRevoked, "revoked_before_run", detail)
	res.FinishedAt = e.opts.Clock.Now()
	return res, false
}

func (e *Executor) run(ctx context.Context, t *task.ValidatedTask) (res models.TaskResult) {
	log := e.opts.Logger.WithTask(t.ID, string(t.Kind))
	started := e.opts.Clock.Now()
	defer func() {
		if r := recover(); r != nil {
			log.WithError(models.ErrorInfo{
				Message: fmt.Sprint(r),
				Code:    string(models.ErrAdapterFailure),
				Stack:   string(debug.Stack()),
			}).Error("Task panicked")
			res = models.Failed(t.ID, string(t.Kind), models.ErrAdapterFailure, "panic", fmt.Sprint(r))
		}
		res.StartedAt = started
		res.FinishedAt = e.opts.Clock.Now()
		e.record(log, t, res)
	}()

	data, err := e.dispatch(ctx, t)
	if err != nil {
		code, reason := classify(err)
		return models.Failed(t.ID, string(t.Kind), code, reason, err.Error())
	}
	return models.Succeeded(t.ID, string(t.Kind), data)
}

func (e *Executor) record(log *logger.Logger, t *task.ValidatedTask, res models.TaskResult) {
	fields := map[string]interface{}{
		"origin":      t.Origin,
		"success":     res.Success,
		"duration_ms": res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
	}
	if res.Success {
		log.WithPayload(fields).Info("Task executed")
	} else {
		fields["error"] = res.ErrorCode
		fields["reason"] = res.Reason
		log.WithPayload(fields).Warn("Task failed")
	}
	entry := models.JournalEntry{
		TaskID:     t.ID,
		SourceID:   t.SourceID,
		Kind:       string(t.Kind),
		Origin:     t.Origin,
		Success:    res.Success,
		ErrorCode:  res.ErrorCode,
		Reason:     res.Reason,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
	if err := e.opts.Journal.Append(context.Background(), entry); err != nil {
		log.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to append journal entry")
	}
}

// classify maps an adapter error onto the error taxonomy.
func classify(err error) (models.ErrorCode, string) {
	var ce *capability.Error
	switch {
	case errors.Is(err, capability.ErrUnsupportedPlatform):
		return models.ErrUnsupportedPlatform, "unsupported_platform"
	case errors.Is(err, storage.ErrOutsideRoot):
		return models.ErrAccessDenied, "outside_storage_root"
	case errors.Is(err, context.DeadlineExceeded):
		return models.ErrTimeout, "adapter_timeout"
	case errors.As(err, &ce):
		return models.ErrAdapterFailure, ce.Code
	default:
		return models.ErrAdapterFailure, "adapter_error"
	}
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, ErrQueueFull):
		return "queue_full"
	case errors.Is(err, ErrStopped):
		return "executor_stopped"
	}
	return "submit_failed"
}
