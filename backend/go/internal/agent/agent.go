// Package agent holds the long-lived handle that ties the task pipeline
// together. It is constructed once and passed to the poll loop and the
// caller-facing API.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"TaskAgent/backend/go/internal/consent"
	"TaskAgent/backend/go/internal/executor"
	"TaskAgent/backend/go/internal/heartbeat"
	"TaskAgent/backend/go/internal/models"
	"TaskAgent/backend/go/internal/poller"
	"TaskAgent/backend/go/internal/reporter"
	"TaskAgent/backend/go/internal/task"
	"TaskAgent/backend/go/pkg/logger"

	"github.com/google/uuid"
)

// SubmitRequest is the caller-facing descriptor. SourceID is not accepted
// from callers; synchronous tasks always run under the agent identity.
type SubmitRequest struct {
	ID      string                 `json:"id,omitempty"`
	Action  string                 `json:"action,omitempty"`
	Command string                 `json:"command,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Deps are the components the handle wires together. Poller and Beacon are
// optional.
type Deps struct {
	SourceID     string
	Version      string
	Parser       *task.Parser
	Executor     *executor.Executor
	Correlator   *reporter.Correlator
	Reporter     *reporter.Reporter
	Consent      consent.Checker
	Poller       *poller.Poller
	Beacon       *heartbeat.Beacon
	Capabilities map[string]bool
	Logger       *logger.Logger
	NewID        func() string
	Now          func() time.Time
}

type Agent struct {
	deps Deps
	log  *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running sync.WaitGroup
}

func New(deps Deps) (*Agent, error) {
	switch {
	case deps.SourceID == "":
		return nil, errors.New("agent: source id is required")
	case deps.Parser == nil || deps.Executor == nil:
		return nil, errors.New("agent: parser and executor are required")
	case deps.Correlator == nil || deps.Reporter == nil:
		return nil, errors.New("agent: correlator and reporter are required")
	case deps.Consent == nil:
		return nil, errors.New("agent: consent checker is required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.New("task_agent", "", deps.SourceID)
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Agent{deps: deps, log: deps.Logger}, nil
}

// SourceID is the identity the agent accepts tasks for.
func (a *Agent) SourceID() string { return a.deps.SourceID }

// Call runs req synchronously and returns the caller response shape. It
// never panics and always carries "success".
func (a *Agent) Call(ctx context.Context, req SubmitRequest) map[string]interface{} {
	res := a.Submit(ctx, req)
	out := res.Response()
	out["task_id"] = res.TaskID
	return out
}

// Submit is Call returning the typed result.
func (a *Agent) Submit(ctx context.Context, req SubmitRequest) (res models.TaskResult) {
	if req.ID == "" {
		req.ID = a.deps.NewID()
	}
	log := a.log.WithTask(req.ID, req.Action)
	defer func() {
		if r := recover(); r != nil {
			log.WithError(models.ErrorInfo{Message: fmt.Sprint(r), Code: string(models.ErrInternal)}).Error("Synchronous call panicked")
			res = models.Failed(req.ID, req.Action, models.ErrInternal, "panic", fmt.Sprint(r))
		}
	}()

	desc := models.TaskDescriptor{
		ID:        req.ID,
		SourceID:  a.deps.SourceID,
		Action:    req.Action,
		Command:   req.Command,
		Payload:   req.Payload,
		CreatedAt: a.deps.Now(),
		Origin:    models.OriginSync,
	}
	t, err := a.deps.Parser.Parse(desc, a.deps.SourceID)
	if err != nil {
		log.WithError(models.ErrorInfo{Message: err.Error(), Code: string(task.CodeOf(err))}).Warn("Synchronous task rejected")
		return task.FailedResult(req.ID, err)
	}

	allowed, err := consent.Check(ctx, a.deps.Consent, t.SourceID)
	if err != nil || !allowed {
		detail := "consent not granted"
		if err != nil {
			detail = err.Error()
		}
		log.WithPayload(map[string]interface{}{"detail": detail}).Warn("Synchronous task refused, consent revoked")
		return models.Failed(t.ID, string(t.Kind), models.ErrConsentRevoked, "", detail)
	}

	slot, err := a.deps.Correlator.Register(t.ID, string(t.Kind))
	if err != nil {
		return models.Failed(t.ID, string(t.Kind), models.ErrInvalidField, "id", err.Error())
	}
	done, err := a.deps.Executor.Submit(context.Background(), t)
	if err != nil {
		slot.Cancel()
		log.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Executor refused task")
		return models.Failed(t.ID, string(t.Kind), models.ErrAdapterFailure, "executor_unavailable", err.Error())
	}
	go func() {
		a.deps.Reporter.Report(context.Background(), models.OriginSync, <-done)
	}()
	return slot.Wait(ctx)
}

// Metadata describes the agent for health checks.
func (a *Agent) Metadata() Metadata {
	kinds := make([]string, 0, len(task.Kinds))
	for _, k := range task.Kinds {
		kinds = append(kinds, string(k))
	}
	return Metadata{
		SourceID:     a.deps.SourceID,
		Version:      a.deps.Version,
		Kinds:        kinds,
		Capabilities: a.deps.Capabilities,
	}
}

// Health returns a snapshot of the pipeline.
func (a *Agent) Health() Health {
	h := Health{
		Metadata:       a.Metadata(),
		QueueDepth:     a.deps.Executor.QueueDepth(),
		PendingCallers: a.deps.Correlator.Pending(),
	}
	if a.deps.Poller != nil {
		stats := a.deps.Poller.Stats()
		h.PollState = a.deps.Poller.State().String()
		h.PollCycles = stats.Cycles
		h.PollSkipped = stats.Skipped
	}
	return h
}

// Start launches the poll loop and heartbeat, when configured, in the
// background.
func (a *Agent) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return
	}
	ctx, a.cancel = context.WithCancel(ctx)
	if a.deps.Poller != nil {
		a.running.Add(1)
		go func() {
			defer a.running.Done()
			a.deps.Poller.Run(ctx)
		}()
	}
	if a.deps.Beacon != nil {
		a.running.Add(1)
		go func() {
			defer a.running.Done()
			a.deps.Beacon.Run(ctx)
		}()
	}
	a.log.Info("Agent started")
}

// Stop ends the background loops, then drains the executor.
func (a *Agent) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	a.running.Wait()
	a.deps.Executor.Stop()
	a.log.Info("Agent stopped")
}
