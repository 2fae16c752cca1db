// Package reporter routes task results back to whoever asked for them: a
// waiting synchronous caller or the task source row.
package reporter

import (
	"context"
	"errors"
	"sync"
	"time"

	"TaskAgent/backend/go/internal/models"
)

// ErrAlreadyRegistered is returned when a task id already has a waiter.
var ErrAlreadyRegistered = errors.New("task id already awaiting a result")

// DefaultCallerTimeout bounds how long a synchronous caller waits.
const DefaultCallerTimeout = 10 * time.Second

// Correlator matches results to synchronous callers by task id.
type Correlator struct {
	mu      sync.Mutex
	slots   map[string]*Slot
	timeout time.Duration
}

func NewCorrelator(timeout time.Duration) *Correlator {
	if timeout <= 0 {
		timeout = DefaultCallerTimeout
	}
	return &Correlator{slots: make(map[string]*Slot), timeout: timeout}
}

// Register reserves a slot for taskID.
func (c *Correlator) Register(taskID, kind string) (*Slot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.slots[taskID]; ok {
		return nil, ErrAlreadyRegistered
	}
	s := &Slot{id: taskID, kind: kind, owner: c, ch: make(chan models.TaskResult, 1)}
	c.slots[taskID] = s
	return s, nil
}

// Deliver hands res to its waiting slot. It reports false when nobody is
// waiting any more, which makes the result late.
func (c *Correlator) Deliver(res models.TaskResult) bool {
	c.mu.Lock()
	s, ok := c.slots[res.TaskID]
	c.mu.Unlock()
	if !ok {
		return false
	}
	return s.fire(res)
}

// Pending reports the number of registered slots.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

func (c *Correlator) release(s *Slot) {
	c.mu.Lock()
	if c.slots[s.id] == s {
		delete(c.slots, s.id)
	}
	c.mu.Unlock()
}

// Slot is a one-shot rendezvous for a single task result.
type Slot struct {
	id    string
	kind  string
	owner *Correlator
	once  sync.Once
	ch    chan models.TaskResult
}

func (s *Slot) fire(res models.TaskResult) bool {
	fired := false
	s.once.Do(func() {
		s.ch <- res
		fired = true
	})
	return fired
}

// Wait returns the first of: the delivered result, a timeout result once the
// correlator timeout elapses, or a timeout result when ctx ends. The slot is
// released afterwards, so Wait may be called only once.
func (s *Slot) Wait(ctx context.Context) models.TaskResult {
	defer s.owner.release(s)
	timer := time.NewTimer(s.owner.timeout)
	defer timer.Stop()
	select {
	case res := <-s.ch:
		return res
	case <-timer.C:
		s.fire(models.Failed(s.id, s.kind, models.ErrTimeout, "caller_timeout", "no result within "+s.owner.timeout.String()))
	case <-ctx.Done():
		s.fire(models.Failed(s.id, s.kind, models.ErrTimeout, "caller_cancelled", ctx.Err().Error()))
	}
	return <-s.ch
}

// Cancel releases the slot without waiting, for callers whose submit failed.
func (s *Slot) Cancel() {
	s.owner.release(s)
}
