package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"TaskAgent/backend/go/pkg/clock"
)

// State represents the state of the circuit breaker.
type State int

const (
	// Closed is the initial state where calls are allowed.
	Closed State = iota
	// Open state is when the circuit has tripped and calls are blocked.
	Open
	// HalfOpen allows trial calls to test whether the dependency recovered.
	HalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "Half-Open"
	default:
		return "Unknown"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is in the Open state.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker guards calls to a flaky dependency such as the task source.
type CircuitBreaker interface {
	// Execute runs fn unless the circuit is open.
	Execute(fn func() error) error
	// State returns the current state of the circuit breaker.
	State() State
}

type breaker struct {
	failureThreshold     uint32        // Consecutive failures that trip the circuit.
	successThreshold     uint32        // Consecutive HalfOpen successes that close it.
	timeout              time.Duration // Time spent Open before trying HalfOpen.
	clock                clock.Clock
	consecutiveSuccesses uint32
	consecutiveFailures  uint32
	openedAt             time.Time
	state                State
	mutex                sync.Mutex
}

// New creates a breaker backed by the real clock.
// failureThreshold: consecutive failures required to open the circuit.
// successThreshold: consecutive half-open successes required to close it.
// timeout: how long the circuit stays open before a trial call is let through.
func New(failureThreshold, successThreshold uint32, timeout time.Duration) CircuitBreaker {
	return NewWithClock(failureThreshold, successThreshold, timeout, clock.Real{})
}

// NewWithClock creates a breaker reading time from clk.
func NewWithClock(failureThreshold, successThreshold uint32, timeout time.Duration, clk clock.Clock) CircuitBreaker {
	if failureThreshold == 0 {
		failureThreshold = 1
	}
	if successThreshold == 0 {
		successThreshold = 1
	}
	return &breaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		clock:            clk,
		state:            Closed,
	}
}

func (cb *breaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.maybeHalfOpen()
	return cb.state
}

func (cb *breaker) Execute(fn func() error) error {
	cb.mutex.Lock()
	cb.maybeHalfOpen()
	if cb.state == Open {
		cb.mutex.Unlock()
		return ErrCircuitOpen
	}
	cb.mutex.Unlock()

	if err := fn(); err != nil {
		cb.onFailure()
		return err
	}
	cb.onSuccess()
	return nil
}

// maybeHalfOpen must be called with the mutex held.
func (cb *breaker) maybeHalfOpen() {
	if cb.state == Open && cb.clock.Now().Sub(cb.openedAt) > cb.timeout {
		cb.state = HalfOpen
		cb.consecutiveSuccesses = 0
	}
}

func (cb *breaker) onSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case HalfOpen:
		cb.consecutiveSuccesses++
		if cb.consecutiveSuccesses >= cb.successThreshold {
			cb.state = Closed
			cb.consecutiveFailures = 0
			cb.consecutiveSuccesses = 0
		}
	case Closed:
		cb.consecutiveFailures = 0
	}
}

func (cb *breaker) onFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case HalfOpen:
		cb.trip()
	case Closed:
		cb.consecutiveFailures++
		if cb.consecutiveFailures >= cb.failureThreshold {
			cb.trip()
		}
	}
}

func (cb *breaker) trip() {
	cb.state = Open
	cb.openedAt = cb.clock.Now()
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0
}
