package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

var (
	ErrOpen         = errors.New("circuit breaker is open")
	ErrTrialRunning = errors.New("circuit breaker is half-open (trial request in flight)")
)

type CircuitBreaker struct {
	name          string
	mu            sync.Mutex
	state         State
	failureCount  int
	lastErrorTime time.Time
	threshold     int
	timeout       time.Duration
	now           func() time.Time
	onChange      func(name string, s State)
	isFailure     func(error) bool
}

func NewCircuitBreaker(name string, threshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:      name,
		state:     StateClosed,
		threshold: threshold,
		timeout:   timeout,
		now:       time.Now,
	}
}

// FailOn limits which errors count against the breaker. Errors for which fn
// returns false are passed to the caller but count as a healthy answer.
func (cb *CircuitBreaker) FailOn(fn func(error) bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.isFailure = fn
}

// OnStateChange registers fn to be called (under the breaker's lock) on every transition.
func (cb *CircuitBreaker) OnStateChange(fn func(name string, s State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onChange = fn
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute runs action unless the breaker is open. After the timeout one trial request
// is let through in half-open state; its result closes or re-opens the breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, action func(ctx context.Context) (any, error)) (any, error) {
	cb.mu.Lock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastErrorTime) > cb.timeout {
			cb.setState(StateHalfOpen)
		} else {
			cb.mu.Unlock()
			return nil, ErrOpen
		}
	case StateHalfOpen:
		cb.mu.Unlock()
		return nil, ErrTrialRunning
	}

	cb.mu.Unlock()

	result, err := action(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && (cb.isFailure == nil || cb.isFailure(err)) {
		cb.failureCount++
		cb.lastErrorTime = cb.now()

		if cb.failureCount >= cb.threshold || cb.state == StateHalfOpen {
			cb.setState(StateOpen)
			slog.Warn("Circuit Breaker OPENED", "breaker", cb.name, "failures", cb.failureCount)
		}
		return nil, err
	}

	if cb.state == StateHalfOpen {
		slog.Info("Circuit Breaker RECOVERED", "breaker", cb.name)
	}
	cb.failureCount = 0
	cb.setState(StateClosed)

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (cb *CircuitBreaker) setState(s State) {
	if cb.state == s {
		return
	}
	cb.state = s
	if cb.onChange != nil {
		cb.onChange(cb.name, s)
	}
}
