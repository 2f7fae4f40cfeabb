package circuitbreaker

import (
	"fmt"
	"sync"
	"time"
)

type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

type Settings struct {
	Name string
	// MaxFailures within Interval trips the breaker.
	MaxFailures int
	Interval    time.Duration
	// Timeout is how long an open breaker waits before probing again.
	Timeout time.Duration
}

type CircuitBreaker struct {
	name        string
	maxFailures int
	interval    time.Duration
	timeout     time.Duration

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	state       State
}

func NewCircuitBreaker(settings Settings) *CircuitBreaker {
	if settings.MaxFailures <= 0 {
		settings.MaxFailures = 5
	}
	return &CircuitBreaker{
		name:        settings.Name,
		maxFailures: settings.MaxFailures,
		interval:    settings.Interval,
		timeout:     settings.Timeout,
		state:       StateClosed,
	}
}

// Execute runs fn unless the breaker is open. An open breaker rejects calls
// until Timeout has passed since the last failure, then lets one probe
// through half-open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		now := time.Now()
		if cb.interval > 0 && now.Sub(cb.lastFailure) > cb.interval {
			cb.failures = 0
		}
		cb.failures++
		cb.lastFailure = now
		if cb.failures >= cb.maxFailures {
			cb.state = StateOpen
		}
		return err
	}

	// Success closes a half-open breaker and clears the failure window.
	cb.state = StateClosed
	cb.failures = 0
	return nil
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return nil
	}
	if time.Since(cb.lastFailure) > cb.timeout {
		cb.state = StateHalfOpen
		return nil
	}
	return fmt.Errorf("circuit breaker %s is open", cb.name)
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
