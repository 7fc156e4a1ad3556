package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the state of the circuit breaker
type State int

const (
	StateClosed   State = iota // requests allowed
	StateHalfOpen              // probing whether the dependency recovered
	StateOpen                  // requests rejected
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

// CircuitBreakerConfig configures a CircuitBreaker
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int64
	ResetTimeout     time.Duration
	HalfOpenMaxCalls int64
	// OnStateChange is called outside the breaker lock after every transition
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker guards calls to an external provider
type CircuitBreaker struct {
	name             string
	failureThreshold int64
	resetTimeout     time.Duration
	halfOpenMaxCalls int64
	onStateChange    func(name string, from, to State)
	now              func() time.Time

	mu              sync.Mutex
	state           State
	failureCount    int64
	halfOpenCalls   int64
	lastStateChange time.Time
	openedCount     int64
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 1
	}
	if config.HalfOpenMaxCalls < 1 {
		config.HalfOpenMaxCalls = 1
	}

	return &CircuitBreaker{
		name:             config.Name,
		failureThreshold: config.FailureThreshold,
		resetTimeout:     config.ResetTimeout,
		halfOpenMaxCalls: config.HalfOpenMaxCalls,
		onStateChange:    config.OnStateChange,
		now:              time.Now,
		state:            StateClosed,
		lastStateChange:  time.Now(),
	}
}

// Name returns the name of the guarded dependency
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// setState must be called with mu held. It returns the hook to run after unlocking.
func (cb *CircuitBreaker) setState(to State) func() {
	from := cb.state
	if from == to {
		return func() {}
	}

	cb.state = to
	cb.lastStateChange = cb.now()
	cb.failureCount = 0
	cb.halfOpenCalls = 0
	if to == StateOpen {
		cb.openedCount++
	}

	if cb.onStateChange == nil {
		return func() {}
	}
	return func() { cb.onStateChange(cb.name, from, to) }
}

// Allow reports whether a call may go through. An open breaker turns half-open once the reset timeout
// has passed and then admits HalfOpenMaxCalls probes.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()

	notify := func() {}
	if cb.state == StateOpen && cb.now().Sub(cb.lastStateChange) >= cb.resetTimeout {
		notify = cb.setState(StateHalfOpen)
	}

	allowed := false
	switch cb.state {
	case StateClosed:
		allowed = true
	case StateHalfOpen:
		cb.halfOpenCalls++
		allowed = cb.halfOpenCalls <= cb.halfOpenMaxCalls
	}

	cb.mu.Unlock()
	notify()
	return allowed
}

// Success reports a successful operation
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()

	notify := func() {}
	switch cb.state {
	case StateHalfOpen:
		notify = cb.setState(StateClosed)
	case StateClosed:
		cb.failureCount = 0
	}

	cb.mu.Unlock()
	notify()
}

// Failure reports a failed operation
func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()

	notify := func() {}
	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			notify = cb.setState(StateOpen)
		}
	case StateHalfOpen:
		notify = cb.setState(StateOpen)
	}

	cb.mu.Unlock()
	notify()
}

// Reset forces the breaker back to closed
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	notify := cb.setState(StateClosed)
	cb.failureCount = 0
	cb.halfOpenCalls = 0
	cb.mu.Unlock()

	notify()
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

// GetMetrics returns metrics about the circuit breaker
func (cb *CircuitBreaker) GetMetrics() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return map[string]interface{}{
		"name":              cb.name,
		"state":             cb.state.String(),
		"failure_count":     cb.failureCount,
		"failure_threshold": cb.failureThreshold,
		"half_open_calls":   cb.halfOpenCalls,
		"times_opened":      cb.openedCount,
		"reset_timeout":     cb.resetTimeout.String(),
		"last_state_change": cb.lastStateChange,
		"time_in_state":     cb.now().Sub(cb.lastStateChange).String(),
	}
}
