package dpo

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitState is the health view the adapter keeps of the API3G endpoint
type CircuitState int

const (
	// StateClosed - API3G calls flow normally
	StateClosed CircuitState = iota
	// StateOpen - calls fail as transport errors without reaching API3G
	StateOpen
	// StateHalfOpen - a limited number of trial calls are let through
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned while API3G is considered down
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when the half-open trial slots are taken
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// CircuitBreakerConfig configures circuit breaker behavior
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive gateway failures before opening
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a trial call
	Timeout time.Duration
	// MaxRequestsHalfOpen is max concurrent trial calls in half-open state
	MaxRequestsHalfOpen uint32
	// OnStateChange is called with the lock held; it must not block
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns sensible defaults
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures:         5,
		Timeout:             30 * time.Second,
		MaxRequestsHalfOpen: 1,
	}
}

// callOutcome is how one API3G round trip bears on gateway health
type callOutcome int

const (
	// outcomeHealthy - API3G answered with a 2xx document, whatever its Result
	outcomeHealthy callOutcome = iota
	// outcomeGatewayFailure - dial, read or non-2xx failures, or the caller's
	// deadline ran out while waiting on API3G
	outcomeGatewayFailure
	// outcomeAbandoned - the donor's request was cancelled; says nothing about API3G
	outcomeAbandoned
)

// classifyCall decides what a finished API3G call says about the gateway.
// Cancellation belongs to the caller, so a batch of donors closing their tab
// can never open the circuit for everyone else.
func classifyCall(ctx context.Context, err error) callOutcome {
	switch {
	case err == nil:
		return outcomeHealthy
	case errors.Is(ctx.Err(), context.Canceled):
		return outcomeAbandoned
	default:
		return outcomeGatewayFailure
	}
}

// CircuitBreaker fails API3G calls fast while the gateway is unhealthy. It
// never retries: a rejected call surfaces to the donor as a transport failure.
type CircuitBreaker struct {
	mu                  sync.RWMutex
	state               CircuitState
	failures            uint32
	requestsHalfOpen    uint32
	lastStateChangeTime time.Time
	config              CircuitBreakerConfig
	now                 func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		state:               StateClosed,
		lastStateChangeTime: time.Now(),
		config:              config,
		now:                 time.Now,
	}
}

// Execute runs fn if the circuit allows it and records what the outcome says
// about API3G. A ctx that is already done never takes a slot or reaches fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := fn()
	cb.afterCall(classifyCall(ctx, err))
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if cb.now().Sub(cb.lastStateChangeTime) > cb.config.Timeout {
			cb.setState(StateHalfOpen)
			cb.requestsHalfOpen++
			return nil
		}
		return ErrCircuitOpen

	case StateHalfOpen:
		if cb.requestsHalfOpen >= cb.config.MaxRequestsHalfOpen {
			return ErrTooManyRequests
		}
		cb.requestsHalfOpen++
		return nil

	default:
		return ErrCircuitOpen
	}
}

func (cb *CircuitBreaker) afterCall(outcome callOutcome) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch outcome {
	case outcomeHealthy:
		switch cb.state {
		case StateHalfOpen:
			cb.setState(StateClosed)
		case StateClosed:
			cb.failures = 0
		}

	case outcomeAbandoned:
		// hand the trial slot back so the next donor can test the gateway
		if cb.state == StateHalfOpen && cb.requestsHalfOpen > 0 {
			cb.requestsHalfOpen--
		}

	case outcomeGatewayFailure:
		cb.failures++
		switch cb.state {
		case StateClosed:
			if cb.failures >= cb.config.MaxFailures {
				cb.setState(StateOpen)
			}
		case StateHalfOpen:
			cb.setState(StateOpen)
		}
	}
}

// setState must be called with mu held
func (cb *CircuitBreaker) setState(newState CircuitState) {
	if cb.state == newState {
		return
	}

	previous := cb.state
	cb.state = newState
	cb.lastStateChangeTime = cb.now()
	cb.requestsHalfOpen = 0
	if newState != StateOpen {
		cb.failures = 0
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(previous, newState)
	}
}

// State returns the current circuit state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Failures returns the current consecutive failure count
func (cb *CircuitBreaker) Failures() uint32 {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// Reset closes the circuit and clears counters
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(StateClosed)
	cb.failures = 0
	cb.requestsHalfOpen = 0
}
