package faulttolerance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CircuitBreakerState represents the current state of the circuit breaker
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	MaxFailures      int           // Consecutive failures before opening
	Cooldown         time.Duration // Time to wait before transitioning from Open to Half-Open
	SuccessThreshold int           // Consecutive successes needed to close from Half-Open
	Name             string        // Name for logging
}

// CircuitBreaker guards one (asset, tier) pair: after MaxFailures
// consecutive failures the source is skipped without I/O until the
// cooldown elapses, then probed again half-open.
type CircuitBreaker struct {
	config          CircuitBreakerConfig
	state           CircuitBreakerState
	failures        int
	successes       int
	lastFailureTime time.Time
	mutex           sync.Mutex
	logger          *logrus.Logger
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 3
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 5 * time.Minute
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.Name == "" {
		config.Name = "CircuitBreaker"
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
		logger: logger,
	}
}

var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// Allow reports whether an attempt may proceed, transitioning an open
// breaker to half-open once the cooldown has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(cb.lastFailureTime) > cb.config.Cooldown {
			cb.setState(StateHalfOpen)
			cb.successes = 0
			return true
		}
		return false
	default:
		return false
	}
}

// Record feeds an attempt outcome into the breaker. A nil error resets
// the failure count; a non-nil one increments it and may open the circuit.
func (cb *CircuitBreaker) Record(err error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if err != nil {
		cb.failures++
		cb.successes = 0
		cb.lastFailureTime = time.Now()

		switch cb.state {
		case StateClosed:
			if cb.failures >= cb.config.MaxFailures {
				cb.setState(StateOpen)
				cb.logger.Warnf("[%s] Circuit breaker OPENED after %d failures", cb.config.Name, cb.failures)
			}
		case StateHalfOpen:
			cb.setState(StateOpen)
			cb.logger.Warnf("[%s] Circuit breaker reopened from HALF_OPEN due to failure", cb.config.Name)
		}
		return
	}

	cb.failures = 0
	cb.successes++
	if cb.state == StateHalfOpen && cb.successes >= cb.config.SuccessThreshold {
		cb.setState(StateClosed)
		cb.logger.Infof("[%s] Circuit breaker CLOSED after %d successes", cb.config.Name, cb.successes)
	}
}

// Execute runs the given function with circuit breaker protection
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if !cb.Allow() {
		return ErrCircuitBreakerOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := fn()
	cb.Record(err)
	return err
}

// setState changes the circuit breaker state. Caller holds the mutex.
func (cb *CircuitBreaker) setState(state CircuitBreakerState) {
	if cb.state != state {
		oldState := cb.state
		cb.state = state
		cb.logger.Infof("[%s] Circuit breaker state changed: %s -> %s", cb.config.Name, oldState, state)
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// BreakerRegistry hands out one breaker per key (canonicalKey|tier).
// It is an explicit, injectable object rather than package state, so
// tests get a fresh isolated instance.
type BreakerRegistry struct {
	config   CircuitBreakerConfig
	logger   *logrus.Logger
	mutex    sync.Mutex
	breakers map[string]*CircuitBreaker
}

func NewBreakerRegistry(config CircuitBreakerConfig, logger *logrus.Logger) *BreakerRegistry {
	if logger == nil {
		logger = logrus.New()
	}
	return &BreakerRegistry{
		config:   config,
		logger:   logger,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for key, creating it closed on first use.
func (r *BreakerRegistry) Get(key string) *CircuitBreaker {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	cb, ok := r.breakers[key]
	if !ok {
		cfg := r.config
		cfg.Name = key
		cb = NewCircuitBreaker(cfg, r.logger)
		r.breakers[key] = cb
	}
	return cb
}
