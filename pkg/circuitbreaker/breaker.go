package circuitbreaker

import (
	"sync"
	"time"

	"github.com/speedrun-hq/speedrun-minter/pkg/logger"
	"github.com/speedrun-hq/speedrun-minter/pkg/metrics"
)

// CircuitBreaker stops new submissions after repeated fatal failures
type CircuitBreaker struct {
	enabled       bool
	failureCount  int
	failureWindow time.Duration
	failThreshold int
	resetTimeout  time.Duration
	lastFailure   time.Time
	tripped       bool
	tripTime      time.Time
	mu            sync.Mutex
	logger        logger.Logger
	now           func() time.Time
}

// State is a snapshot of the breaker, as reported by the status endpoint
type State struct {
	Enabled       bool          `json:"enabled"`
	Open          bool          `json:"open"`
	FailureCount  int           `json:"failure_count"`
	FailThreshold int           `json:"fail_threshold"`
	FailureWindow time.Duration `json:"failure_window"`
	ResetTimeout  time.Duration `json:"reset_timeout"`
	LastFailure   time.Time     `json:"last_failure,omitempty"`
	TripTime      time.Time     `json:"trip_time,omitempty"`
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(enabled bool, threshold int, window time.Duration, resetTimeout time.Duration, log logger.Logger) *CircuitBreaker {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &CircuitBreaker{
		enabled:       enabled,
		failThreshold: threshold,
		failureWindow: window,
		resetTimeout:  resetTimeout,
		logger:        log,
		now:           time.Now,
	}
}

// RecordFailure records a failure and trips the circuit if threshold is exceeded
func (cb *CircuitBreaker) RecordFailure() bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()

	// If the circuit is already tripped, check if it's time to try again
	if cb.tripped {
		if now.Sub(cb.tripTime) > cb.resetTimeout {
			cb.logger.Notice("Circuit breaker: attempting to reset after timeout")
			cb.tripped = false
			cb.failureCount = 0
		} else {
			return true // Still tripped
		}
	}

	// Reset failure count if outside window
	if now.Sub(cb.lastFailure) > cb.failureWindow {
		cb.failureCount = 0
	}

	cb.failureCount++
	cb.lastFailure = now

	if cb.failureCount >= cb.failThreshold {
		cb.tripped = true
		cb.tripTime = now
		metrics.CircuitBreakerTrips.Inc()
		cb.logger.Error("Circuit breaker tripped: %d failures in window", cb.failureCount)
		return true
	}

	return false
}

// RecordSuccess clears the failures counted so far
func (cb *CircuitBreaker) RecordSuccess() {
	if !cb.enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.tripped {
		cb.failureCount = 0
	}
}

// IsOpen returns true if the circuit is open (tripped)
func (cb *CircuitBreaker) IsOpen() bool {
	if !cb.enabled {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.openLocked()
}

func (cb *CircuitBreaker) openLocked() bool {
	// If tripped but reset timeout has passed, try again
	if cb.tripped && cb.now().Sub(cb.tripTime) > cb.resetTimeout {
		cb.logger.Notice("Circuit breaker: reset timeout elapsed, closing")
		cb.tripped = false
		cb.failureCount = 0
	}
	return cb.tripped
}

// Reset manually resets the circuit breaker
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.tripped = false
	cb.failureCount = 0
	cb.logger.Notice("Circuit breaker reset")
}

// State returns a snapshot of the circuit breaker
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	open := false
	if cb.enabled {
		open = cb.openLocked()
	}
	return State{
		Enabled:       cb.enabled,
		Open:          open,
		FailureCount:  cb.failureCount,
		FailThreshold: cb.failThreshold,
		FailureWindow: cb.failureWindow,
		ResetTimeout:  cb.resetTimeout,
		LastFailure:   cb.lastFailure,
		TripTime:      cb.tripTime,
	}
}

// IsEnabled returns true if the circuit breaker is enabled
func (cb *CircuitBreaker) IsEnabled() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.enabled
}
