package api

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/odvcencio/dnetui/pkg/errors"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// CircuitClosed allows requests to pass through
	CircuitClosed CircuitState = iota
	// CircuitOpen blocks all requests
	CircuitOpen
	// CircuitHalfOpen allows one trial request to check if the API recovered
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds configuration for the circuit breaker
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before opening
	MaxFailures uint32
	// ResetTimeout is how long the circuit stays open before a trial request
	ResetTimeout time.Duration
}

// DefaultBreakerConfig suits a local API polled every second or so.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:  3,
		ResetTimeout: 5 * time.Second,
	}
}

// Breaker stops pollers from hammering an API that is down. Only transport
// failures count; an HTTP error status means the server is up.
type Breaker struct {
	config BreakerConfig
	now    func() time.Time

	mu              sync.Mutex
	state           CircuitState
	failureCount    uint32
	lastFailureTime time.Time
}

// NewBreaker creates a breaker in the closed state.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.MaxFailures == 0 {
		config.MaxFailures = DefaultBreakerConfig().MaxFailures
	}
	return &Breaker{config: config, now: time.Now, state: CircuitClosed}
}

// State returns the current state.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset closes the circuit.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = CircuitClosed
	b.failureCount = 0
	b.lastFailureTime = time.Time{}
}

// Call runs fn unless the circuit is open.
func (b *Breaker) Call(fn func() error) error {
	b.mu.Lock()
	if b.state == CircuitOpen {
		since := b.now().Sub(b.lastFailureTime)
		if since < b.config.ResetTimeout {
			b.mu.Unlock()
			return errors.New(errors.ErrCodeAPIRequest, "dnet API unreachable, retry suppressed").
				WithContext("since_failure", since.Round(time.Millisecond).String()).
				WithRetryable(true)
		}
		b.state = CircuitHalfOpen
		b.failureCount = 0
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil && countsAsFailure(err) {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return err
}

// FailureCount returns the consecutive failure count.
func (b *Breaker) FailureCount() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}

// Must be called with lock held.
func (b *Breaker) recordFailure() {
	b.failureCount++
	b.lastFailureTime = b.now()

	switch b.state {
	case CircuitHalfOpen:
		b.state = CircuitOpen
	case CircuitClosed:
		if b.failureCount >= b.config.MaxFailures {
			b.state = CircuitOpen
		}
	}
}

// Must be called with lock held.
func (b *Breaker) recordSuccess() {
	b.state = CircuitClosed
	b.failureCount = 0
	b.lastFailureTime = time.Time{}
}

// A cancelled caller says nothing about the server.
func countsAsFailure(err error) bool {
	return errors.IsCode(err, errors.ErrCodeAPIRequest) && !stderrors.Is(err, context.Canceled)
}
