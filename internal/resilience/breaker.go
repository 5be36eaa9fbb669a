// Package resilience provides the circuit breaker guarding the external
// intent resolver.
//
// The breaker is a classic three-state machine (closed → open → half-open):
// consecutive resolver failures open it, calls are then rejected immediately
// until the reset timeout elapses, and a limited number of probe calls
// decide whether it closes again. This keeps a dead or slow resolver from
// stalling every utterance of a session.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Execute] when the breaker is open and the
// reset timeout has not yet elapsed.
var ErrOpen = errors.New("circuit breaker is open")

// State represents the operating mode of a [Breaker].
type State int

const (
	// StateClosed is the normal operating state, all calls are forwarded.
	StateClosed State = iota

	// StateOpen means the breaker tripped; calls fail fast with [ErrOpen].
	StateOpen

	// StateHalfOpen is the probe state entered after the reset timeout.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
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

// BreakerConfig holds tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name is a human-readable label used in log messages.
	Name string

	// MaxFailures is the number of consecutive failures in the closed state
	// before the breaker opens. Default: 3.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before transitioning
	// to half-open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of probe calls allowed in the half-open
	// state before the breaker decides whether to close or re-open.
	// Default: 2.
	HalfOpenMax int
}

// Breaker implements the three-state circuit breaker pattern. Safe for
// concurrent use.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	log          *slog.Logger

	mu              sync.Mutex
	state           State
	consecutiveFail int
	lastFailure     time.Time
	halfOpenCalls   int
	halfOpenFails   int
}

// NewBreaker creates a [Breaker]. Zero-value config fields are replaced
// with defaults.
func NewBreaker(cfg BreakerConfig, log *slog.Logger) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 2
	}
	if log == nil {
		log = slog.Default()
	}
	return &Breaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		log:          log.With("breaker", cfg.Name),
		state:        StateClosed,
	}
}

// State returns the current breaker state, accounting for an elapsed reset
// timeout.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && time.Since(b.lastFailure) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Execute runs fn if the breaker allows it. In the open state it returns
// [ErrOpen] without calling fn. Context cancellation by the caller does not
// count as a service failure.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) < b.resetTimeout {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = StateHalfOpen
		b.halfOpenCalls = 0
		b.halfOpenFails = 0
		b.log.Info("circuit breaker half-open")
	case StateHalfOpen:
		if b.halfOpenCalls >= b.halfOpenMax {
			b.mu.Unlock()
			return ErrOpen
		}
	}
	if b.state == StateHalfOpen {
		b.halfOpenCalls++
	}
	b.mu.Unlock()

	err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil && errors.Is(err, context.Canceled) {
		// Caller cancellations say nothing about service health.
		return err
	}

	if err != nil {
		b.lastFailure = time.Now()
		switch b.state {
		case StateClosed:
			b.consecutiveFail++
			if b.consecutiveFail >= b.maxFailures {
				b.state = StateOpen
				b.log.Warn("circuit breaker opened", "failures", b.consecutiveFail)
			}
		case StateHalfOpen:
			b.halfOpenFails++
			b.state = StateOpen
			b.log.Warn("circuit breaker re-opened from half-open")
		}
		return err
	}

	switch b.state {
	case StateClosed:
		b.consecutiveFail = 0
	case StateHalfOpen:
		if b.halfOpenCalls-b.halfOpenFails >= b.halfOpenMax || b.halfOpenFails == 0 {
			b.state = StateClosed
			b.consecutiveFail = 0
			b.log.Info("circuit breaker closed")
		}
	}
	return nil
}
