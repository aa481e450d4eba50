// Package resilience guards the pipeline's external service calls.
//
// The central type is [Breaker], a three-state circuit breaker
// (closed → open → half-open). [GuardedExtractor], [GuardedSynthesizer],
// and [GuardedAligner] wrap the three provider interfaces with per-service
// breakers so a degraded upstream fails fast instead of stalling every
// pipeline run behind its timeout.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] when the breaker is open and the
// reset timeout has not yet elapsed.
var ErrOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards all calls.
	StateClosed State = iota

	// StateOpen rejects calls immediately with [ErrOpen] until the reset
	// timeout elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through; if they
	// succeed the breaker closes, otherwise it re-opens.
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

// Config holds the tuning knobs for a [Breaker].
type Config struct {
	// Name labels the breaker in log messages, typically the service it
	// guards ("extract", "tts", "align").
	Name string

	// MaxFailures is the number of consecutive failures in the closed
	// state before the breaker opens. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before moving to
	// half-open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is how many probe calls the half-open state permits
	// before deciding whether to close or re-open. Default: 3.
	HalfOpenMax int

	// Logger receives state-transition events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Breaker implements the three-state circuit breaker pattern.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	log          *slog.Logger
	now          func() time.Time

	mu              sync.Mutex
	state           State
	consecutiveFail int
	lastFailure     time.Time
	halfOpenCalls   int
	halfOpenFails   int
}

// NewBreaker creates a [Breaker] from cfg, substituting defaults for
// zero-value fields.
func NewBreaker(cfg Config) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Breaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		log:          cfg.Logger,
		now:          time.Now,
		state:        StateClosed,
	}
}

// Do runs fn if the breaker allows it. In the open state it returns [ErrOpen]
// without calling fn. A context already cancelled before the call counts as
// the caller's failure, not the service's, and does not trip the breaker.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailure) >= b.resetTimeout {
			b.state = StateHalfOpen
			b.halfOpenCalls = 0
			b.halfOpenFails = 0
			b.log.Info("circuit breaker transitioning to half-open", "name", b.name)
		} else {
			b.mu.Unlock()
			return ErrOpen
		}

	case StateHalfOpen:
		if b.halfOpenCalls >= b.halfOpenMax {
			// Probe budget exhausted, stay open.
			b.mu.Unlock()
			return ErrOpen
		}
	}

	inHalfOpen := b.state == StateHalfOpen
	if inHalfOpen {
		b.halfOpenCalls++
	}
	b.mu.Unlock()

	err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.recordFailure(inHalfOpen)
	} else if err == nil {
		b.recordSuccess(inHalfOpen)
	}
	return err
}

// recordFailure handles failure accounting. Must be called with b.mu held.
func (b *Breaker) recordFailure(inHalfOpen bool) {
	b.lastFailure = b.now()

	if inHalfOpen {
		b.halfOpenFails++
		// Any failure in half-open immediately re-opens.
		b.state = StateOpen
		b.consecutiveFail = b.maxFailures
		b.log.Warn("circuit breaker re-opened from half-open", "name", b.name)
		return
	}

	b.consecutiveFail++
	if b.consecutiveFail >= b.maxFailures {
		b.state = StateOpen
		b.log.Warn("circuit breaker opened",
			"name", b.name,
			"consecutive_failures", b.consecutiveFail)
	}
}

// recordSuccess handles success accounting. Must be called with b.mu held.
func (b *Breaker) recordSuccess(inHalfOpen bool) {
	if inHalfOpen {
		successes := b.halfOpenCalls - b.halfOpenFails
		if successes >= b.halfOpenMax {
			b.state = StateClosed
			b.consecutiveFail = 0
			b.halfOpenCalls = 0
			b.halfOpenFails = 0
			b.log.Info("circuit breaker closed after successful probes", "name", b.name)
		}
		return
	}

	b.consecutiveFail = 0
}

// State returns the breaker's current [State]. If the breaker is open and the
// reset timeout has elapsed, [StateHalfOpen] is reported; the actual
// transition happens on the next [Breaker.Do] call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.now().Sub(b.lastFailure) >= b.resetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the breaker back to [StateClosed], clearing all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.consecutiveFail = 0
	b.halfOpenCalls = 0
	b.halfOpenFails = 0
	b.log.Info("circuit breaker manually reset", "name", b.name)
}
