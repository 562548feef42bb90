// Package resilience provides the circuit breaker and retry primitives used by
// every upstream food-data call: a breaker with a fixed per-call timeout, and a
// bounded retry combinator with pluggable backoff policies.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Predefined errors for resilient operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open and the
	// reset window has not elapsed.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrCallTimeout is returned when a wrapped call exceeds the per-call timeout.
	ErrCallTimeout = errors.New("call timed out")
)

// BreakerConfig holds configuration for the circuit breaker.
type BreakerConfig struct {
	// Name identifies the breaker for logging/metrics.
	Name string

	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Default: 5.
	FailureThreshold uint32

	// ResetTimeout is how long the breaker stays open before allowing a single
	// half-open probe. Default: 30 seconds.
	ResetTimeout time.Duration

	// CallTimeout bounds every wrapped call, in any state. A call that has not
	// returned by then counts as a failure. Default: 10 seconds.
	CallTimeout time.Duration

	// IsSuccessful classifies errors for failure accounting. When nil, every
	// non-nil error counts as a failure. Caller-context cancellations never
	// count, with or without a classifier.
	IsSuccessful func(err error) bool

	// OnStateChange is called when the breaker changes state.
	OnStateChange func(name string, from, to State)
}

// State is the externally visible breaker state.
type State string

// Breaker states.
const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

func toState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Breaker wraps calls returning T with circuit breaker protection and a fixed
// per-call timeout. One instance is shared across all call sites that depend on
// the same upstream; internal retries belong inside the wrapped function so the
// breaker observes exactly one outcome per logical call.
type Breaker[T any] struct {
	cb          *gobreaker.CircuitBreaker[T]
	callTimeout time.Duration
}

// NewBreaker creates a breaker with the given configuration.
func NewBreaker[T any](cfg BreakerConfig) *Breaker[T] {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout == 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 10 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1, // single half-open probe
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about the dependency's health;
			// only ErrCallTimeout marks a breaker-imposed deadline.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			if cfg.IsSuccessful != nil {
				return cfg.IsSuccessful(err)
			}
			return err == nil
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, toState(from), toState(to))
		}
	}

	return &Breaker[T]{
		cb:          gobreaker.NewCircuitBreaker[T](settings),
		callTimeout: cfg.CallTimeout,
	}
}

// Execute runs fn through the breaker, bounded by the per-call timeout.
// Whichever of {result, timeout} comes first wins; on timeout the call's
// context is cancelled so in-flight HTTP requests are aborted rather than
// abandoned. Returns ErrCircuitOpen without invoking fn when the breaker is
// open, and ErrCallTimeout when the deadline fires.
func (b *Breaker[T]) Execute(ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	result, err := b.cb.Execute(func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, b.callTimeout)
		defer cancel()

		type outcome struct {
			value T
			err   error
		}
		done := make(chan outcome, 1)
		go func() {
			v, fnErr := fn(callCtx)
			done <- outcome{value: v, err: fnErr}
		}()

		select {
		case out := <-done:
			if out.err != nil && callCtx.Err() != nil && ctx.Err() == nil {
				// The call's own deadline fired and fn surfaced the aborted
				// request's error; report the timeout, which counts as a failure.
				var zero T
				return zero, ErrCallTimeout
			}
			return out.value, out.err
		case <-callCtx.Done():
			var zero T
			if ctx.Err() != nil {
				// Caller cancellation, not our deadline.
				return zero, ctx.Err()
			}
			return zero, ErrCallTimeout
		}
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			var zero T
			return zero, ErrCircuitOpen
		}
		return result, err
	}
	return result, nil
}

// State returns the current breaker state.
func (b *Breaker[T]) State() State {
	return toState(b.cb.State())
}

// FailureCount returns the current consecutive failure count.
func (b *Breaker[T]) FailureCount() uint32 {
	return b.cb.Counts().ConsecutiveFailures
}
