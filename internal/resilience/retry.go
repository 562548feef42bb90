package resilience

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Permanent marks err as non-retryable: Retry returns it immediately without
// consuming further attempts.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retry runs op until it succeeds, returns a permanent error, the context is
// cancelled, or maxRetries additional attempts have been consumed. Delays
// between attempts come from the supplied policy.
func Retry[T any](ctx context.Context, policy backoff.BackOff, maxRetries uint64, op func(ctx context.Context) (T, error)) (T, error) {
	var result T

	bo := backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx)
	err := backoff.Retry(func() error {
		v, opErr := op(ctx)
		if opErr != nil {
			return opErr
		}
		result = v
		return nil
	}, bo)

	return result, err
}

// LinearBackOff waits Interval on the first retry, 2*Interval on the second,
// and so on. Used for token endpoint retries where the delay grows linearly
// with the attempt number.
type LinearBackOff struct {
	Interval time.Duration

	attempt int
}

// NextBackOff implements backoff.BackOff.
func (b *LinearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.Interval
}

// Reset implements backoff.BackOff.
func (b *LinearBackOff) Reset() {
	b.attempt = 0
}

// UpstreamBackOff implements the transient-failure policy for data calls:
// honor a server-supplied Retry-After hint when one was recorded for the most
// recent attempt, otherwise wait 2^attempt * Base plus up to MaxJitter of
// random jitter.
type UpstreamBackOff struct {
	// Base is the first exponential delay. Default: 1 second.
	Base time.Duration

	// MaxJitter is the upper bound of the additive jitter. Default: 500ms.
	MaxJitter time.Duration

	mu         sync.Mutex
	attempt    int
	retryAfter time.Duration
}

// SetRetryAfter records a Retry-After hint consumed by the next delay only.
func (b *UpstreamBackOff) SetRetryAfter(d time.Duration) {
	b.mu.Lock()
	b.retryAfter = d
	b.mu.Unlock()
}

// NextBackOff implements backoff.BackOff.
func (b *UpstreamBackOff) NextBackOff() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.retryAfter > 0 {
		d := b.retryAfter
		b.retryAfter = 0
		b.attempt++
		return d
	}

	base := b.Base
	if base == 0 {
		base = time.Second
	}
	maxJitter := b.MaxJitter
	if maxJitter == 0 {
		maxJitter = 500 * time.Millisecond
	}

	d := (1 << b.attempt) * base
	b.attempt++
	return d + time.Duration(rand.Int63n(int64(maxJitter)))
}

// Reset implements backoff.BackOff.
func (b *UpstreamBackOff) Reset() {
	b.mu.Lock()
	b.attempt = 0
	b.retryAfter = 0
	b.mu.Unlock()
}
