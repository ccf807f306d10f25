// Package retrier re-runs transient backend calls with jittered
// exponential backoff. Commands forwarded to the bot carry their own
// idempotency ids, so re-sending on failure is safe.
package retrier

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultInitialInterval = 1 * time.Second
	defaultMaxInterval     = 30 * time.Second
	defaultMultiplier      = 2.0
	defaultMaxRetries      = 5
	defaultJitter          = 0.1
)

// Retrier runs failing calls again with exponentially growing,
// jittered pauses between attempts.
type Retrier struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	multiplier      float64
	maxRetries      int
	jitter          float64
}

// Option overrides one retry knob.
type Option func(*Retrier)

// WithInitialInterval sets the pause before the first retry.
func WithInitialInterval(d time.Duration) Option {
	return func(r *Retrier) {
		r.initialInterval = d
	}
}

// WithMaxInterval caps how long a pause may grow.
func WithMaxInterval(d time.Duration) Option {
	return func(r *Retrier) {
		r.maxInterval = d
	}
}

// WithMultiplier sets the growth factor between pauses.
func WithMultiplier(m float64) Option {
	return func(r *Retrier) {
		r.multiplier = m
	}
}

// WithMaxRetries sets how many retries follow the initial attempt.
func WithMaxRetries(n int) Option {
	return func(r *Retrier) {
		r.maxRetries = n
	}
}

// WithJitter sets the random spread (0.0 to 1.0) applied to each pause.
func WithJitter(j float64) Option {
	return func(r *Retrier) {
		r.jitter = j
	}
}

// New creates a Retrier with defaults and optional overrides.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		multiplier:      defaultMultiplier,
		maxRetries:      defaultMaxRetries,
		jitter:          defaultJitter,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Do runs fn until it succeeds, the retry budget is spent or ctx is
// cancelled. The last error is returned.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	pause := r.initialInterval

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if err := r.wait(ctx, pause); err != nil {
				return err
			}
			pause = r.grow(pause)
		}

		if err = fn(ctx); err == nil {
			return nil
		}
	}

	return err
}

// DoWithData is Do for calls that produce a value.
func DoWithData[T any](r *Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}

func (r *Retrier) wait(ctx context.Context, pause time.Duration) error {
	spread := (rand.Float64()*2 - 1) * r.jitter * float64(pause)
	d := time.Duration(float64(pause) + spread)
	if d < 0 {
		d = 0
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (r *Retrier) grow(pause time.Duration) time.Duration {
	next := time.Duration(float64(pause) * r.multiplier)
	if next > r.maxInterval {
		next = r.maxInterval
	}
	return next
}
