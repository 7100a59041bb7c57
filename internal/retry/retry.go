// Package retry runs idempotent operations with exponential backoff inside a wall-clock budget.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Default policy values.
const (
	DefaultInitialInterval     = 500 * time.Millisecond
	DefaultMultiplier          = 1.5
	DefaultRandomizationFactor = 0.5
	DefaultMaxInterval         = 60 * time.Second
	DefaultBudget              = 180 * time.Second
)

var (
	// ErrExhausted is matched by errors returned when the budget elapsed without success.
	ErrExhausted = errors.New("retry budget exhausted")

	// ErrPermanent is matched by errors returned when the operation failed permanently.
	ErrPermanent = errors.New("permanent failure")
)

// Policy configures exponential backoff for one call.
type Policy struct {
	InitialInterval     time.Duration
	Multiplier          float64
	RandomizationFactor float64 // jitter, 0 disables
	MaxInterval         time.Duration
	Budget              time.Duration // total elapsed time across attempts
}

// DefaultPolicy returns the policy used for remote lookups.
func DefaultPolicy() Policy {
	return Policy{
		InitialInterval:     DefaultInitialInterval,
		Multiplier:          DefaultMultiplier,
		RandomizationFactor: DefaultRandomizationFactor,
		MaxInterval:         DefaultMaxInterval,
		Budget:              DefaultBudget,
	}
}

// withDefaults fills zero fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.InitialInterval <= 0 {
		p.InitialInterval = d.InitialInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = d.MaxInterval
	}
	if p.Budget <= 0 {
		p.Budget = d.Budget
	}
	return p
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.RandomizationFactor
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = p.Budget
	return b
}

// Operation is a single attempt. It must be free of hidden state so it can be called repeatedly.
type Operation[T any] func(ctx context.Context) (T, error)

// Permanent marks err as terminal: Do stops without further attempts.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// ExhaustedError reports a call that ran out of budget.
type ExhaustedError struct {
	Attempts int
	Elapsed  time.Duration
	Last     error // error of the final attempt, nil if a value arrived after the deadline
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry budget exhausted after %d attempts in %s: %v", e.Attempts, e.Elapsed.Round(time.Millisecond), e.Last)
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Do calls op until it returns a value, returns a Permanent error, or p.Budget elapses.
// Every retryable error is retried. Attempts receive a context that expires with the
// budget, and a value produced after the deadline is discarded, so Do never returns a
// value later than p.Budget after it was called.
func Do[T any](ctx context.Context, p Policy, op Operation[T]) (T, error) {
	return DoNotify(ctx, p, op, nil)
}

// DoNotify is Do with a callback invoked before each backoff sleep.
func DoNotify[T any](ctx context.Context, p Policy, op Operation[T], notify func(err error, wait time.Duration)) (T, error) {
	var zero T

	p = p.withDefaults()
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, p.Budget)
	defer cancel()

	var (
		attempts  int
		last      error
		permanent bool
	)
	v, err := backoff.RetryNotifyWithData(func() (T, error) {
		attempts++
		v, err := op(callCtx)
		if err != nil {
			last = err
			var perm *backoff.PermanentError
			permanent = errors.As(err, &perm)
		}
		return v, err
	}, backoff.WithContext(p.backOff(), callCtx), notify)

	switch {
	case err == nil && callCtx.Err() == nil:
		return v, nil
	case permanent:
		return zero, fmt.Errorf("%w: %w", ErrPermanent, err)
	case ctx.Err() != nil:
		return zero, fmt.Errorf("retry aborted after %d attempts: %w", attempts, ctx.Err())
	default:
		if err == nil {
			last = nil
		}
		return zero, &ExhaustedError{Attempts: attempts, Elapsed: time.Since(start), Last: last}
	}
}
