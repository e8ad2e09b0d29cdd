package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds the exponential retry loop used for blob and record store
// calls: BaseDelay doubling per attempt, capped at MaxDelay, jittered by
// the backoff library's randomization factor.
type Policy struct {
	MaxAttempts uint
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

var DefaultPolicy = Policy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    8 * time.Second,
}

// Error wraps the last underlying failure once attempts are exhausted or a
// terminal failure stops the loop.
type Error struct {
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gave up after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err is worth another attempt. Typed client
// errors decide for themselves; timeouts retry, cancellation never does.
// Untyped failures count as retryable here, Do caps them at one extra try.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

func isTyped(err error) bool {
	var r retryable
	return errors.As(err, &r) || errors.Is(err, context.DeadlineExceeded)
}

// Do runs op under p, sleeping between attempts with exponential backoff and
// jitter. Terminal failures short-circuit the loop; the returned error always
// carries the attempt count and the last underlying error.
func Do[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.MaxInterval = p.MaxDelay

	attempts := 0
	wrapped := func() (T, error) {
		attempts++
		v, err := op()
		if err == nil {
			return v, nil
		}
		if !IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		// untyped failures get exactly one retry before going terminal
		if !isTyped(err) && attempts >= 2 {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	v, err := backoff.Retry(ctx, wrapped, backoff.WithBackOff(bo), backoff.WithMaxTries(p.MaxAttempts))
	if err != nil {
		return v, &Error{Attempts: attempts, Err: err}
	}
	return v, nil
}

// linearBackOff grows the wait by a fixed step each attempt, capped. Used for
// record store write conflicts, which resolve fast and tolerate a larger
// attempt budget than network failures.
type linearBackOff struct {
	step    time.Duration
	cap     time.Duration
	attempt int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	d := time.Duration(l.attempt) * l.step
	if l.cap > 0 && d > l.cap {
		d = l.cap
	}
	return d
}

func (l *linearBackOff) Reset() {
	l.attempt = 0
}

// Linear returns a fixed-growth backoff.BackOff for conflict retry loops.
func Linear(step, cap time.Duration) backoff.BackOff {
	return &linearBackOff{step: step, cap: cap}
}
