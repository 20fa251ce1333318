// Package retry runs operations under an exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "social-support/internal/common/errors"
)

// Policy describes how often and when an operation is retried. MaxAttempts
// counts the first call, so two retries means MaxAttempts = 3.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	IsRetryable func(error) bool

	// OnRetry is called before sleeping; attempt is the one that just failed.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// FromRetries builds a policy with the default retryability rule.
func FromRetries(maxRetries int, baseDelay time.Duration) Policy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return Policy{
		MaxAttempts: maxRetries + 1,
		BaseDelay:   baseDelay,
		IsRetryable: apperrors.IsRetryable,
	}
}

// Delay returns the backoff before the retry that follows the given failed
// attempt (1-based): BaseDelay, 2*BaseDelay, 4*BaseDelay, ...
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay * time.Duration(1<<(attempt-1))
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not retryable regardless of the policy.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do calls op until it succeeds, returns a non-retryable error, the attempts
// are exhausted or ctx is done. The last error is returned unwrapped from any
// Permanent marker.
func Do(ctx context.Context, p Policy, op func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if p.IsRetryable != nil && !p.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, lastErr)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", ctx.Err(), lastErr)
		}
	}
	return lastErr
}
