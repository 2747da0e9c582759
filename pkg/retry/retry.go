// Package retry provides bounded retry with exponential backoff for
// transient remote failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrExhausted wraps the last error after all attempts have failed.
	ErrExhausted = errors.New("retry attempts exhausted")
	// ErrInvalidPolicy indicates a misconfigured retry policy.
	ErrInvalidPolicy = errors.New("invalid retry policy")
)

// Policy holds the retry configuration. The zero value is not usable;
// construct via DefaultPolicy or set all fields explicitly.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the delay after the first failed attempt.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth of the delay.
	MaxDelay time.Duration
}

// DefaultPolicy returns the retry policy used for batch processing.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// permanentError marks an error that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do returns it immediately without consuming
// further attempts. Used for malformed responses and other failures
// where a retry would produce the same result.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Do invokes op up to policy.MaxAttempts times. After failed attempt k
// (starting at 0) it sleeps min(BaseDelay * 2^k, MaxDelay) before the
// next attempt. The sleep respects ctx cancellation. The last error is
// returned wrapped in ErrExhausted when all attempts fail; errors marked
// Permanent abort immediately.
func Do(ctx context.Context, policy Policy, logger *logrus.Logger, op func() error) error {
	if policy.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max attempts must be positive, got %d", ErrInvalidPolicy, policy.MaxAttempts)
	}

	var lastErr error
	delay := policy.BaseDelay

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		err := op()
		if err == nil {
			if attempt > 0 && logger != nil {
				logger.WithField("attempt", attempt+1).Debug("Operation succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if IsPermanent(err) {
			return err
		}

		if attempt == policy.MaxAttempts-1 {
			break
		}

		if logger != nil {
			logger.WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"backoff": delay.String(),
			}).WithError(err).Debug("Retrying after backoff")
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry interrupted: %w", ctx.Err())
		case <-time.After(delay):
		}

		delay *= 2
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, policy.MaxAttempts, lastErr)
}
