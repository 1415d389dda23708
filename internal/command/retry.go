package command

import (
	"context"
	"errors"
)

// recoverable is implemented by errors that a retry loop may swallow.
type recoverable interface {
	Recoverable() bool
}

// IsRecoverable reports whether err is an operation-level failure that is
// worth retrying. Contract errors, timeouts and context cancellation are
// not recoverable and must surface immediately.
func IsRecoverable(err error) bool {
	var r recoverable
	return errors.As(err, &r) && r.Recoverable()
}

type retryConfig struct {
	attempts int
	log      Logger
}

// RetryOption adjusts the behavior of Retry.
type RetryOption func(*retryConfig)

// WithAttempts sets the maximum number of attempts (default 10).
func WithAttempts(n int) RetryOption {
	return func(c *retryConfig) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithRetryLogger logs swallowed failures with their attempt count.
func WithRetryLogger(l Logger) RetryOption {
	return func(c *retryConfig) { c.log = l }
}

// Retry runs op until it succeeds, retrying recoverable failures up to the
// configured number of attempts with no delay in between. The failure of
// the final attempt, and any non-recoverable failure, propagates unchanged.
func Retry[T any](ctx context.Context, op func(context.Context) (T, error), opts ...RetryOption) (T, error) {
	cfg := retryConfig{attempts: 10}
	for _, opt := range opts {
		opt(&cfg)
	}

	var zero T
	var err error
	for attempt := 1; attempt <= cfg.attempts; attempt++ {
		var v T
		v, err = op(ctx)
		if err == nil {
			return v, nil
		}
		if !IsRecoverable(err) {
			return zero, err
		}
		if cfg.log != nil {
			cfg.log.VerboseLog("call failed with %v, retry count: %d", err, attempt)
		}
	}
	return zero, err
}
