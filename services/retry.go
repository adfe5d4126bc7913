package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"stock-analyzer/observability"
)

// RetryConfig bounds the attempts made for one provider request
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Jitter         float64 // +/- fraction applied to each backoff wait
}

var DefaultRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     10 * time.Second,
	Jitter:         0.2,
}

// permanentError marks a failure that another attempt cannot fix
// (bad credentials, unknown symbol, malformed request).
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so WithRetry returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// retryAfterHint is implemented by errors that carry a server-requested delay
type retryAfterHint interface {
	RetryAfterDelay() time.Duration
}

// nextDelay returns the wait before the next attempt and whether to make it.
// A server hint longer than MaxBackoff ends the retries.
func (c RetryConfig) nextDelay(backoff time.Duration, err error) (time.Duration, bool) {
	var hint retryAfterHint
	if errors.As(err, &hint) {
		if d := hint.RetryAfterDelay(); d > 0 {
			if d > c.MaxBackoff {
				return 0, false
			}
			return d, true
		}
	}
	if c.Jitter > 0 {
		spread := float64(backoff) * c.Jitter
		backoff += time.Duration(spread * (2*rand.Float64() - 1))
	}
	return min(backoff, c.MaxBackoff), true
}

// WithRetry calls fn until it succeeds, returns a permanent error, or the
// attempts run out. Waits double from InitialBackoff up to MaxBackoff.
func WithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
	backoff := config.InitialBackoff
	var err error

	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}
		if attempt >= config.MaxRetries {
			break
		}

		delay, ok := config.nextDelay(backoff, err)
		if !ok {
			return fmt.Errorf("giving up, server asked to wait longer than %s: %w", config.MaxBackoff, err)
		}
		observability.Warn("provider request failed, retrying",
			"attempt", attempt+1,
			"max_retries", config.MaxRetries,
			"delay", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-timer.C:
		}
		backoff = min(backoff*2, config.MaxBackoff)
	}

	return fmt.Errorf("failed after %d retries: %w", config.MaxRetries, err)
}
