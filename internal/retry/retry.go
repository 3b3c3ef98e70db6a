// Package retry runs an operation with exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/desertthunder/spotsync/internal/shared"
)

// Config holds retry configuration.
type Config struct {
	MaxRetries     int           // Retries after the first attempt
	InitialBackoff time.Duration // Delay before the first retry
	MaxBackoff     time.Duration // Upper bound on any single delay
	Multiplier     float64       // Backoff growth per attempt
	JitterFraction float64       // Fraction of the backoff applied as +/- jitter
}

// DefaultConfig returns the backoff used for stream fetches.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// ErrorClassifier reports whether an error is worth another attempt.
type ErrorClassifier func(error) bool

// IsRetryable treats cancellation and permanent remote answers as final and everything else as transient.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, shared.ErrTrackUnavailable),
		errors.Is(err, shared.ErrAuthFailed),
		errors.Is(err, shared.ErrInvalidIdentifier):
		return false
	default:
		return true
	}
}

// Do calls fn until it succeeds, the classifier rejects its error, the context ends
// or cfg.MaxRetries retries are spent.
func Do(ctx context.Context, cfg Config, classifier ErrorClassifier, fn func(context.Context) error) error {
	if classifier == nil {
		classifier = IsRetryable
	}

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !classifier(err) {
			return err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		sleep := min(backoff+jitter(backoff, cfg.JitterFraction), cfg.MaxBackoff)
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff = min(time.Duration(float64(backoff)*cfg.Multiplier), cfg.MaxBackoff)
	}

	return &Error{Err: lastErr, Retries: cfg.MaxRetries}
}

// jitter returns a random duration in [-fraction*d, +fraction*d].
func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return 0
	}
	spread := float64(d) * fraction
	return time.Duration((rand.Float64() - 0.5) * 2 * spread)
}

// Error is returned once every retry has failed.
type Error struct {
	Err     error
	Retries int
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed after %d retries: %v", e.Retries, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
