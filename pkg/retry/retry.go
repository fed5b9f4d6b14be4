package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

var (
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	ErrContextCanceled    = errors.New("context canceled during retry")
)

// Config contains retry configuration
type Config struct {
	// MaxRetries is the number of retry attempts after the initial one
	MaxRetries int
	// InitialInterval is the first backoff interval
	InitialInterval time.Duration
	// MaxInterval caps the backoff interval
	MaxInterval time.Duration
	// Multiplier grows the interval after each retry
	Multiplier float64
	// JitterFactor (0-1) randomizes the interval to avoid thundering herd
	JitterFactor float64
}

// DefaultConfig returns the default backoff schedule: 1s, 2s, 4s (±10%)
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:      3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}

// Operation is the function to be retried
type Operation func(ctx context.Context) error

// PermanentError marks an error that must not be retried
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as not retryable
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Result contains the outcome of a retried operation
type Result struct {
	// Err is the final error (nil on success)
	Err error
	// Attempts is the total number of attempts made
	Attempts int
	// LastError is the error from the last attempt
	LastError error
}

// Do executes op with exponential backoff until it succeeds, returns a
// permanent error, exhausts retries, or the context is done
func Do(ctx context.Context, config *Config, op Operation) *Result {
	if config == nil {
		config = DefaultConfig()
	}

	result := &Result{}
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		if ctx.Err() != nil {
			result.Err = ErrContextCanceled
			result.LastError = lastErr
			return result
		}

		err := op(ctx)
		if err == nil {
			return result
		}

		lastErr = err

		var permErr *PermanentError
		if errors.As(err, &permErr) {
			result.Err = permErr.Err
			result.LastError = permErr.Err
			return result
		}

		if attempt == config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			result.Err = ErrContextCanceled
			result.LastError = lastErr
			return result
		case <-time.After(interval(config, attempt)):
		}
	}

	result.Err = ErrMaxRetriesExceeded
	result.LastError = lastErr
	return result
}

func interval(config *Config, attempt int) time.Duration {
	d := float64(config.InitialInterval) * math.Pow(config.Multiplier, float64(attempt))

	if config.JitterFactor > 0 {
		jitter := d * config.JitterFactor
		d = d + (rand.Float64()*2-1)*jitter
	}

	if d > float64(config.MaxInterval) {
		d = float64(config.MaxInterval)
	}
	if d < 0 {
		d = float64(config.InitialInterval)
	}

	return time.Duration(d)
}
