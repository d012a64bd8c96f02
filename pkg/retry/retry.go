package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Backoff selects how the wait between attempts grows.
type Backoff int

const (
	// Exponential multiplies the delay by Multiplier after each attempt.
	Exponential Backoff = iota
	// Linear waits InitialDelay * attempt (step, 2*step, 3*step...).
	Linear
)

// Config defines retry behavior.
type Config struct {
	MaxRetries       int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	Multiplier       float64
	Backoff          Backoff
	JitterFactor     float64 // 0.0-1.0
	MaxSameErrorType int     // after N consecutive same-type errors, treat as permanent (0 disables)
}

// DefaultConfig returns defaults for database and short network operations:
// 3 retries, 100ms initial delay doubling up to 5s, 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:       3,
		InitialDelay:     100 * time.Millisecond,
		MaxDelay:         5 * time.Second,
		Multiplier:       2.0,
		Backoff:          Exponential,
		JitterFactor:     0.1,
		MaxSameErrorType: 5,
	}
}

// LinearConfig returns a config that waits step, 2*step, ... between attempts.
// Background AI tasks use it with a 60s step.
func LinearConfig(maxRetries int, step time.Duration) *Config {
	return &Config{
		MaxRetries:   maxRetries,
		InitialDelay: step,
		Backoff:      Linear,
	}
}

// Delay returns the wait before retry number attempt (1-based), without jitter.
func (c *Config) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var d time.Duration
	switch c.Backoff {
	case Linear:
		d = c.InitialDelay * time.Duration(attempt)
	default:
		d = c.InitialDelay
		mult := c.Multiplier
		if mult <= 0 {
			mult = 1
		}
		for i := 1; i < attempt; i++ {
			d = time.Duration(float64(d) * mult)
			if c.MaxDelay > 0 && d > c.MaxDelay {
				break
			}
		}
	}

	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// wait blocks for the delay of the given attempt or until ctx is done.
func (c *Config) wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(applyJitter(c.Delay(attempt), c.JitterFactor))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do executes fn until it succeeds or MaxRetries retries are exhausted.
// Returns the last error; returns ctx.Err() if cancelled while waiting.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult executes fn and returns both result and error.
// The last result is returned even on error.
func DoWithResult[T any](ctx context.Context, cfg *Config, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var result T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}
		result, lastErr = r, err

		if attempt < cfg.MaxRetries {
			if werr := cfg.wait(ctx, attempt+1); werr != nil {
				return result, werr
			}
		}
	}

	return result, lastErr
}

// DoIfRetryable retries only transient errors. Permanent errors return immediately.
// After MaxSameErrorType consecutive failures of the same kind the error is
// treated as permanent.
func DoIfRetryable(ctx context.Context, cfg *Config, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	sameErrorCount := 0
	var lastErrorType string

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}

		currentErrorType := classifyErrorType(err)
		if currentErrorType == lastErrorType {
			sameErrorCount++
			if cfg.MaxSameErrorType > 0 && sameErrorCount >= cfg.MaxSameErrorType {
				return fmt.Errorf("repeated error (%d times, type=%s): %w", sameErrorCount, currentErrorType, err)
			}
		} else {
			sameErrorCount = 1
			lastErrorType = currentErrorType
		}

		if attempt < cfg.MaxRetries {
			if werr := cfg.wait(ctx, attempt+1); werr != nil {
				return werr
			}
		}
	}

	return lastErr
}

// RetryableError is implemented by errors that declare their own retryability.
type RetryableError interface {
	error
	IsRetryable() bool
}

type permanentError struct{ err error }

func (e *permanentError) Error() string     { return e.err.Error() }
func (e *permanentError) Unwrap() error     { return e.err }
func (e *permanentError) IsRetryable() bool { return false }

// Permanent marks err as not worth another attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err rules out another attempt: the context was
// cancelled or an error in the chain declares itself non-retryable. Errors
// that carry no classification are not permanent.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var r RetryableError
	if errors.As(err, &r) {
		return !r.IsRetryable()
	}
	return false
}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"timeout",
	"timed out",
	"temporary failure",
	"too many connections",
	"deadlock",
	"network is unreachable",
	"429",
	"500",
	"502",
	"503",
	"504",
	"rate limit",
	"service unavailable",
	"too many requests",
	"overloaded",
}

// IsRetryable reports whether err is transient. Errors implementing
// RetryableError anywhere in the chain decide for themselves; otherwise the
// message is matched against known transient failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var r RetryableError
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// classifyErrorType buckets an error so repeated failures can be detected.
func classifyErrorType(err error) string {
	if err == nil {
		return "nil"
	}

	errStr := strings.ToLower(err.Error())

	for _, code := range []string{"503", "502", "504", "500", "429"} {
		if strings.Contains(errStr, code) {
			return code
		}
	}

	switch {
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "connection reset"):
		return "connection"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "timed out"):
		return "timeout"
	case strings.Contains(errStr, "rate limit"), strings.Contains(errStr, "too many requests"):
		return "rate_limit"
	case strings.Contains(errStr, "overloaded"):
		return "overloaded"
	}
	return "unknown"
}
