package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxRetries int) *Config {
	return &Config{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

type declaredError struct {
	retryable bool
}

func (e declaredError) Error() string     { return "declared" }
func (e declaredError) IsRetryable() bool { return e.retryable }

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, 5*time.Second, cfg.MaxDelay)
	assert.Equal(t, Exponential, cfg.Backoff)
}

func TestConfig_Delay(t *testing.T) {
	linear := LinearConfig(3, 60*time.Second)
	assert.Equal(t, 60*time.Second, linear.Delay(1))
	assert.Equal(t, 120*time.Second, linear.Delay(2))
	assert.Equal(t, 180*time.Second, linear.Delay(3))

	exp := &Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, exp.Delay(1))
	assert.Equal(t, 200*time.Millisecond, exp.Delay(2))
	assert.Equal(t, 400*time.Millisecond, exp.Delay(3))
	assert.Equal(t, time.Second, exp.Delay(10), "capped at MaxDelay")
	assert.Equal(t, 100*time.Millisecond, exp.Delay(0), "attempt clamps to 1")
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_MaxRetriesExhausted(t *testing.T) {
	expected := errors.New("persistent error")
	calls := 0
	err := Do(context.Background(), fastConfig(2), func() error {
		calls++
		return expected
	})

	assert.Equal(t, expected, err)
	assert.Equal(t, 3, calls, "initial attempt plus two retries")
}

func TestDo_ContextCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := LinearConfig(5, time.Hour)

	calls := 0
	err := Do(ctx, cfg, func() error {
		calls++
		cancel()
		return errors.New("boom")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoWithResult_ReturnsLastResult(t *testing.T) {
	calls := 0
	result, err := DoWithResult(context.Background(), fastConfig(1), func() (int, error) {
		calls++
		return calls * 10, errors.New("nope")
	})

	require.Error(t, err)
	assert.Equal(t, 20, result)
}

func TestDoIfRetryable(t *testing.T) {
	t.Run("permanent error returns immediately", func(t *testing.T) {
		calls := 0
		err := DoIfRetryable(context.Background(), fastConfig(3), func() error {
			calls++
			return errors.New("invalid api key")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("transient error retried until success", func(t *testing.T) {
		calls := 0
		err := DoIfRetryable(context.Background(), fastConfig(3), func() error {
			calls++
			if calls == 1 {
				return errors.New("503 service unavailable")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("repeated error type escalates", func(t *testing.T) {
		cfg := fastConfig(10)
		cfg.MaxSameErrorType = 2
		calls := 0
		err := DoIfRetryable(context.Background(), cfg, func() error {
			calls++
			return errors.New("429 too many requests")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "repeated error")
		assert.Equal(t, 2, calls)
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"declared retryable", declaredError{retryable: true}, true},
		{"declared permanent wins over message", declaredError{retryable: false}, false},
		{"wrapped declared", errors.Join(errors.New("ctx"), declaredError{retryable: true}), true},
		{"timeout text", errors.New("i/o timeout"), true},
		{"rate limit", errors.New("Rate limit exceeded"), true},
		{"overloaded", errors.New("model overloaded"), true},
		{"bad request", errors.New("400 bad request"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsPermanent(t *testing.T) {
	base := errors.New("invalid api key")

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, true},
		{"unclassified", errors.New("unexpected end of JSON input"), false},
		{"declared retryable", declaredError{retryable: true}, false},
		{"declared permanent", declaredError{retryable: false}, true},
		{"marked permanent", Permanent(base), true},
		{"wrapped marked permanent", errors.Join(errors.New("ctx"), Permanent(base)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPermanent(tt.err))
		})
	}

	assert.ErrorIs(t, Permanent(base), base)
	assert.False(t, IsRetryable(Permanent(errors.New("503 service unavailable"))))
	assert.NoError(t, Permanent(nil))
}

func TestClassifyErrorType(t *testing.T) {
	assert.Equal(t, "503", classifyErrorType(errors.New("status 503")))
	assert.Equal(t, "connection", classifyErrorType(errors.New("connection refused")))
	assert.Equal(t, "timeout", classifyErrorType(errors.New("request timed out")))
	assert.Equal(t, "unknown", classifyErrorType(errors.New("weird")))
}
