package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	// Given: a function failing twice
	calls := 0
	fn := func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}

	// When: retrying
	err := Retry(context.Background(), fastRetry(), fn)

	// Then: it succeeds on the third call
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsBudget(t *testing.T) {
	cause := errors.New("down")
	calls := 0

	err := Retry(context.Background(), fastRetry(), func() error {
		calls++
		return cause
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, 4, calls)
}

func TestRetry_StopsOnNonRetryableError(t *testing.T) {
	// Given: a config that only retries retryable IndexErrors
	cfg := fastRetry()
	cfg.RetryIf = IsRetryable
	calls := 0

	// When: the function fails with a validation error
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return ValidationError("bad model", nil)
	})

	// Then: no retry happens
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_RespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, fastRetry(), func() error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithResult_ReturnsValue(t *testing.T) {
	calls := 0
	got, err := RetryWithResult(context.Background(), fastRetry(), func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("once")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}
