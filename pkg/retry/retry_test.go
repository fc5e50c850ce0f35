package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOpts() []Option {
	return []Option{
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(5 * time.Millisecond),
		WithJitter(0),
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return Retryable(errors.New("transient"))
		}
		return nil
	}, fastOpts()...)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	cause := errors.New("still failing")
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Retryable(cause)
	}, fastOpts()...)

	// The original cause comes back unwrapped once attempts are exhausted.
	assert.Equal(t, cause, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	cause := errors.New("unique constraint violation")
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Permanent(cause)
	}, fastOpts()...)

	assert.Equal(t, cause, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryDoesNotRetryUnclassifiedErrors(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("unclassified")
	}, fastOpts()...)

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryRespectsRetryIf(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("unclassified")
	}, append(fastOpts(), WithRetryIf(func(err error) bool { return true }))...)

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		return Retryable(errors.New("transient"))
	}, fastOpts()...)

	require.Error(t, err)
	assert.Equal(t, 0, attempts)
}

func TestRetryOnRetryCallback(t *testing.T) {
	var retried []int
	opts := append(fastOpts(), WithOnRetry(func(attempt int, err error, delay time.Duration) {
		retried = append(retried, attempt)
	}))

	_ = Do(context.Background(), func(ctx context.Context) error {
		return Retryable(errors.New("transient"))
	}, opts...)

	assert.Equal(t, []int{1, 2}, retried)
}

func TestErrorClassification(t *testing.T) {
	cause := errors.New("boom")

	assert.True(t, IsRetryable(Retryable(cause)))
	assert.False(t, IsRetryable(cause))
	assert.True(t, IsPermanent(Permanent(cause)))
	assert.False(t, IsPermanent(Retryable(cause)))

	assert.ErrorIs(t, Retryable(cause), cause)
	assert.ErrorIs(t, Permanent(cause), cause)
	assert.Nil(t, Retryable(nil))
	assert.Nil(t, Permanent(nil))
}

func TestDoWithData(t *testing.T) {
	attempts := 0
	value, err := DoWithData(context.Background(), func(ctx context.Context) (int, error) {
		attempts++
		if attempts < 2 {
			return 0, Retryable(errors.New("transient"))
		}
		return 42, nil
	}, fastOpts()...)

	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestCalculateDelayBackoff(t *testing.T) {
	r := New(
		WithInitialDelay(10*time.Millisecond),
		WithMaxDelay(25*time.Millisecond),
		WithMultiplier(2.0),
		WithJitter(0),
	)

	assert.Equal(t, 10*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 20*time.Millisecond, r.calculateDelay(2))

	// Capped at MaxDelay.
	assert.Equal(t, 25*time.Millisecond, r.calculateDelay(3))
}
