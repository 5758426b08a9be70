package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryOptions {
	return RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, fastRetry())

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		return errors.New("still broken")
	}, fastRetry())

	require.ErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryReturnsRecoverableImmediately(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		return ErrConflictingWrite
	}, fastRetry())

	require.ErrorIs(t, err, ErrConflictingWrite)
	assert.Equal(t, 1, attempts, "recoverable outcomes are never retried")
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error {
		return errors.New("transient")
	}, fastRetry())
	require.ErrorIs(t, err, context.Canceled)
}
