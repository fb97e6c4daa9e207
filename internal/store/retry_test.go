package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRetry_SucceedsAfterConflicts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(5), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("commit: %w", ErrConflict)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), fastRetry(5), func() error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(4), func() error {
		calls++
		return ErrConflict
	})

	assert.True(t, IsConflict(err))
	assert.Equal(t, 4, calls)
}
