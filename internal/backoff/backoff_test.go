package backoff

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonpython/gridmatch/internal/model"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func() error {
		attempts++
		if attempts < MaxAttempts {
			return &model.TransientBackendError{Op: "test", Err: errors.New("boom")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, MaxAttempts, attempts)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func() error {
		attempts++
		return &model.TransientBackendError{Op: "test", Err: errors.New("boom")}
	})
	assert.Error(t, err)
	assert.Equal(t, MaxAttempts, attempts)
}

func TestRetryDoesNotRetryNonTransientErrors(t *testing.T) {
	attempts := 0
	sentinel := errors.New("permanent")
	err := Retry(context.Background(), func() error {
		attempts++
		return sentinel
	})
	assert.Equal(t, sentinel, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Retry(ctx, func() error {
		attempts++
		return &model.TransientBackendError{Op: "test", Err: errors.New("boom")}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}
