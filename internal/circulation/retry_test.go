package circulation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/erazemk/knjiznica/internal/store"
)

func TestRetryOnConflict_SucceedsAfterConflicts(t *testing.T) {
	calls := 0
	err := retryOnConflict(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("title 1: %w", store.ErrVersionConflict)
		}
		return nil
	}, WithBaseDelay(time.Millisecond))

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryOnConflict_OtherErrorsFailFast(t *testing.T) {
	calls := 0
	err := retryOnConflict(context.Background(), func(context.Context) error {
		calls++
		return ErrOutOfStock
	})

	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.Equal(t, 1, calls)
}

func TestRetryOnConflict_GivesUp(t *testing.T) {
	calls := 0
	err := retryOnConflict(context.Background(), func(context.Context) error {
		calls++
		return store.ErrVersionConflict
	}, WithMaxAttempts(4), WithBaseDelay(0))

	assert.ErrorIs(t, err, store.ErrVersionConflict)
	assert.Equal(t, 4, calls)
}

func TestRetryOnConflict_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retryOnConflict(ctx, func(context.Context) error {
		calls++
		cancel()
		return store.ErrVersionConflict
	}, WithBaseDelay(time.Hour))

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}

func TestRetryOptions_Validation(t *testing.T) {
	noop := func(context.Context) error { return nil }

	assert.ErrorIs(t, retryOnConflict(context.Background(), noop, WithMaxAttempts(0)), ErrInvalidMaxAttempts)
	assert.ErrorIs(t, retryOnConflict(context.Background(), noop, WithBaseDelay(-time.Second)), ErrNegativeBaseDelay)
	assert.ErrorIs(t, retryOnConflict(context.Background(), noop, WithJitterFactor(1.5)), ErrInvalidJitterFactor)
}
