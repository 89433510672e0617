// Copyright 2025 Blockscout

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockscout/indexing-core/internal/errorkind"
)

func TestHarness_RetriesUntilSuccess(t *testing.T) {
	h := New(Policy{Interval: time.Millisecond}, nil)

	attempts := 0
	err := h.Do(context.Background(), "stream-1", nil, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errorkind.New(errorkind.Upstream, "transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, int64(2), h.Attempts())
	assert.Equal(t, int64(0), h.Exhausted())
}

func TestHarness_NonRetryableReturnsImmediately(t *testing.T) {
	h := New(Policy{Interval: time.Millisecond}, nil)

	attempts := 0
	err := h.Do(context.Background(), "stream-2", nil, func(ctx context.Context) error {
		attempts++
		return errorkind.New(errorkind.InvalidArgument, "bad input")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, errorkind.InvalidArgument, errorkind.KindOf(err))
}

func TestHarness_ExhaustsMaxAttemptsAndMarksFailed(t *testing.T) {
	h := New(Policy{Interval: time.Millisecond, MaxAttempts: 2}, nil)

	err := h.Do(context.Background(), "stream-3", nil, func(ctx context.Context) error {
		return errorkind.New(errorkind.Upstream, "always fails")
	})

	require.Error(t, err)
	assert.Equal(t, int64(1), h.Exhausted())
	_, failed := h.FailedKeys()["stream-3"]
	assert.True(t, failed)
}

func TestHarness_CustomShouldRetry(t *testing.T) {
	h := New(Policy{Interval: time.Millisecond}, nil)
	sentinel := errors.New("custom transient")

	attempts := 0
	err := h.Do(context.Background(), "stream-4", func(err error) bool {
		return errors.Is(err, sentinel)
	}, func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return sentinel
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestHarness_ContextCancellationStopsRetry(t *testing.T) {
	h := New(Policy{Interval: 50 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := h.Do(ctx, "stream-5", nil, func(ctx context.Context) error {
		return errorkind.New(errorkind.Upstream, "never succeeds")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
