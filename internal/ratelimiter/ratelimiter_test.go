package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow(t *testing.T) {
	t.Run("BurstBoundsBackToBackAccepts", func(t *testing.T) {
		limiter := New(1, 2)

		assert.True(t, limiter.Allow())
		assert.True(t, limiter.Allow())
		assert.False(t, limiter.Allow(), "third immediate accept must be denied")
	})

	t.Run("TokensRefillOverTime", func(t *testing.T) {
		limiter := New(100, 1)

		require.True(t, limiter.Allow())
		require.False(t, limiter.Allow())

		time.Sleep(20 * time.Millisecond)
		assert.True(t, limiter.Allow())
	})

	t.Run("ZeroRateIsUnlimited", func(t *testing.T) {
		limiter := New(0, 0)

		for i := 0; i < 10_000; i++ {
			require.True(t, limiter.Allow())
		}
	})
}

func TestWait(t *testing.T) {
	t.Run("ReturnsWhenTokenAvailable", func(t *testing.T) {
		limiter := New(1000, 1)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		assert.NoError(t, limiter.Wait(ctx))
	})

	t.Run("HonorsContextCancellation", func(t *testing.T) {
		limiter := New(1, 1)
		require.True(t, limiter.Allow())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		assert.Error(t, limiter.Wait(ctx))
	})
}

func TestTokens(t *testing.T) {
	limiter := New(10, 5)

	before := limiter.Tokens()
	require.True(t, limiter.Allow())

	assert.Less(t, limiter.Tokens(), before)
}
