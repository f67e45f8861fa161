package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJitteredLimiterDelaysSecondCall(t *testing.T) {
	l := NewJitteredLimiter(30*time.Millisecond, 30*time.Millisecond)

	require.NoError(t, l.Wait(context.Background()))

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestJitteredLimiterRespectsCancellation(t *testing.T) {
	l := NewJitteredLimiter(5*time.Second, 5*time.Second)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestJitteredLimiterSwapsInvertedBounds(t *testing.T) {
	l := NewJitteredLimiter(100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, l.minDelay, l.maxDelay)
}

func TestAdaptiveLimiterBacksOffAfterErrorStreak(t *testing.T) {
	l := NewAdaptiveLimiter(time.Second, 2*time.Second)

	for i := 0; i < backoffAfter; i++ {
		l.RecordError()
	}

	assert.Greater(t, l.minDelay, time.Second)
	assert.Greater(t, l.maxDelay, 2*time.Second)
}

func TestAdaptiveLimiterSuccessResetsErrorStreak(t *testing.T) {
	l := NewAdaptiveLimiter(time.Second, 2*time.Second)

	l.RecordError()
	l.RecordError()
	l.RecordSuccess()
	l.RecordError()
	l.RecordError()

	assert.Equal(t, time.Second, l.minDelay)
}

func TestAdaptiveLimiterRecoversAfterSuccessStreak(t *testing.T) {
	l := NewAdaptiveLimiter(time.Second, 2*time.Second)

	for i := 0; i < recoverAfter; i++ {
		l.RecordSuccess()
	}

	assert.Less(t, l.minDelay, time.Second)
}
