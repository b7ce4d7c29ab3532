package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTrackerBudget(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemoryTracker(3)

	for i := 0; i < 3; i++ {
		require.NoError(t, tracker.CheckLimit(ctx, 1))
		require.NoError(t, tracker.RecordPost(ctx, 1))
	}

	err := tracker.CheckLimit(ctx, 1)
	require.Error(t, err)
	limited, ok := err.(*ErrLimited)
	require.True(t, ok)
	assert.Equal(t, int64(1), limited.AccountID)
	assert.Greater(t, limited.RetryAfter, time.Duration(0))

	// a different account has its own budget
	assert.NoError(t, tracker.CheckLimit(ctx, 2))
}

func TestMemoryTrackerLazyReset(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemoryTracker(1)

	current := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return current }

	require.NoError(t, tracker.RecordPost(ctx, 1))
	require.Error(t, tracker.CheckLimit(ctx, 1))

	// window over: the counter resets inside the next check
	current = current.Add(time.Hour + time.Second)
	assert.NoError(t, tracker.CheckLimit(ctx, 1))
}

func TestMemoryTrackerCooldown(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemoryTracker(10)

	current := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return current }

	require.NoError(t, tracker.SetCooldown(ctx, 1, 15*time.Minute))

	err := tracker.CheckLimit(ctx, 1)
	require.Error(t, err)
	limited, ok := err.(*ErrLimited)
	require.True(t, ok)
	assert.Equal(t, 15*time.Minute, limited.RetryAfter)

	// a shorter cooldown never shrinks the active window
	require.NoError(t, tracker.SetCooldown(ctx, 1, time.Minute))
	err = tracker.CheckLimit(ctx, 1)
	require.Error(t, err)
	assert.Equal(t, 15*time.Minute, err.(*ErrLimited).RetryAfter)

	current = current.Add(16 * time.Minute)
	assert.NoError(t, tracker.CheckLimit(ctx, 1))
}
