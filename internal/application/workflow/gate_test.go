package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGate_AllowUntilLimit(t *testing.T) {
	gate := NewMemoryGate(3, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := gate.Allow(ctx)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, retryAfter, err := gate.Allow(ctx)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
}

func TestMemoryGate_WindowSlides(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gate := NewMemoryGate(1, time.Hour).WithClock(func() time.Time { return now })
	ctx := context.Background()

	allowed, _, err := gate.Allow(ctx)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, retryAfter, err := gate.Allow(ctx)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, time.Hour, retryAfter)

	// 窗口滑过后配额恢复
	now = now.Add(61 * time.Minute)
	allowed, _, err = gate.Allow(ctx)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryGate_StatusDoesNotConsume(t *testing.T) {
	gate := NewMemoryGate(1, time.Hour)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, _, err := gate.Status(ctx)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, _, err := gate.Allow(ctx)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = gate.Status(ctx)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestMemoryGate_RefundRestoresSlot(t *testing.T) {
	gate := NewMemoryGate(1, time.Hour)
	ctx := context.Background()

	allowed, _, err := gate.Allow(ctx)
	require.NoError(t, err)
	require.True(t, allowed)

	require.NoError(t, gate.Refund(ctx))

	allowed, _, err = gate.Allow(ctx)
	require.NoError(t, err)
	assert.True(t, allowed)

	// 空窗口退还是 no-op
	require.NoError(t, gate.Reset(ctx))
	require.NoError(t, gate.Refund(ctx))
	allowed, _, err = gate.Status(ctx)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryGate_Reset(t *testing.T) {
	gate := NewMemoryGate(1, time.Hour)
	ctx := context.Background()

	_, _, err := gate.Allow(ctx)
	require.NoError(t, err)

	require.NoError(t, gate.Reset(ctx))

	allowed, _, err := gate.Allow(ctx)
	require.NoError(t, err)
	assert.True(t, allowed)
}
