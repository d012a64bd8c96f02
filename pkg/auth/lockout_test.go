package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLoginLimiter_LocksAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLoginLimiter()
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		locked, err := l.RegisterFailure(ctx, "Alice", 3, 30*time.Minute)
		require.NoError(t, err)
		assert.False(t, locked)
	}

	locked, err := l.RegisterFailure(ctx, "alice", 3, 30*time.Minute)
	require.NoError(t, err)
	assert.True(t, locked, "usernames are case-insensitive")

	remaining, err := l.LockedFor(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, remaining)

	now = now.Add(31 * time.Minute)
	remaining, err = l.LockedFor(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestMemoryLoginLimiter_ResetClearsFailures(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLoginLimiter()

	_, _ = l.RegisterFailure(ctx, "bob", 2, time.Minute)
	require.NoError(t, l.Reset(ctx, "bob"))

	locked, err := l.RegisterFailure(ctx, "bob", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestMemoryLoginLimiter_OldFailuresExpire(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLoginLimiter()
	now := time.Now()
	l.now = func() time.Time { return now }

	_, _ = l.RegisterFailure(ctx, "carol", 2, time.Minute)
	now = now.Add(2 * time.Minute)

	locked, err := l.RegisterFailure(ctx, "carol", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestNewLoginLimiter_FallsBackToMemory(t *testing.T) {
	_, ok := NewLoginLimiter(nil).(*MemoryLoginLimiter)
	assert.True(t, ok)
}
