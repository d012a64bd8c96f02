package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
)

func newTestBudget(limit int) (*TokenBudget, *time.Time) {
	now := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	b := NewTokenBudget(nil, func(ctx context.Context) (int, error) { return limit, nil }, zap.NewNop())
	b.now = func() time.Time { return now }
	return b, &now
}

func TestTokenBudget_RefusesOnceLimitReached(t *testing.T) {
	b, _ := newTestBudget(100)
	ctx := context.Background()

	require.NoError(t, b.CheckBudget(ctx))
	b.RecordUsage(ctx, 60)
	require.NoError(t, b.CheckBudget(ctx))
	b.RecordUsage(ctx, 40)

	err := b.CheckBudget(ctx)
	assert.ErrorIs(t, err, apperrors.ErrTokenLimitReached)
	assert.ErrorIs(t, err, apperrors.ErrAIDisabled)
}

func TestTokenBudget_ZeroLimitIsUnlimited(t *testing.T) {
	b, _ := newTestBudget(0)
	ctx := context.Background()

	b.RecordUsage(ctx, 1_000_000)
	assert.NoError(t, b.CheckBudget(ctx))
}

func TestTokenBudget_ResetsAtUTCMidnight(t *testing.T) {
	b, now := newTestBudget(100)
	ctx := context.Background()

	b.RecordUsage(ctx, 100)
	require.Error(t, b.CheckBudget(ctx))

	*now = now.Add(2 * time.Hour)
	assert.NoError(t, b.CheckBudget(ctx))
	used, err := b.UsedToday(ctx)
	require.NoError(t, err)
	assert.Zero(t, used)
}

func TestTokenBudget_IgnoresNonPositiveUsage(t *testing.T) {
	b, _ := newTestBudget(10)
	ctx := context.Background()

	b.RecordUsage(ctx, 0)
	b.RecordUsage(ctx, -5)
	used, err := b.UsedToday(ctx)
	require.NoError(t, err)
	assert.Zero(t, used)
}

func TestTokenBudget_LimitErrorPropagates(t *testing.T) {
	b := NewTokenBudget(nil, func(ctx context.Context) (int, error) { return 0, errors.New("db down") }, zap.NewNop())
	assert.Error(t, b.CheckBudget(context.Background()))
}
