package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/llm"
)

const tokenUsageKeyPrefix = "ekaya_sales:tokens:"

// tokenCounter stores the number of tokens spent per UTC day.
type tokenCounter interface {
	Add(ctx context.Context, day string, tokens int) error
	Get(ctx context.Context, day string) (int, error)
}

// dailyLimitFunc returns today's token limit; 0 means unlimited.
type dailyLimitFunc func(ctx context.Context) (int, error)

// TokenBudget implements llm.UsageMeter against the daily_token_limit setting.
type TokenBudget struct {
	counter tokenCounter
	limit   dailyLimitFunc
	now     func() time.Time
	logger  *zap.Logger
}

// NewTokenBudget creates a budget counting in redis when client is non-nil,
// otherwise in process memory.
func NewTokenBudget(client *redis.Client, limit dailyLimitFunc, logger *zap.Logger) *TokenBudget {
	var counter tokenCounter = newMemoryTokenCounter()
	if client != nil {
		counter = &redisTokenCounter{client: client}
	}
	return &TokenBudget{
		counter: counter,
		limit:   limit,
		now:     time.Now,
		logger:  logger.Named("token-budget"),
	}
}

func (b *TokenBudget) today() string {
	return b.now().UTC().Format("2006-01-02")
}

// CheckBudget fails with apperrors.ErrTokenLimitReached, which also matches
// apperrors.ErrAIDisabled, once today's usage reaches the limit.
func (b *TokenBudget) CheckBudget(ctx context.Context) error {
	limit, err := b.limit(ctx)
	if err != nil {
		return fmt.Errorf("read daily token limit: %w", err)
	}
	if limit <= 0 {
		return nil
	}

	used, err := b.counter.Get(ctx, b.today())
	if err != nil {
		// Counter errors fail open.
		b.logger.Warn("Token usage unavailable, allowing call", zap.Error(err))
		return nil
	}
	if used >= limit {
		return fmt.Errorf("%w: %w (%d of %d tokens used today)",
			apperrors.ErrAIDisabled, apperrors.ErrTokenLimitReached, used, limit)
	}
	return nil
}

// RecordUsage adds tokens to today's counter.
func (b *TokenBudget) RecordUsage(ctx context.Context, tokens int) {
	if tokens <= 0 {
		return
	}
	if err := b.counter.Add(ctx, b.today(), tokens); err != nil {
		b.logger.Warn("Failed to record token usage", zap.Int("tokens", tokens), zap.Error(err))
	}
}

// UsedToday returns the tokens spent so far today.
func (b *TokenBudget) UsedToday(ctx context.Context) (int, error) {
	return b.counter.Get(ctx, b.today())
}

var _ llm.UsageMeter = (*TokenBudget)(nil)

type redisTokenCounter struct {
	client *redis.Client
}

func (c *redisTokenCounter) Add(ctx context.Context, day string, tokens int) error {
	key := tokenUsageKeyPrefix + day
	pipe := c.client.TxPipeline()
	pipe.IncrBy(ctx, key, int64(tokens))
	pipe.Expire(ctx, key, 48*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisTokenCounter) Get(ctx context.Context, day string) (int, error) {
	n, err := c.client.Get(ctx, tokenUsageKeyPrefix+day).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

type memoryTokenCounter struct {
	mu   sync.Mutex
	days map[string]int
}

func newMemoryTokenCounter() *memoryTokenCounter {
	return &memoryTokenCounter{days: make(map[string]int)}
}

func (c *memoryTokenCounter) Add(_ context.Context, day string, tokens int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Only today's counter is ever read.
	for d := range c.days {
		if d != day {
			delete(c.days, d)
		}
	}
	c.days[day] += tokens
	return nil
}

func (c *memoryTokenCounter) Get(_ context.Context, day string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.days[day], nil
}
