package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter counts failed logins per username and locks the account
// once the limit is reached.
type LoginLimiter interface {
	// LockedFor returns the remaining lock time, or 0 when not locked.
	LockedFor(ctx context.Context, username string) (time.Duration, error)
	// RegisterFailure records a failed attempt and reports whether the account is now locked.
	RegisterFailure(ctx context.Context, username string, maxAttempts int, lockout time.Duration) (bool, error)
	// Reset clears the failure count after a successful login.
	Reset(ctx context.Context, username string) error
}

// NewLoginLimiter returns a redis-backed limiter when client is non-nil,
// otherwise an in-process one.
func NewLoginLimiter(client *redis.Client) LoginLimiter {
	if client == nil {
		return NewMemoryLoginLimiter()
	}
	return &redisLoginLimiter{client: client}
}

const loginKeyPrefix = "ekaya_sales:login"

func failKey(username string) string {
	return loginKeyPrefix + ":fail:" + strings.ToLower(username)
}

func lockKey(username string) string {
	return loginKeyPrefix + ":lock:" + strings.ToLower(username)
}

type redisLoginLimiter struct {
	client *redis.Client
}

func (l *redisLoginLimiter) LockedFor(ctx context.Context, username string) (time.Duration, error) {
	ttl, err := l.client.TTL(ctx, lockKey(username)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read lock: %w", err)
	}
	// TTL reports -2 for a missing key and -1 for a key without expiry.
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (l *redisLoginLimiter) RegisterFailure(ctx context.Context, username string, maxAttempts int, lockout time.Duration) (bool, error) {
	key := failKey(username)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, lockout)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to count login failure: %w", err)
	}

	if incr.Val() < int64(maxAttempts) {
		return false, nil
	}

	if err := l.client.Set(ctx, lockKey(username), "1", lockout).Err(); err != nil {
		return false, fmt.Errorf("failed to lock account: %w", err)
	}
	if err := l.client.Del(ctx, key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return true, fmt.Errorf("failed to clear failure count: %w", err)
	}
	return true, nil
}

func (l *redisLoginLimiter) Reset(ctx context.Context, username string) error {
	if err := l.client.Del(ctx, failKey(username), lockKey(username)).Err(); err != nil {
		return fmt.Errorf("failed to reset login failures: %w", err)
	}
	return nil
}

// MemoryLoginLimiter is the single-process fallback used when Redis is not configured.
type MemoryLoginLimiter struct {
	mu      sync.Mutex
	entries map[string]*loginEntry
	now     func() time.Time
}

type loginEntry struct {
	failures    int
	lastFailure time.Time
	lockedUntil time.Time
}

// NewMemoryLoginLimiter creates an in-process limiter.
func NewMemoryLoginLimiter() *MemoryLoginLimiter {
	return &MemoryLoginLimiter{
		entries: make(map[string]*loginEntry),
		now:     time.Now,
	}
}

// LockedFor implements LoginLimiter.
func (l *MemoryLoginLimiter) LockedFor(_ context.Context, username string) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[strings.ToLower(username)]
	if !ok {
		return 0, nil
	}
	remaining := e.lockedUntil.Sub(l.now())
	if remaining <= 0 {
		return 0, nil
	}
	return remaining, nil
}

// RegisterFailure implements LoginLimiter.
func (l *MemoryLoginLimiter) RegisterFailure(_ context.Context, username string, maxAttempts int, lockout time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := strings.ToLower(username)
	e, ok := l.entries[key]
	if !ok {
		e = &loginEntry{}
		l.entries[key] = e
	}

	// Failures expire after the lockout window, like the redis counter TTL.
	if !e.lastFailure.IsZero() && now.Sub(e.lastFailure) > lockout {
		e.failures = 0
	}
	e.failures++
	e.lastFailure = now

	if e.failures < maxAttempts {
		return false, nil
	}
	e.failures = 0
	e.lockedUntil = now.Add(lockout)
	return true, nil
}

// Reset implements LoginLimiter.
func (l *MemoryLoginLimiter) Reset(_ context.Context, username string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, strings.ToLower(username))
	return nil
}
