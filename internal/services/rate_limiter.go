package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter admits or rejects requests per client key using a fixed
// window that starts at the first request seen for that key.
type RateLimiter interface {
	// Allow counts one request for key and reports whether it is within the limit.
	Allow(ctx context.Context, key string) (bool, error)
	// Hit counts one request for key and returns the count in the current window.
	Hit(ctx context.Context, key string) (int64, error)
	// Limit returns the configured ceiling per window.
	Limit() int
}

type windowEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryRateLimiter keeps counters in process. Expired entries are dropped
// lazily on lookup; when capacity is reached the oldest window is evicted.
type MemoryRateLimiter struct {
	mu       sync.Mutex
	entries  map[string]*windowEntry
	limit    int
	window   time.Duration
	capacity int
	now      func() time.Time
}

func NewMemoryRateLimiter(limit int, window time.Duration, capacity int) *MemoryRateLimiter {
	if capacity <= 0 {
		capacity = 500
	}
	return &MemoryRateLimiter{
		entries:  make(map[string]*windowEntry),
		limit:    limit,
		window:   window,
		capacity: capacity,
		now:      time.Now,
	}
}

func (l *MemoryRateLimiter) Limit() int { return l.limit }

func (l *MemoryRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := l.Hit(ctx, key)
	return n <= int64(l.limit), err
}

func (l *MemoryRateLimiter) Hit(_ context.Context, key string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if ok && !now.Before(e.expiresAt) {
		delete(l.entries, key)
		ok = false
	}
	if !ok {
		if len(l.entries) >= l.capacity {
			l.evictLocked(now)
		}
		e = &windowEntry{expiresAt: now.Add(l.window)}
		l.entries[key] = e
	}

	e.count++
	return int64(e.count), nil
}

// evictLocked drops expired entries, then the oldest window if still full.
func (l *MemoryRateLimiter) evictLocked(now time.Time) {
	var oldestKey string
	var oldest time.Time
	for k, e := range l.entries {
		if !now.Before(e.expiresAt) {
			delete(l.entries, k)
			continue
		}
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey, oldest = k, e.expiresAt
		}
	}
	if len(l.entries) >= l.capacity && oldestKey != "" {
		delete(l.entries, oldestKey)
	}
}

// incrWindow increments the counter and starts its TTL on the first hit,
// in one round trip so concurrent callers cannot lose an increment.
var incrWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RedisRateLimiter shares counters between instances through Redis.
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRedisRateLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

func (l *RedisRateLimiter) Limit() int { return l.limit }

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := l.Hit(ctx, key)
	if err != nil {
		return false, err
	}
	return n <= int64(l.limit), nil
}

func (l *RedisRateLimiter) Hit(ctx context.Context, key string) (int64, error) {
	n, err := incrWindow.Run(ctx, l.client, []string{l.prefix + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("rate limit counter: %w", err)
	}
	return n, nil
}
