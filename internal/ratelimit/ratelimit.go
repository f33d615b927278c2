// Package ratelimit throttles repeated actions per key. It backs password
// attempts against share links and guest comment posting.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/xxxsen/tribute/internal/metrics"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryLimiter is a per-key token bucket. Idle keys are evicted so the
// table stays bounded.
type MemoryLimiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

func NewMemoryLimiter(rps float64, burst int, maxKeys int, idle time.Duration) *MemoryLimiter {
	if burst <= 0 {
		burst = 1
	}
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &MemoryLimiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](maxKeys, nil, idle),
		limit:    rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	lim, ok := l.limiters.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(key, lim)
	}
	l.mu.Unlock()
	if !lim.AllowN(l.now(), 1) {
		metrics.RateLimitRejected.WithLabelValues("memory").Inc()
		return false, nil
	}
	metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
	return true, nil
}

// RedisLimiter is a fixed-window counter shared by every instance.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	if window < time.Second {
		window = time.Second
	}
	if limit <= 0 {
		limit = 1
	}
	return &RedisLimiter{client: client, prefix: prefix, limit: int64(limit), window: window, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowSeconds := int64(l.window / time.Second)
	bucket := l.now().Unix() / windowSeconds
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, key, bucket)
	cnt, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if cnt == 1 {
		_ = l.client.Expire(ctx, redisKey, l.window+time.Second).Err()
	}
	if cnt > l.limit {
		metrics.RateLimitRejected.WithLabelValues("redis").Inc()
		return false, nil
	}
	metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
	return true, nil
}

// Key joins key parts with a separator that cannot appear in ids.
func Key(parts ...string) string {
	return strings.Join(parts, "|")
}
