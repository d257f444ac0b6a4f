package rate

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter es el equivalente in-process de RedisLimiter (single-node).
type MemoryLimiter struct {
	c   *gocache.Cache
	mu  sync.Mutex
	now func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		c:   gocache.New(gocache.NoExpiration, time.Minute),
		now: time.Now,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := l.now().UTC()
	k, start := windowKey("", key, now, window)
	ttl := start.Add(window).Sub(now)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.c.Add(k, int64(1), ttl); err == nil {
		return result(1, limit, ttl), nil
	}
	hits, err := l.c.IncrementInt64(k, 1)
	if err != nil {
		// expiró entre Add e Increment
		l.c.Set(k, int64(1), ttl)
		hits = 1
	}
	return result(hits, limit, ttl), nil
}
