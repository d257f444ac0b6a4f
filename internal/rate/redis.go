package rate

import (
	"context"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// RedisLimiter: fixed window sencillo (INCR + EXPIRE), compartido entre réplicas.
type RedisLimiter struct {
	client *rdb.Client
	prefix string
}

func NewRedisLimiter(client *rdb.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	redisKey, _ := windowKey(l.prefix, key, time.Now().UTC(), window)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	// expiry en el primer hit
	remaining := ttl.Val()
	if incr.Val() == 1 || remaining < 0 {
		if err := l.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return Result{}, err
		}
		remaining = window
	}
	return result(incr.Val(), limit, remaining), nil
}
