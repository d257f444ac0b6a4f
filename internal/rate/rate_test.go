package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func limiters(t *testing.T) map[string]Limiter {
	mr := miniredis.RunT(t)
	client := rdb.NewClient(&rdb.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]Limiter{
		"memory": NewMemoryLimiter(),
		"redis":  NewRedisLimiter(client, "rl:test:"),
	}
}

func TestLimiter_FixedWindow(t *testing.T) {
	ctx := context.Background()
	for name, l := range limiters(t) {
		t.Run(name, func(t *testing.T) {
			// ventana larga: el test no cruza el borde
			const window = time.Hour
			for i := 1; i <= 3; i++ {
				res, err := l.Allow(ctx, "login:1.2.3.4", 3, window)
				require.NoError(t, err)
				require.True(t, res.Allowed, "hit %d", i)
				require.EqualValues(t, 3-i, res.Remaining)
			}
			res, err := l.Allow(ctx, "login:1.2.3.4", 3, window)
			require.NoError(t, err)
			require.False(t, res.Allowed)
			require.EqualValues(t, 0, res.Remaining)
			require.Greater(t, res.RetryAfter, time.Duration(0))
			require.LessOrEqual(t, res.RetryAfter, window)

			// otra key tiene su propio contador
			res, err = l.Allow(ctx, "login:5.6.7.8", 3, window)
			require.NoError(t, err)
			require.True(t, res.Allowed)
		})
	}
}

func TestMemoryLimiter_WindowRollover(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	now := base
	l := NewMemoryLimiter()
	l.now = func() time.Time { return now }

	res, err := l.Allow(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	res, err = l.Allow(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	now = base.Add(time.Minute)
	res, err = l.Allow(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, res.Allowed)
}
