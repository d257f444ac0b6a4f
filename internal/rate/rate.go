// Package rate implementa el throttling fixed-window que protege los endpoints
// de los flujos. La política (límite y ventana por endpoint) vive en config.
package rate

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

// Limiter cuenta hits de key dentro de una ventana fija.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// windowKey: <prefix><key>:<inicio de ventana en unix>
func windowKey(prefix, key string, now time.Time, window time.Duration) (string, time.Time) {
	start := now.Truncate(window)
	return fmt.Sprintf("%s%s:%d", prefix, strings.ReplaceAll(key, " ", "_"), start.Unix()), start
}

func result(hits int64, limit int, ttl time.Duration) Result {
	lim := int64(limit)
	res := Result{
		Allowed:     hits <= lim,
		CurrentHits: hits,
		WindowTTL:   ttl,
		Remaining:   lim - hits,
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		// Retry after: resto de la ventana
		res.RetryAfter = ttl
	}
	return res
}
