// Package rate implementa límites fixed-window por clave para los endpoints
// públicos de registro. Hay backend redis (multi-instancia) y en memoria.
package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

func newResult(hits, max int64, ttl, window time.Duration) Result {
	if ttl < 0 {
		ttl = window
	}
	r := Result{
		Allowed:     hits <= max,
		Remaining:   max - hits,
		CurrentHits: hits,
		WindowTTL:   ttl,
	}
	if r.Remaining < 0 {
		r.Remaining = 0
	}
	if !r.Allowed {
		r.RetryAfter = ttl
	}
	return r
}

func windowKey(prefix, key string, start time.Time) string {
	return fmt.Sprintf("%s%s:%d", prefix, strings.ReplaceAll(key, " ", "_"), start.Unix())
}

// RedisLimiter: INCR + EXPIRE sobre una clave por ventana.
type RedisLimiter struct {
	Client *rdb.Client
	Prefix string
	Max    int64
	Window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "nshost:rl:"
	}
	return &RedisLimiter{Client: client, Prefix: prefix, Max: int64(max), Window: window, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	start := l.now().UTC().Truncate(l.Window)
	k := windowKey(l.Prefix, key, start)

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	ttl := pipe.TTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	// primer hit de la ventana: fijar expiración
	if incr.Val() == 1 {
		if err := l.Client.Expire(ctx, k, l.Window).Err(); err != nil {
			return Result{}, err
		}
		ttl = l.Client.TTL(ctx, k)
	}
	return newResult(incr.Val(), l.Max, ttl.Val(), l.Window), nil
}
