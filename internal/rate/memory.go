package rate

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter es el equivalente de RedisLimiter para una sola instancia.
// go-cache expira las ventanas viejas.
type MemoryLimiter struct {
	mu     sync.Mutex
	c      *gocache.Cache
	Prefix string
	Max    int64
	Window time.Duration
	now    func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		c:      gocache.New(window, 2*window),
		Max:    int64(max),
		Window: window,
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now().UTC()
	start := now.Truncate(l.Window)
	k := windowKey(l.Prefix, key, start)
	ttl := start.Add(l.Window).Sub(now)

	l.mu.Lock()
	defer l.mu.Unlock()
	hits, err := l.c.IncrementInt64(k, 1)
	if err != nil {
		// no existe: primer hit de la ventana
		hits = 1
		l.c.Set(k, hits, ttl)
	}
	return newResult(hits, l.Max, ttl, l.Window), nil
}
