package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiter_FixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := rdb.NewClient(&rdb.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2026, 1, 1, 10, 0, 5, 0, time.UTC)
	l := NewRedisLimiter(client, "", 2, time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	r, err := l.Allow(ctx, "register:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, r.Allowed)
	assert.Equal(t, int64(1), r.Remaining)
	assert.Equal(t, time.Minute, r.WindowTTL)

	r, err = l.Allow(ctx, "register:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, r.Allowed)
	assert.Equal(t, int64(0), r.Remaining)

	r, err = l.Allow(ctx, "register:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, r.Allowed)
	assert.Equal(t, int64(3), r.CurrentHits)
	assert.Greater(t, r.RetryAfter, time.Duration(0))

	// otra clave no comparte ventana
	r, err = l.Allow(ctx, "register:5.6.7.8")
	require.NoError(t, err)
	assert.True(t, r.Allowed)

	// ventana siguiente
	now = now.Add(time.Minute)
	r, err = l.Allow(ctx, "register:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, r.Allowed)
	assert.Equal(t, int64(1), r.CurrentHits)
}

func TestRedisLimiter_KeysExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	client := rdb.NewClient(&rdb.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLimiter(client, "t:", 5, time.Minute)
	_, err := l.Allow(context.Background(), "k")
	require.NoError(t, err)
	require.Len(t, mr.Keys(), 1)

	mr.FastForward(2 * time.Minute)
	assert.Empty(t, mr.Keys())
}

func TestRedisLimiter_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := rdb.NewClient(&rdb.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	_, err := NewRedisLimiter(client, "", 1, time.Minute).Allow(context.Background(), "k")
	require.Error(t, err)
}

func TestMemoryLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 30, 0, time.UTC)
	l := NewMemoryLimiter(1, time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	r, err := l.Allow(ctx, "a")
	require.NoError(t, err)
	assert.True(t, r.Allowed)
	assert.Equal(t, 30*time.Second, r.WindowTTL)

	r, _ = l.Allow(ctx, "a")
	assert.False(t, r.Allowed)
	assert.Equal(t, 30*time.Second, r.RetryAfter)

	now = now.Add(time.Minute)
	r, _ = l.Allow(ctx, "a")
	assert.True(t, r.Allowed)
}
