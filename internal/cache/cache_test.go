package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/ordertrack/internal/config"
)

func newRedis(t *testing.T) (Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.Config{
		Cache:         config.Cache{Enabled: true, Driver: "redis", DefaultTTL: time.Minute, Redis: config.Redis{Addr: mr.Addr()}},
		Observability: config.Observability{ServiceName: "ordertrack"},
	}
	lc := fxtest.NewLifecycle(t)
	store, err := NewStore(lc, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	lc.RequireStart()
	t.Cleanup(func() { lc.RequireStop() })
	return store, mr
}

func TestRedisStore(t *testing.T) {
	store, mr := newRedis(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "orders:1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, store.Set(ctx, "orders:1", []byte("one"), 0))
	require.NoError(t, store.Set(ctx, "orders:2", []byte("two"), time.Second))

	got, err := store.Get(ctx, "orders:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)

	assert.True(t, mr.Exists("ordertrack:orders:1"), "keys are namespaced")
	assert.Equal(t, time.Minute, mr.TTL("ordertrack:orders:1"), "zero ttl uses the default")
	assert.Equal(t, time.Second, mr.TTL("ordertrack:orders:2"))

	require.NoError(t, store.Delete(ctx, "orders:1", "orders:2", ""))
	assert.False(t, mr.Exists("ordertrack:orders:1"))
	assert.False(t, mr.Exists("ordertrack:orders:2"))
	require.NoError(t, store.Delete(ctx))

	assert.Error(t, store.Set(ctx, "", []byte("x"), 0))
}

func TestRedisStoreAdd(t *testing.T) {
	store, mr := newRedis(t)
	ctx := context.Background()

	added, err := store.Add(ctx, "orders:1", []byte("first"), 0)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, time.Minute, mr.TTL("ordertrack:orders:1"))

	added, err = store.Add(ctx, "orders:1", []byte("second"), 0)
	require.NoError(t, err)
	assert.False(t, added, "existing keys are kept")

	got, err := store.Get(ctx, "orders:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)

	_, err = store.Add(ctx, "", []byte("x"), 0)
	assert.Error(t, err)
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := newRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "orders:1", []byte("one"), time.Second))
	mr.FastForward(2 * time.Second)

	_, err := store.Get(ctx, "orders:1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisStoreFailsToStartWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	lc := fxtest.NewLifecycle(t)
	_, err := NewStore(lc, config.Config{Cache: config.Cache{Driver: "redis", Redis: config.Redis{Addr: addr}}}, nil)
	require.NoError(t, err)
	assert.Error(t, lc.Start(context.Background()))
}

func TestNewStore(t *testing.T) {
	lc := fxtest.NewLifecycle(t)

	store, err := NewStore(lc, config.Config{Cache: config.Cache{Driver: "noop"}}, nil)
	require.NoError(t, err)
	_, err = store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, store.Set(context.Background(), "k", nil, 0))
	added, err := store.Add(context.Background(), "k", nil, 0)
	assert.NoError(t, err)
	assert.False(t, added)
	assert.NoError(t, store.Delete(context.Background(), "k"))

	_, err = NewStore(lc, config.Config{Cache: config.Cache{Driver: "memcached"}}, nil)
	assert.Error(t, err)
}
