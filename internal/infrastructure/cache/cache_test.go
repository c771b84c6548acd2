package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/gstbooks/internal/infrastructure/config"
)

func setupTestRedis(t *testing.T) (*redisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := &config.RedisConfig{
		URL:          mr.Addr(),
		PoolSize:     5,
		MinIdleConns: 1,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	c, err := NewRedisCache(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c.(*redisCache), mr
}

func setupTestMemory(t *testing.T) Cache {
	t.Helper()
	c, err := NewMemoryCache(zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewRedisCache(t *testing.T) {
	t.Run("successful creation", func(t *testing.T) {
		c, _ := setupTestRedis(t)
		assert.NotNil(t, c.client)
		assert.NotNil(t, c.logger)
	})

	t.Run("redis url form", func(t *testing.T) {
		mr := miniredis.RunT(t)
		c, err := NewRedisCache(&config.RedisConfig{URL: "redis://" + mr.Addr() + "/2"}, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer c.Close()
		assert.Equal(t, 2, c.(*redisCache).client.Options().DB)
	})

	t.Run("nil logger", func(t *testing.T) {
		_, err := NewRedisCache(&config.RedisConfig{URL: "localhost:6379"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := NewRedisCache(nil, zaptest.NewLogger(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis config is required")
	})

	t.Run("connection failure", func(t *testing.T) {
		cfg := &config.RedisConfig{URL: "localhost:1", DialTimeout: 100 * time.Millisecond}
		_, err := NewRedisCache(cfg, zaptest.NewLogger(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis connection failed")
	})
}

func TestNewCache_SelectsImplementation(t *testing.T) {
	c, err := NewCache(&config.RedisConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, isMemory := c.(*memoryCache)
	assert.True(t, isMemory)

	mr := miniredis.RunT(t)
	c, err = NewCache(&config.RedisConfig{URL: mr.Addr()}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()
	_, isRedis := c.(*redisCache)
	assert.True(t, isRedis)
	assert.NoError(t, HealthCheck(context.Background(), c))
}

// Both implementations must behave the same way for the store built on them.
func TestCache_Contract(t *testing.T) {
	impls := map[string]func(t *testing.T) Cache{
		"redis": func(t *testing.T) Cache {
			c, _ := setupTestRedis(t)
			return c
		},
		"memory": setupTestMemory,
	}

	for name, setup := range impls {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := setup(t)

			t.Run("set and get", func(t *testing.T) {
				require.NoError(t, c.Set(ctx, "k:plain", "v", time.Hour))
				got, err := c.Get(ctx, "k:plain")
				require.NoError(t, err)
				assert.Equal(t, "v", got)
			})

			t.Run("missing key", func(t *testing.T) {
				_, err := c.Get(ctx, "k:missing")
				var notFound ErrCacheKeyNotFound
				require.ErrorAs(t, err, &notFound)
				assert.Equal(t, "k:missing", notFound.Key)

				assert.ErrorAs(t, c.Expire(ctx, "k:missing", time.Minute), &notFound)
			})

			t.Run("delete and exists", func(t *testing.T) {
				require.NoError(t, c.Set(ctx, "k:del", 1, 0))
				ok, err := c.Exists(ctx, "k:del")
				require.NoError(t, err)
				assert.True(t, ok)

				require.NoError(t, c.Delete(ctx, "k:del"))
				ok, err = c.Exists(ctx, "k:del")
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("setnx only once", func(t *testing.T) {
				first, err := c.SetNX(ctx, "k:lock", "a", time.Minute)
				require.NoError(t, err)
				second, err := c.SetNX(ctx, "k:lock", "b", time.Minute)
				require.NoError(t, err)
				assert.True(t, first)
				assert.False(t, second)

				got, err := c.Get(ctx, "k:lock")
				require.NoError(t, err)
				assert.Equal(t, "a", got)
			})

			t.Run("json", func(t *testing.T) {
				type payload struct {
					Name  string `json:"name"`
					Count int    `json:"count"`
				}
				require.NoError(t, c.SetJSON(ctx, "k:json", payload{Name: "x", Count: 3}, time.Hour))
				var out payload
				require.NoError(t, c.GetJSON(ctx, "k:json", &out))
				assert.Equal(t, payload{Name: "x", Count: 3}, out)
			})

			t.Run("sets", func(t *testing.T) {
				members, err := c.SetMembers(ctx, "k:set")
				require.NoError(t, err)
				assert.Empty(t, members)

				require.NoError(t, c.AddToSet(ctx, "k:set", "b", "a"))
				require.NoError(t, c.AddToSet(ctx, "k:set", "a", "c"))
				members, err = c.SetMembers(ctx, "k:set")
				require.NoError(t, err)
				assert.ElementsMatch(t, []string{"a", "b", "c"}, members)
			})
		})
	}
}

func TestRedisCache_TTL(t *testing.T) {
	ctx := context.Background()
	c, mr := setupTestRedis(t)

	ok, err := c.SetNX(ctx, "k:ttl", "x", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = c.SetNX(ctx, "k:ttl", "y", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired key can be taken again")
}

func TestRedisCache_ServerDown(t *testing.T) {
	ctx := context.Background()
	c, mr := setupTestRedis(t)
	mr.Close()

	_, err := c.Get(ctx, "anything")
	require.Error(t, err)
	var notFound ErrCacheKeyNotFound
	assert.False(t, errors.As(err, &notFound))
	assert.Error(t, c.Ping(ctx))
}
