package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCacheBasicOperations(t *testing.T) {
	c := NewLocalCache(LocalConfig{
		DefaultExpiration: time.Minute,
		CleanupInterval:   time.Minute,
	})
	defer c.Close()

	ctx := context.Background()

	_, found := c.Get(ctx, "missing")
	assert.False(t, found)

	err := c.Set(ctx, "patient:p1", "snapshot", time.Minute)
	require.NoError(t, err)

	value, found := c.Get(ctx, "patient:p1")
	assert.True(t, found)
	assert.Equal(t, "snapshot", value)
	assert.True(t, c.Exists(ctx, "patient:p1"))

	require.NoError(t, c.Delete(ctx, "patient:p1"))
	assert.False(t, c.Exists(ctx, "patient:p1"))
}

func TestLocalCacheExpiration(t *testing.T) {
	c := NewLocalCache(LocalConfig{
		DefaultExpiration: time.Minute,
		CleanupInterval:   time.Minute,
	})
	defer c.Close()

	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", "value", 20*time.Millisecond))
	_, found := c.Get(ctx, "short")
	assert.True(t, found)

	time.Sleep(50 * time.Millisecond)
	_, found = c.Get(ctx, "short")
	assert.False(t, found)
}

func TestLocalCacheClear(t *testing.T) {
	c := NewLocalCache(LocalConfig{})
	defer c.Close()

	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, c.Set(ctx, "b", 2, time.Minute))
	require.NoError(t, c.Clear(ctx))

	assert.False(t, c.Exists(ctx, "a"))
	assert.False(t, c.Exists(ctx, "b"))
}

func TestFactoryRejectsUnknownType(t *testing.T) {
	_, err := NewCache(Config{Type: "memcached"})
	assert.Error(t, err)
}

func TestFactoryDefaultsToLocal(t *testing.T) {
	c, err := NewCache(Config{})
	require.NoError(t, err)
	require.NotNil(t, c)
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "k", "v", time.Minute))
	value, found := c.Get(context.Background(), "k")
	assert.True(t, found)
	assert.Equal(t, "v", value)
}
