package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCacheRoundTrip(t *testing.T) {
	c := NewLocalCache(LocalConfig{})
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "user:42:location", "52.37,4.89", time.Minute))

	v, ok := c.Get(ctx, "user:42:location")
	require.True(t, ok)
	assert.Equal(t, "52.37,4.89", v)
	assert.True(t, c.Exists(ctx, "user:42:location"))

	require.NoError(t, c.Delete(ctx, "user:42:location"))
	assert.False(t, c.Exists(ctx, "user:42:location"))
}

func TestLocalCacheClear(t *testing.T) {
	c := NewLocalCache(LocalConfig{})
	ctx := context.Background()

	_ = c.Set(ctx, "a", 1, time.Minute)
	_ = c.Set(ctx, "b", 2, time.Minute)
	require.NoError(t, c.Clear(ctx))
	assert.False(t, c.Exists(ctx, "a"))
	assert.False(t, c.Exists(ctx, "b"))
}

func TestFactory(t *testing.T) {
	c, err := NewCache(Config{Type: "local"})
	require.NoError(t, err)
	assert.IsType(t, &LocalCache{}, c)

	_, err = NewCache(Config{Type: "memcached"})
	assert.Error(t, err)
}
