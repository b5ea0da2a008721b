package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/finance-chat-gateway/internal/api"
)

func newTestCache(t *testing.T) (*ResponseCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, 0), mr
}

func TestResponseCache_RoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := Key("user-1", nil, "what is my balance?")

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	c.Set(ctx, key, "$1,250")
	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, "$1,250", got)

	assert.Equal(t, DefaultTTL, mr.TTL(key))
	mr.FastForward(DefaultTTL + time.Second)
	_, ok = c.Get(ctx, key)
	assert.False(t, ok)
}

func TestResponseCache_RedisDownIsMiss(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	ctx := context.Background()
	c.Set(ctx, "k", "v")
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestResponseCache_NilIsDisabled(t *testing.T) {
	var c *ResponseCache
	c.Set(context.Background(), "k", "v")
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	base := Key("user-1", nil, "hi")
	assert.True(t, strings.HasPrefix(base, "chatcache:"))
	assert.Equal(t, base, Key("user-1", nil, "hi"))
	assert.NotEqual(t, base, Key("user-2", nil, "hi"))
	assert.NotEqual(t, base, Key("user-1", []api.Message{{Role: "user", Content: "earlier"}}, "hi"))
	assert.NotEqual(t, base, Key("user-1", nil, "hi there"))
}
