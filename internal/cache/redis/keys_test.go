package redis

import (
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func testClient(prefix string) *Client {
	return &Client{rdb: goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"}), prefix: prefix}
}

func TestKeysAreNamespaced(t *testing.T) {
	c := testClient("bo:")
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, "bo:lock:session:123", NewLockManager(c).key("session:123"))
	assert.Equal(t, "bo:ratelimit:ip:1.2.3.4", NewRateLimiter(c, 0, 0).key("ip:1.2.3.4"))
	assert.Equal(t, "bo:market:m1", NewMarketCache(c, 0).key("m1"))
	assert.Equal(t, "bo:ch:settlement", c.Key("ch:settlement"))
	assert.Equal(t, "bo:stream:proposals", c.Key("stream:proposals"))
}

func TestKeyWithoutPrefix(t *testing.T) {
	c := testClient("")
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, "lock:market:create:s1", c.Key("lock", "market:create:s1"))
}

func TestConstructorDefaults(t *testing.T) {
	c := testClient("")
	t.Cleanup(func() { _ = c.Close() })

	rl := NewRateLimiter(c, 0, 0)
	assert.Equal(t, 1, rl.waitLimit)
	assert.Equal(t, defaultMarketTTL, NewMarketCache(c, -1).ttl)
	assert.Equal(t, defaultStreamMaxLen, NewSignalBusWithMaxLen(c, 0).maxLen)
	assert.Equal(t, int64(500), NewSignalBusWithMaxLen(c, 500).maxLen)
}

func TestHasPattern(t *testing.T) {
	assert.True(t, hasPattern("ch:*"))
	assert.False(t, hasPattern("ch:detection"))
}
