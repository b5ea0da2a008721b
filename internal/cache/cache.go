// In file: internal/cache/cache.go

// Package cache stores final chat answers in Redis so identical conversations
// can be answered without running the tool loop again.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dileep-u-k/finance-chat-gateway/internal/api"
	"github.com/dileep-u-k/finance-chat-gateway/internal/version"
)

const (
	keyPrefix  = "chatcache"
	DefaultTTL = 24 * time.Hour
)

// ResponseCache is a best-effort cache: Redis failures are logged and
// reported as misses, never as errors.
type ResponseCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResponseCache{rdb: rdb, ttl: ttl}
}

// Key derives the versioned cache key for one conversation. The identity is
// part of the key because tool results are user specific.
func Key(userID string, history []api.Message, prompt string) string {
	payload, err := json.Marshal(struct {
		UserID  string        `json:"u"`
		History []api.Message `json:"h"`
		Prompt  string        `json:"p"`
	}{userID, history, prompt})
	if err != nil {
		// Only strings are marshalled; fall back to the prompt alone.
		payload = []byte(userID + "\x00" + prompt)
	}
	return version.GenerateVersionedCacheKey(keyPrefix, string(payload))
}

// Get returns the cached answer for key.
func (c *ResponseCache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil || c.rdb == nil {
		return "", false
	}
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	} else if err != nil {
		log.Printf("WARNING: Redis GET error for response cache: %v", err)
		return "", false
	}
	return val, true
}

// Set stores answer under key for the cache TTL.
func (c *ResponseCache) Set(ctx context.Context, key, answer string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, key, answer, c.ttl).Err(); err != nil {
		log.Printf("WARNING: Redis SET error for response cache: %v", err)
	}
}
