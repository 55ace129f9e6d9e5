package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/didgateway/llm-gateway/common/config"
	"github.com/didgateway/llm-gateway/common/ctxkey"
)

// rateLimitStore counts requests per key within a sliding window.
type rateLimitStore interface {
	Allow(ctx context.Context, key string, maxCount int, window time.Duration) bool
}

// memoryStore keeps per-key request timestamps. Fine for a single instance.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: map[string][]time.Time{}}
}

func (s *memoryStore) Allow(_ context.Context, key string, maxCount int, window time.Duration) bool {
	now := time.Now()
	cutoff := now.Add(-window)

	s.mu.Lock()
	defer s.mu.Unlock()

	stamps := s.entries[key]
	kept := stamps[:0]
	for _, t := range stamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= maxCount {
		s.entries[key] = kept
		return false
	}
	s.entries[key] = append(kept, now)
	return true
}

// redisStore shares the counter across instances with INCR + EXPIRE windows.
type redisStore struct {
	client *redis.Client
}

func (s *redisStore) Allow(ctx context.Context, key string, maxCount int, window time.Duration) bool {
	bucket := fmt.Sprintf("ratelimit:%s:%d", key, time.Now().Unix()/int64(window.Seconds()))
	count, err := s.client.Incr(ctx, bucket).Result()
	if err != nil {
		// fail open, rate limiting is best effort
		return true
	}
	if count == 1 {
		s.client.Expire(ctx, bucket, window)
	}
	return count <= int64(maxCount)
}

// GlobalRelayRateLimit caps relay calls per caller DID. Disabled when
// GLOBAL_RELAY_RATE_LIMIT is zero.
func GlobalRelayRateLimit() gin.HandlerFunc {
	if config.GlobalRelayRateLimitNum <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	var store rateLimitStore
	if config.RedisConnString != "" {
		opts, err := redis.ParseURL(config.RedisConnString)
		if err == nil {
			store = &redisStore{client: redis.NewClient(opts)}
		}
	}
	if store == nil {
		store = newMemoryStore()
	}
	window := time.Duration(config.GlobalRelayRateLimitDuration) * time.Second

	return func(c *gin.Context) {
		key := c.GetString(ctxkey.CallerDid)
		if key == "" {
			key = c.ClientIP()
		}
		if !store.Allow(c.Request.Context(), key, config.GlobalRelayRateLimitNum, window) {
			abortWithError(c, http.StatusTooManyRequests,
				"rate_limited", "rate limit exceeded, try again later")
			return
		}
		c.Next()
	}
}
