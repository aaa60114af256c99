package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rcabanilla/gridseer/config"
	core "github.com/rcabanilla/gridseer/internal/agent/core"
)

const cacheKeyPrefix = "gridseer:analysis:"

// ResponseCache stores completed analyses in Redis keyed by a hash of the
// question. Reads and writes are best-effort; a cache fault never affects the
// analysis itself.
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewResponseCache connects to Redis, or returns nil when the cache is
// disabled or unreachable.
func NewResponseCache(ctx context.Context, cfg config.RedisConfig, logger *log.Logger) *ResponseCache {
	if !cfg.Enabled {
		return nil
	}
	port := cfg.Port
	if port == "" {
		port = "6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Host + ":" + port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Printf("redis unavailable, answer cache disabled: %v", err)
		return nil
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ResponseCache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(question string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(question))))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Get returns a cached result for the question, or false
func (c *ResponseCache) Get(ctx context.Context, question string) (core.AnalysisResult, bool) {
	if c == nil {
		return core.AnalysisResult{}, false
	}
	data, err := c.client.Get(ctx, cacheKey(question)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Printf("cache read failed: %v", err)
		}
		return core.AnalysisResult{}, false
	}
	var result core.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Printf("cache entry corrupt, dropping: %v", err)
		c.client.Del(ctx, cacheKey(question))
		return core.AnalysisResult{}, false
	}
	return result, true
}

// Set stores a completed result
func (c *ResponseCache) Set(ctx context.Context, question string, result core.AnalysisResult) {
	if c == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(question), data, c.ttl).Err(); err != nil {
		c.logger.Printf("cache write failed: %v", err)
	}
}
