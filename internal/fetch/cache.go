package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonathan/cover-letter-studio/internal/logger"
)

// DefaultCacheTTL bounds how long a fetched page is reused.
const DefaultCacheTTL = 6 * time.Hour

// Cache stores page HTML by URL. Get returns "", false on a miss.
type Cache interface {
	Get(ctx context.Context, url string) (string, bool, error)
	Set(ctx context.Context, url, html string) error
}

// RedisCache keeps pages in Redis under a hashed key with a TTL.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache wraps an existing client. A zero ttl uses DefaultCacheTTL.
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{rdb: rdb, prefix: "page:", ttl: ttl}
}

func (c *RedisCache) key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return c.prefix + hex.EncodeToString(sum[:])
}

func (c *RedisCache) Get(ctx context.Context, url string) (string, bool, error) {
	html, err := c.rdb.Get(ctx, c.key(url)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return html, true, nil
}

func (c *RedisCache) Set(ctx context.Context, url, html string) error {
	if err := c.rdb.Set(ctx, c.key(url), html, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// MemoryCache is an in-process Cache without expiry.
type MemoryCache struct {
	mu    sync.RWMutex
	pages map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{pages: make(map[string]string)}
}

func (c *MemoryCache) Get(_ context.Context, url string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	html, ok := c.pages[url]
	return html, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, url, html string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[url] = html
	return nil
}

// CachedFetcher serves pages from Cache and falls back to URL.
// Cache failures are logged and never fail the fetch.
type CachedFetcher struct {
	Cache   Cache
	Options *Options
	Log     *logger.Logger
}

// Fetch returns the page HTML and whether it came from the cache.
func (f *CachedFetcher) Fetch(ctx context.Context, url string) (string, bool, error) {
	log := f.Log
	if log == nil {
		log = logger.Nop()
	}

	if f.Cache != nil {
		html, ok, err := f.Cache.Get(ctx, url)
		if err != nil {
			log.Warn("page cache lookup failed", "url", url, "error", err)
		} else if ok {
			log.Debug("page cache hit", "url", url)
			return html, true, nil
		}
	}

	result, err := URL(ctx, url, f.Options)
	if err != nil {
		return "", false, err
	}

	if f.Cache != nil {
		if err := f.Cache.Set(ctx, url, result.HTML); err != nil {
			log.Warn("page cache store failed", "url", url, "error", err)
		}
	}
	return result.HTML, false, nil
}
