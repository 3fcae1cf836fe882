package terminology

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/xSoVx/amr-project/internal/domain"
)

// normalizationCache is the bounded, LRU-evicted in-process cache keyed by
// (system, code, display) required by spec §5: "the normalization cache
// keyed by (system, code, display) with catalog-scoped lifetime (cleared on
// reload) ... on overflow, least-recently-used entries are evicted."
type normalizationCache struct {
	lru *lru.Cache[string, domain.TerminologyLookup]
}

func newNormalizationCache(size int) *normalizationCache {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, domain.TerminologyLookup](size)
	return &normalizationCache{lru: c}
}

func cacheKey(system, code, display string) string {
	return system + "\x1f" + code + "\x1f" + display
}

func (c *normalizationCache) get(system, code, display string) (domain.TerminologyLookup, bool) {
	return c.lru.Get(cacheKey(system, code, display))
}

func (c *normalizationCache) put(system, code, display string, v domain.TerminologyLookup) {
	c.lru.Add(cacheKey(system, code, display), v)
}

// clear drops every entry; called when the catalog reloads since the
// normalization cache's declared lifetime is scoped to the catalog
// snapshot it was built against.
func (c *normalizationCache) clear() {
	c.lru.Purge()
}

// ResponseCache is an optional cross-process cache tier for oracle
// validate-code responses, backed by Redis. It mirrors the key/TTL/
// self-healing-on-corruption shape of a response cache for an external
// lookup service; unlike the in-process LRU it survives process restarts
// and is shared across replicas of the same deployment.
type ResponseCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewResponseCache connects to redisURL. A non-nil error means the cache
// tier is unusable; callers should treat that as "no distributed cache
// configured" rather than a fatal error, since the oracle cache is purely
// an optimization.
func NewResponseCache(redisURL string, defaultTTL time.Duration) (*ResponseCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &ResponseCache{redis: client, defaultTTL: defaultTTL}, nil
}

type cachedLookup struct {
	Lookup    domain.TerminologyLookup `json:"lookup"`
	CachedAt  time.Time                `json:"cached_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

func (c *ResponseCache) key(system, code, display string) string {
	sum := sha256.Sum256([]byte(system + ":" + code + ":" + display))
	return fmt.Sprintf("amr:terminology:%x", sum[:8])
}

// Get returns a cached oracle response, self-healing by deleting any entry
// that fails to unmarshal or has expired.
func (c *ResponseCache) Get(ctx context.Context, system, code, display string) (domain.TerminologyLookup, bool) {
	key := c.key(system, code, display)
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return domain.TerminologyLookup{}, false
	}
	var cached cachedLookup
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		return domain.TerminologyLookup{}, false
	}
	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return domain.TerminologyLookup{}, false
	}
	return cached.Lookup, true
}

// Set stores an oracle response for the cache's default TTL.
func (c *ResponseCache) Set(ctx context.Context, system, code, display string, lookup domain.TerminologyLookup) {
	key := c.key(system, code, display)
	now := time.Now()
	cached := cachedLookup{Lookup: lookup, CachedAt: now, ExpiresAt: now.Add(c.defaultTTL)}
	raw, err := json.Marshal(cached)
	if err != nil {
		return
	}
	c.redis.Set(ctx, key, raw, c.defaultTTL)
}

// Close releases the underlying Redis connection.
func (c *ResponseCache) Close() error {
	return c.redis.Close()
}
