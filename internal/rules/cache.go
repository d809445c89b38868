package rules

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/bulk-pricing/internal/pricing"
)

// CacheResult describes what a cache read found.
type CacheResult int

const (
	// CacheMiss means nothing is cached for the product.
	CacheMiss CacheResult = iota
	// CacheHit means a stored rule is cached.
	CacheHit
	// CacheNegative means the product is cached as having no rule.
	CacheNegative
)

func (c CacheResult) String() string {
	switch c {
	case CacheHit:
		return "hit"
	case CacheNegative:
		return "negative"
	default:
		return "miss"
	}
}

type cacheEntry struct {
	Found bool          `json:"found"`
	Rule  *pricing.Rule `json:"rule,omitempty"`
}

// Cache wraps Redis helpers for rule payloads.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	missTTL time.Duration
	prefix  string
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl, missTTL time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if missTTL <= 0 {
		missTTL = 30 * time.Second
	}
	return &Cache{client: client, ttl: ttl, missTTL: missTTL, prefix: "pricing:rule:"}
}

// Key returns the Redis key of productID.
func (c *Cache) Key(productID string) string {
	return c.prefix + strings.TrimSpace(productID)
}

// Get reads the cached entry of productID.
func (c *Cache) Get(ctx context.Context, productID string) (pricing.Rule, CacheResult, error) {
	if c == nil || c.client == nil {
		return pricing.Rule{}, CacheMiss, nil
	}
	data, err := c.client.Get(ctx, c.Key(productID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return pricing.Rule{}, CacheMiss, nil
		}
		return pricing.Rule{}, CacheMiss, err
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return pricing.Rule{}, CacheMiss, err
	}
	if !entry.Found || entry.Rule == nil {
		return pricing.Rule{}, CacheNegative, nil
	}
	return *entry.Rule, CacheHit, nil
}

// SetRule caches a stored rule.
func (c *Cache) SetRule(ctx context.Context, rule pricing.Rule) error {
	return c.set(ctx, rule.ProductID, cacheEntry{Found: true, Rule: &rule}, c.ttl)
}

// SetMissing caches the absence of a rule for the shorter miss TTL.
func (c *Cache) SetMissing(ctx context.Context, productID string) error {
	return c.set(ctx, productID, cacheEntry{Found: false}, c.missTTL)
}

// Invalidate drops the cached entry of productID.
func (c *Cache) Invalidate(ctx context.Context, productID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.Key(productID)).Err()
}

func (c *Cache) set(ctx context.Context, productID string, entry cacheEntry, ttl time.Duration) error {
	if c == nil || c.client == nil || strings.TrimSpace(productID) == "" {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.Key(productID), data, ttl).Err()
}
