// Package cache keeps the public catalog in Redis so storefront reads skip the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pipe-company/internal/config"
	"pipe-company/internal/domain"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

const activeProductsKey = "products:active"

// ProductCache stores the active product list under a prefixed key
type ProductCache struct {
	client *redis.Client
	prefix string
}

// NewProductCache wraps client. A nil client yields a disabled cache where every read misses.
func NewProductCache(client *redis.Client, prefix string) *ProductCache {
	return &ProductCache{client: client, prefix: prefix}
}

// NewClient connects to Redis when enabled in cfg and returns nil otherwise
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// Enabled reports whether a Redis client is attached
func (c *ProductCache) Enabled() bool {
	return c != nil && c.client != nil
}

func (c *ProductCache) key(name string) string {
	var builder strings.Builder
	builder.Grow(len(c.prefix) + 1 + len(name))
	builder.WriteString(c.prefix)
	builder.WriteString(":")
	builder.WriteString(name)
	return builder.String()
}

// GetActive returns the cached active products or ErrCacheMiss
func (c *ProductCache) GetActive(ctx context.Context) ([]domain.Product, error) {
	if !c.Enabled() {
		return nil, ErrCacheMiss
	}

	raw, err := c.client.Get(ctx, c.key(activeProductsKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read product cache: %w", err)
	}

	var products []domain.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("failed to decode product cache: %w", err)
	}
	return products, nil
}

// SetActive stores the active products for ttl
func (c *ProductCache) SetActive(ctx context.Context, products []domain.Product, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}

	raw, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("failed to encode product cache: %w", err)
	}
	if err := c.client.Set(ctx, c.key(activeProductsKey), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write product cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached catalog after any product write
func (c *ProductCache) Invalidate(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.client.Del(ctx, c.key(activeProductsKey)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate product cache: %w", err)
	}
	return nil
}
