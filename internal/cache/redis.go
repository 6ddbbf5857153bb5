// Package cache fronts the directory's hot lookup path with Redis. The
// database stays authoritative; any cache failure degrades to a miss.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pavelzhurbin/shorturl/internal/models"
)

const defaultTTL = time.Hour

const keyPrefix = "shorturl:code:"

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	const op = "cache.NewClient"

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to ping redis: %w", op, err)
	}

	return client, nil
}

// URLCache caches short code to original URL resolutions.
type URLCache struct {
	logger *slog.Logger
	client *redis.Client
	ttl    time.Duration
}

type Option func(*URLCache)

func WithTTL(d time.Duration) Option {
	return func(c *URLCache) {
		c.ttl = d
	}
}

func NewURLCache(logger *slog.Logger, client *redis.Client, opts ...Option) *URLCache {
	c := &URLCache{
		logger: logger,
		client: client,
		ttl:    defaultTTL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get returns the cached original URL for shortCode, if present.
func (c *URLCache) Get(ctx context.Context, shortCode string) (string, bool) {
	val, err := c.client.Get(ctx, keyPrefix+shortCode).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache get failed", slog.String("short_code", shortCode), slog.Any("err", err))
		}
		return "", false
	}

	return val, true
}

// Set stores the resolution for url's short code. The entry's TTL never
// outlives the record's expiry, so an expired mapping cannot be served from
// cache.
func (c *URLCache) Set(ctx context.Context, url *models.URL) {
	ttl := c.ttl
	if url.ExpireAt != nil {
		remaining := time.Until(*url.ExpireAt)
		if remaining <= 0 {
			return
		}
		if remaining < ttl {
			ttl = remaining
		}
	}

	if err := c.client.Set(ctx, keyPrefix+url.ShortCode, url.OriginalURL, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", slog.String("short_code", url.ShortCode), slog.Any("err", err))
	}
}

// Invalidate drops the cached resolution for shortCode.
func (c *URLCache) Invalidate(ctx context.Context, shortCode string) {
	if err := c.client.Del(ctx, keyPrefix+shortCode).Err(); err != nil {
		c.logger.Warn("cache invalidate failed", slog.String("short_code", shortCode), slog.Any("err", err))
	}
}
