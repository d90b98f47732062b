// Package cache keeps patient external id to internal id pairs in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "clinical:patient:"

// LinkageCache implements a Redis-backed lookup of Patient identities by
// their client-assigned resource.id. Entries are hints: callers verify a
// hit against the store before trusting it.
type LinkageCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to url (redis://...) and pings it.
func New(ctx context.Context, url string, ttl time.Duration) (*LinkageCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewWithClient(client, ttl), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *LinkageCache {
	return &LinkageCache{client: client, ttl: ttl}
}

// Lookup returns the cached internal id for externalID. A miss is
// (uuid.Nil, false, nil).
func (c *LinkageCache) Lookup(ctx context.Context, externalID string) (uuid.UUID, bool, error) {
	value, err := c.client.Get(ctx, keyPrefix+externalID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("redis get: %w", err)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		// Corrupt entry; treat as a miss and let the caller overwrite it.
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

func (c *LinkageCache) Remember(ctx context.Context, externalID string, id uuid.UUID) error {
	if err := c.client.Set(ctx, keyPrefix+externalID, id.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *LinkageCache) Forget(ctx context.Context, externalID string) error {
	if err := c.client.Del(ctx, keyPrefix+externalID).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Health checks if the Redis connection is healthy.
func (c *LinkageCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *LinkageCache) Close() error {
	return c.client.Close()
}
