// Package redis stores travel estimates in Redis so that several dispatch
// replicas share one estimate cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/couchcryptid/responder-dispatch-service/internal/domain"
)

const keyPrefix = "responder-dispatch:"

// Cache implements googlemaps.Cache on top of a Redis client.
type Cache struct {
	client *goredis.Client
}

// NewCache connects lazily to the Redis server at addr.
func NewCache(addr string) *Cache {
	return &Cache{client: goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
		ReadTimeout: time.Second,
	})}
}

// Get returns the cached estimates for key. A missing key is not an error.
func (c *Cache) Get(ctx context.Context, key string) ([]domain.TravelEstimate, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var estimates []domain.TravelEstimate
	if err := json.Unmarshal(data, &estimates); err != nil {
		return nil, false, fmt.Errorf("decode cached estimates: %w", err)
	}
	return estimates, true, nil
}

// Set stores estimates under key; Redis expires them after ttl.
func (c *Cache) Set(ctx context.Context, key string, estimates []domain.TravelEstimate, ttl time.Duration) error {
	data, err := json.Marshal(estimates)
	if err != nil {
		return fmt.Errorf("encode estimates: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping reports whether the server is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
