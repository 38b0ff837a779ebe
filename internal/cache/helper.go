package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	PropertyKeyPrefix     = "property:%d"
	PropertyListKeyPrefix = "properties:list:%s"
	propertyListPattern   = "properties:list:*"
)

const (
	PropertyTTL     = 10 * time.Minute
	PropertyListTTL = 2 * time.Minute
)

func PropertyKey(id uint) string {
	return fmt.Sprintf(PropertyKeyPrefix, id)
}

// PropertyListKey keys one filtered listing; query must be a canonical encoding of the filter.
func PropertyListKey(query string) string {
	return fmt.Sprintf(PropertyListKeyPrefix, query)
}

// GetJSON reads key into dest. Returns (false, nil) on a miss or when Redis is disabled.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	s, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// Aside serves key from Redis, or calls fetch to fill dest and caches it best-effort.
// Cache read errors fall through to fetch.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if found, err := GetJSON(ctx, key, dest); err == nil && found {
		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	_ = SetJSON(ctx, key, dest, ttl)
	return nil
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidateProperty drops the cached record and every cached listing.
func InvalidateProperty(ctx context.Context, id uint) {
	Invalidate(ctx, PropertyKey(id))
	InvalidatePropertyLists(ctx)
}

func InvalidatePropertyLists(ctx context.Context) {
	if client == nil {
		return
	}
	iter := client.Scan(ctx, 0, propertyListPattern, 100).Iterator()
	for iter.Next(ctx) {
		client.Del(ctx, iter.Val())
	}
}
