// Package rediscache implements feature.Cache against Redis: a JSON blob
// per Universal ID, namespaced under "timing:curve:", expiring on the
// caller-supplied TTL.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/timing-intelligence/internal/domain"
	"github.com/ignite/timing-intelligence/internal/timing/feature"
)

// FeatureCache implements feature.Cache against a Redis client.
type FeatureCache struct {
	client *redis.Client
}

// NewFeatureCache constructs a Redis-backed feature.Cache.
func NewFeatureCache(client *redis.Client) *FeatureCache {
	return &FeatureCache{client: client}
}

var _ feature.Cache = (*FeatureCache)(nil)

func cacheKey(id domain.UniversalID) string {
	return fmt.Sprintf("timing:curve:%s", id)
}

func (c *FeatureCache) Get(ctx context.Context, id domain.UniversalID) (feature.Snapshot, error) {
	val, err := c.client.Get(ctx, cacheKey(id)).Result()
	if err == redis.Nil {
		return feature.Snapshot{}, feature.ErrCacheMiss
	}
	if err != nil {
		return feature.Snapshot{}, fmt.Errorf("get feature cache: %w", err)
	}

	var snap feature.Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return feature.Snapshot{}, fmt.Errorf("unmarshal feature snapshot: %w", err)
	}
	return snap, nil
}

func (c *FeatureCache) Put(ctx context.Context, snap feature.Snapshot, ttl time.Duration) error {
	buf, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal feature snapshot: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(snap.UniversalID), buf, ttl).Err(); err != nil {
		return fmt.Errorf("put feature cache: %w", err)
	}
	return nil
}
