// Package redis provides redis-backed adapters for the retz scheduler.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/retzproject/retz/internal/domain/model"
)

// OfferCache shares the dispatcher's offer snapshot across processes, so a
// status reporter running next to a different server instance still sees the
// current offer figures.
type OfferCache struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// OfferCacheOptions configures an OfferCache.
type OfferCacheOptions struct {
	Client redis.UniversalClient
	// Key overrides the default redis key.
	Key string
	// TTL expires stale snapshots. A snapshot older than a few offer rounds
	// is worse than none. Defaults to one minute.
	TTL time.Duration
}

// NewOfferCache creates a redis-backed snapshot cache.
func NewOfferCache(opts OfferCacheOptions) (*OfferCache, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	key := opts.Key
	if key == "" {
		key = "retz:offer_snapshot"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &OfferCache{client: opts.Client, key: key, ttl: ttl}, nil
}

func (c *OfferCache) Put(ctx context.Context, snap model.OfferSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal offer snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *OfferCache) Get(ctx context.Context) (model.OfferSnapshot, bool, error) {
	data, err := c.client.Get(ctx, c.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.OfferSnapshot{}, false, nil
		}
		return model.OfferSnapshot{}, false, fmt.Errorf("redis get: %w", err)
	}

	var snap model.OfferSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return model.OfferSnapshot{}, false, fmt.Errorf("unmarshal offer snapshot: %w", err)
	}
	return snap, true, nil
}
