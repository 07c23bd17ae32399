package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stakemarket/internal/service"
)

// MarketCache stores JSON-serialized market detail snapshots keyed by market
// ID. Writers invalidate on every mutation; reads fall through to the
// database on miss, so staleness is bounded by the TTL.
type MarketCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client, ttl time.Duration) *MarketCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &MarketCache{rdb: c.Underlying(), ttl: ttl}
}

func marketKey(id string) string { return "market:" + id }

// Set stores a snapshot for the market with the configured TTL.
func (mc *MarketCache) Set(ctx context.Context, marketID string, snapshot any) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", marketID, err)
	}
	if err := mc.rdb.Set(ctx, marketKey(marketID), data, mc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", marketID, err)
	}
	return nil
}

// Get loads a snapshot into out. The bool reports whether the key was
// present.
func (mc *MarketCache) Get(ctx context.Context, marketID string, out any) (bool, error) {
	data, err := mc.rdb.Get(ctx, marketKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis: get market %s: %w", marketID, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("redis: unmarshal market %s: %w", marketID, err)
	}
	return true, nil
}

// Invalidate removes the snapshot for a market. Errors are swallowed: cache
// invalidation is best-effort and the TTL bounds staleness.
func (mc *MarketCache) Invalidate(ctx context.Context, marketID string) {
	_ = mc.rdb.Del(ctx, marketKey(marketID)).Err()
}

// Compile-time interface check.
var _ service.SnapshotCache = (*MarketCache)(nil)
