package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"creditbook/internal/ledger"
)

// BalanceCache keeps the latest balance summary per (shop, customer)
// pair in Redis. Values carry no TTL: the cache is a read-through
// projection replaced on every feed event or read miss, never merged.
type BalanceCache struct {
	rdb *redis.Client
}

func NewBalanceCache(rdb *redis.Client) *BalanceCache {
	return &BalanceCache{rdb: rdb}
}

func balanceKey(shopID, customerID string) string {
	return fmt.Sprintf("balance:%s:%s", shopID, customerID)
}

func (c *BalanceCache) Get(ctx context.Context, shopID, customerID string) (*ledger.Summary, error) {
	data, err := c.rdb.Get(ctx, balanceKey(shopID, customerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var s ledger.Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode cached balance: %w", err)
	}
	return &s, nil
}

func (c *BalanceCache) Set(ctx context.Context, shopID, customerID string, s ledger.Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode balance: %w", err)
	}
	if err := c.rdb.Set(ctx, balanceKey(shopID, customerID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
