package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const treeKeyPrefix = "ib:tree:"

type treeClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisTreeCache stores display trees as JSON with a TTL. The TTL bounds
// staleness when an invalidation is lost.
type RedisTreeCache struct {
	client treeClient
	ttl    time.Duration
}

var _ domain.TreeCache = (*RedisTreeCache)(nil)

func NewRedisTreeCache(client *redis.Client, ttl time.Duration) *RedisTreeCache {
	return &RedisTreeCache{client: client, ttl: ttl}
}

func treeKey(partnerID string) string {
	return treeKeyPrefix + partnerID
}

func (c *RedisTreeCache) GetTree(ctx context.Context, partnerID string) (*domain.DisplayTree, bool, error) {
	raw, err := c.client.Get(ctx, treeKey(partnerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get tree %s: %w", partnerID, err)
	}

	var tree domain.DisplayTree
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, false, fmt.Errorf("decode tree %s: %w", partnerID, err)
	}
	return &tree, true, nil
}

func (c *RedisTreeCache) PutTree(ctx context.Context, partnerID string, tree *domain.DisplayTree) error {
	raw, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode tree %s: %w", partnerID, err)
	}
	return c.client.Set(ctx, treeKey(partnerID), raw, c.ttl).Err()
}

func (c *RedisTreeCache) Invalidate(ctx context.Context, partnerIDs ...string) error {
	if len(partnerIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(partnerIDs))
	for _, id := range partnerIDs {
		keys = append(keys, treeKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}
