package vip

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/linnemanlabs/sieve/internal/item"
)

// DefaultKey is the Redis set consulted when no key is configured.
const DefaultKey = "sieve:vip"

// Redis checks sender address and user ID membership in a Redis set.
// Members are stored lower-cased.
type Redis struct {
	rdb redis.Cmdable
	key string
}

// NewRedis creates a resolver over the set at key.
func NewRedis(rdb redis.Cmdable, key string) *Redis {
	if key == "" {
		key = DefaultKey
	}
	return &Redis{rdb: rdb, key: key}
}

// IsVIP implements triage.VIPResolver.
func (r *Redis) IsVIP(ctx context.Context, it *item.Item) (bool, error) {
	candidates := make([]any, 0, 2)
	if addr := normalize(it.From.Address); addr != "" {
		candidates = append(candidates, addr)
	}
	if id := normalize(it.From.UserID); id != "" {
		candidates = append(candidates, id)
	}
	if len(candidates) == 0 {
		return false, nil
	}

	hits, err := r.rdb.SMIsMember(ctx, r.key, candidates...).Result()
	if err != nil {
		return false, fmt.Errorf("vip lookup %s: %w", r.key, err)
	}
	for _, hit := range hits {
		if hit {
			return true, nil
		}
	}
	return false, nil
}
