package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/khaeldev/transaction-service/internal/metrics"
	"github.com/khaeldev/transaction-service/internal/model"
)

// ErrMiss is returned when no entry exists for the given identifier.
var ErrMiss = errors.New("cache miss")

const keyPrefix = "PK-"

// Cache is the read-side projection store. Merge applies a partial fact
// over the existing entry; fields the partial does not carry survive.
type Cache interface {
	Get(ctx context.Context, externalID string) (*model.TransactionProjection, error)
	Set(ctx context.Context, externalID string, p *model.TransactionProjection) error
	Merge(ctx context.Context, externalID string, partial *model.TransactionProjection) error
}

// RedisCache implements Cache on a go-redis client with a fixed TTL from
// last write. Expiry is enforced by Redis, not by this component.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a RedisCache with the given entry TTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, externalID string) (*model.TransactionProjection, error) {
	p, err := c.get(ctx, externalID)
	if errors.Is(err, ErrMiss) {
		metrics.CacheMissesTotal.Inc()
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	metrics.CacheHitsTotal.Inc()
	return p, nil
}

func (c *RedisCache) get(ctx context.Context, externalID string) (*model.TransactionProjection, error) {
	raw, err := c.client.Get(ctx, keyPrefix+externalID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry %s: %w", externalID, err)
	}

	var p model.TransactionProjection
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry %s: %w", externalID, err)
	}
	return &p, nil
}

func (c *RedisCache) Set(ctx context.Context, externalID string, p *model.TransactionProjection) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", externalID, err)
	}
	if err := c.client.Set(ctx, keyPrefix+externalID, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", externalID, err)
	}
	return nil
}

// mergeRetries bounds the optimistic retry loop; each retry means another
// writer touched the key between our read and write.
const mergeRetries = 10

// Merge overlays the present fields of partial on the current entry and
// writes the result back, refreshing the TTL. A missing entry is created
// from the partial alone. The read-modify-write runs under WATCH so a
// concurrent write to the same key aborts the EXEC and the merge is
// retried against the fresh entry instead of clobbering it.
func (c *RedisCache) Merge(ctx context.Context, externalID string, partial *model.TransactionProjection) error {
	key := keyPrefix + externalID

	for attempt := 0; attempt < mergeRetries; attempt++ {
		err := c.client.Watch(ctx, func(tx *redis.Tx) error {
			current := &model.TransactionProjection{}
			raw, err := tx.Get(ctx, key).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return fmt.Errorf("failed to read cache entry %s: %w", externalID, err)
			default:
				if err := json.Unmarshal(raw, current); err != nil {
					return fmt.Errorf("failed to decode cache entry %s: %w", externalID, err)
				}
			}

			partial.MergeInto(current)
			out, err := json.Marshal(current)
			if err != nil {
				return fmt.Errorf("failed to encode cache entry %s: %w", externalID, err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, out, c.ttl)
				return nil
			})
			return err
		}, key)
		if err == nil {
			metrics.CacheMergesTotal.Inc()
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("failed to merge cache entry %s: key kept changing underneath", externalID)
}
