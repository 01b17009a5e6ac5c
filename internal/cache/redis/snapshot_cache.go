package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/easybet/internal/domain"
)

const defaultSnapshotTTL = 30 * time.Second

// SnapshotCache implements domain.SnapshotCache with plain string keys
// holding the JSON-serialized per-account view.
//
// Key schema:
//
//	userinfo:{account} - JSON document
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client. A
// non-positive ttl falls back to 30 seconds.
func NewSnapshotCache(c *Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &SnapshotCache{rdb: c.Underlying(), ttl: ttl}
}

func snapshotKey(account string) string { return "userinfo:" + account }

// Get retrieves the cached snapshot for an account.
// It returns domain.ErrNotFound when the key does not exist.
func (sc *SnapshotCache) Get(ctx context.Context, account string) ([]byte, error) {
	data, err := sc.rdb.Get(ctx, snapshotKey(account)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get snapshot %s: %w", account, err)
	}
	return data, nil
}

// Set stores the snapshot for an account with the configured TTL.
func (sc *SnapshotCache) Set(ctx context.Context, account string, data []byte) error {
	if err := sc.rdb.Set(ctx, snapshotKey(account), data, sc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", account, err)
	}
	return nil
}

// Invalidate removes the cached snapshots for the given accounts. Missing
// keys are not an error.
func (sc *SnapshotCache) Invalidate(ctx context.Context, accounts ...string) error {
	if len(accounts) == 0 {
		return nil
	}
	keys := make([]string, len(accounts))
	for i, a := range accounts {
		keys[i] = snapshotKey(a)
	}
	if err := sc.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: invalidate snapshots: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SnapshotCache = (*SnapshotCache)(nil)
