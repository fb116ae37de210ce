package mappings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	accshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// CachedRepository fronts a Repository with Redis. Concurrent misses for one key
// share a single load; absent mappings are cached as empty values.
type CachedRepository struct {
	Repository
	client redis.UniversalClient
	ttl    time.Duration
	group  singleflight.Group
}

// NewCachedRepository wraps repo. A nil client disables caching.
func NewCachedRepository(repo Repository, client redis.UniversalClient, ttl time.Duration) *CachedRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedRepository{Repository: repo, client: client, ttl: ttl}
}

func cacheKey(tenantID int64, role Role) string {
	return fmt.Sprintf("ledger:mapping:%d:%s", tenantID, role)
}

// Get serves from Redis when possible.
func (c *CachedRepository) Get(ctx context.Context, tenantID int64, role Role) (string, error) {
	if c.client == nil {
		return c.Repository.Get(ctx, tenantID, role)
	}
	key := cacheKey(tenantID, role)
	if cached, err := c.client.Get(ctx, key).Result(); err == nil {
		if cached == "" {
			return "", accshared.ErrMappingNotFound
		}
		return cached, nil
	}
	ch := c.group.DoChan(key, func() (any, error) {
		code, err := c.Repository.Get(context.WithoutCancel(ctx), tenantID, role)
		if err != nil && !errors.Is(err, accshared.ErrMappingNotFound) {
			return "", err
		}
		_ = c.client.Set(context.WithoutCancel(ctx), key, code, c.ttl).Err()
		return code, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		code, _ := res.Val.(string)
		if code == "" {
			return "", accshared.ErrMappingNotFound
		}
		return code, nil
	}
}

// Upsert writes through and drops the cached value.
func (c *CachedRepository) Upsert(ctx context.Context, m AccountMapping) error {
	if err := c.Repository.Upsert(ctx, m); err != nil {
		return err
	}
	if c.client != nil {
		return c.client.Del(ctx, cacheKey(m.TenantID, m.Role)).Err()
	}
	return nil
}
