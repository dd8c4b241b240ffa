// Package cache keeps recent feed snapshots so repeated reports within the
// TTL do not hit the data service.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"allergystats/internal/feeds/models"
	"allergystats/pkg/platform/sentinel"
)

// MemoryCache is a process-local snapshot cache.
type MemoryCache struct {
	items *gocache.Cache
}

// NewMemoryCache builds a cache whose expired entries are swept every
// cleanup interval.
func NewMemoryCache(cleanup time.Duration) *MemoryCache {
	return &MemoryCache{items: gocache.New(gocache.NoExpiration, cleanup)}
}

// Get returns sentinel.ErrNotFound on a miss. Snapshots are shared, callers
// must not mutate them.
func (c *MemoryCache) Get(_ context.Context, key string) (*models.Snapshot, error) {
	v, ok := c.items.Get(key)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return v.(*models.Snapshot), nil
}

// Set stores the snapshot for ttl; a non-positive ttl is a no-op.
func (c *MemoryCache) Set(_ context.Context, key string, snap *models.Snapshot, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.items.Set(key, snap, ttl)
	return nil
}
