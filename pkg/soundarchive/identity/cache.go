package identity

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tendant/sound-archive/pkg/soundarchive"
)

const (
	defaultRoleCacheSize = 1024
	defaultRoleCacheTTL  = 30 * time.Second
)

type roleEntry struct {
	role     soundarchive.Role
	found    bool
	storedAt time.Time
}

// CachedRoles wraps a RoleChecker with a size-bounded LRU. Entries expire
// after ttl; failed lookups are never cached.
type CachedRoles struct {
	delegate soundarchive.RoleChecker
	cache    *lru.Cache[string, roleEntry]
	ttl      time.Duration
	now      func() time.Time
}

// NewCachedRoles wraps delegate. Non-positive size or ttl fall back to defaults.
func NewCachedRoles(delegate soundarchive.RoleChecker, size int, ttl time.Duration) (*CachedRoles, error) {
	if size <= 0 {
		size = defaultRoleCacheSize
	}
	if ttl <= 0 {
		ttl = defaultRoleCacheTTL
	}
	cache, err := lru.New[string, roleEntry](size)
	if err != nil {
		return nil, err
	}
	return &CachedRoles{delegate: delegate, cache: cache, ttl: ttl, now: time.Now}, nil
}

// RoleOf implements soundarchive.RoleChecker.
func (c *CachedRoles) RoleOf(ctx context.Context, principalID string) (soundarchive.Role, error) {
	if entry, ok := c.cache.Get(principalID); ok {
		if c.now().Sub(entry.storedAt) < c.ttl {
			if !entry.found {
				return "", soundarchive.ErrNotFound
			}
			return entry.role, nil
		}
		c.cache.Remove(principalID)
	}

	role, err := c.delegate.RoleOf(ctx, principalID)
	switch {
	case err == nil:
		c.cache.Add(principalID, roleEntry{role: role, found: true, storedAt: c.now()})
	case isNotFound(err):
		c.cache.Add(principalID, roleEntry{storedAt: c.now()})
	}
	return role, err
}

// Invalidate drops the cached role of a principal, e.g. after an admin edit.
func (c *CachedRoles) Invalidate(principalID string) {
	c.cache.Remove(principalID)
}
