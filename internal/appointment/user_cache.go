package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// CachedUserDirectory memoizes user lookups. Misses are not cached.
type CachedUserDirectory struct {
	next  UserDirectory
	cache *cache.Cache
}

func NewCachedUserDirectory(next UserDirectory, ttl time.Duration) *CachedUserDirectory {
	return &CachedUserDirectory{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *CachedUserDirectory) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	if v, ok := c.cache.Get(id.String()); ok {
		u := v.(User)
		return &u, nil
	}

	u, err := c.next.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(id.String(), *u)
	return u, nil
}

// ListUsersByRole is not cached; listings must reflect new registrations.
func (c *CachedUserDirectory) ListUsersByRole(ctx context.Context, role Role) ([]User, error) {
	return c.next.ListUsersByRole(ctx, role)
}

func (c *CachedUserDirectory) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	return c.next.ListUsers(ctx, limit, offset)
}

// Forget drops a cached user, e.g. after a profile change.
func (c *CachedUserDirectory) Forget(id uuid.UUID) {
	c.cache.Delete(id.String())
}
