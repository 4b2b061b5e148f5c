package cachesvc

import (
	"context"
	"sync"

	"github.com/arkibo/backend/core/user"
)

// inmemCache backs tests and redis-less local runs.
type inmemCache struct {
	mu       sync.RWMutex
	profiles map[string]user.User
}

var _ user.ProfileCache = (*inmemCache)(nil)

func NewInmemCache() user.ProfileCache {
	return &inmemCache{profiles: make(map[string]user.User)}
}

func (c *inmemCache) Get(ctx context.Context, id string) (user.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if usr, ok := c.profiles[id]; ok {
		return usr, nil
	}
	return user.User{}, user.ErrCacheMiss
}

func (c *inmemCache) Set(ctx context.Context, usr user.User) error {
	c.mu.Lock()
	c.profiles[usr.ID] = usr
	c.mu.Unlock()
	return nil
}

func (c *inmemCache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	delete(c.profiles, id)
	c.mu.Unlock()
	return nil
}
