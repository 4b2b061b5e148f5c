package cachesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"

	"github.com/arkibo/backend/core"
	"github.com/arkibo/backend/core/user"
)

// profileTTL bounds staleness: a profile missed by an eviction still expires.
const profileTTL = 24 * time.Hour

type redisCache struct {
	client *redis.Client
}

var _ user.ProfileCache = (*redisCache)(nil)

func NewRedisCache(conf *core.Config) (user.ProfileCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := client.Ping().Err(); err != nil {
		return nil, errors.Wrap(err, "pinging redis")
	}
	return &redisCache{client: client}, nil
}

func profileKey(id string) string { return "profile:" + id }

func (c *redisCache) Get(ctx context.Context, id string) (user.User, error) {
	raw, err := c.client.Get(profileKey(id)).Bytes()
	switch {
	case err == redis.Nil:
		return user.User{}, user.ErrCacheMiss
	case err != nil:
		return user.User{}, errors.Wrap(err, "reading cached profile")
	}

	var usr user.User
	if err = json.Unmarshal(raw, &usr); err != nil {
		return user.User{}, errors.Wrap(err, "decoding cached profile")
	}
	return usr, nil
}

func (c *redisCache) Set(ctx context.Context, usr user.User) error {
	raw, err := json.Marshal(usr)
	if err != nil {
		return errors.Wrap(err, "encoding profile")
	}
	if err = c.client.Set(profileKey(usr.ID), raw, profileTTL).Err(); err != nil {
		return errors.Wrap(err, "caching profile")
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(profileKey(id)).Err(); err != nil {
		return errors.Wrap(err, "evicting cached profile")
	}
	return nil
}
