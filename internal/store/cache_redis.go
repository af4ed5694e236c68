package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// redisCache is the network-reachable alternative to the filesystem
// cache, useful when several pushers or mounts share one cache tier.
type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Entry
}

// NewRedisCache returns a cache backend over an already-constructed
// redis.Client (real server, testcontainers, or miniredis in tests).
func NewRedisCache(client *redis.Client, ttl time.Duration, log *logrus.Logger) cache {
	return &redisCache{client: client, ttl: ttl, log: logrus.NewEntry(log).WithField("component", "store.cache.redis")}
}

func (c *redisCache) load(uuid string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := c.client.Get(ctx, uuid).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *redisCache) store(uuid string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.Set(ctx, uuid, data, c.ttl).Err(); err != nil {
		c.log.WithError(err).WithField("uuid", uuid).Warn("cache write failed")
	}
}
