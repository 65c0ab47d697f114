package redis

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/fedbroker/internal/cache"
	rdb "github.com/redis/go-redis/v9"
)

// Cache implementa cache.Client sobre go-redis.
type Cache struct {
	c      *rdb.Client
	prefix string
}

// New crea un cliente Redis.
func New(addr, password string, db int, prefix string) *Cache {
	return &Cache{
		c:      rdb.NewClient(&rdb.Options{Addr: addr, Password: password, DB: db}),
		prefix: prefix,
	}
}

func (r *Cache) key(k string) string { return r.prefix + k }

func (r *Cache) Get(ctx context.Context, k string) (string, error) {
	v, err := r.c.Get(ctx, r.key(k)).Result()
	if err != nil {
		if errors.Is(err, rdb.Nil) {
			return "", cache.ErrNotFound
		}
		return "", err
	}
	return v, nil
}

func (r *Cache) Set(ctx context.Context, k, v string, ttl time.Duration) error {
	return r.c.Set(ctx, r.key(k), v, ttl).Err()
}

func (r *Cache) Delete(ctx context.Context, k string) error {
	return r.c.Del(ctx, r.key(k)).Err()
}

func (r *Cache) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }
func (r *Cache) Close() error                   { return r.c.Close() }
