package memory

import (
	"context"
	"time"

	"github.com/dropDatabas3/fedbroker/internal/cache"
	gocache "github.com/patrickmn/go-cache"
)

// Mem implementa cache.Client sobre patrickmn/go-cache (in-process).
type Mem struct {
	c      *gocache.Cache
	prefix string
}

// New crea un cache en memoria con TTL por defecto.
func New(defaultTTL time.Duration, prefix string) *Mem {
	if defaultTTL <= 0 {
		defaultTTL = gocache.NoExpiration
	}
	return &Mem{c: gocache.New(defaultTTL, time.Minute), prefix: prefix}
}

func (m *Mem) key(k string) string { return m.prefix + k }

func (m *Mem) Get(_ context.Context, k string) (string, error) {
	v, ok := m.c.Get(m.key(k))
	if !ok {
		return "", cache.ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *Mem) Set(_ context.Context, k, v string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(m.key(k), v, ttl)
	return nil
}

func (m *Mem) Delete(_ context.Context, k string) error {
	m.c.Delete(m.key(k))
	return nil
}

func (m *Mem) Ping(context.Context) error { return nil }
func (m *Mem) Close() error               { return nil }
