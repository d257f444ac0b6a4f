package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre go-cache.
// go-cache es thread-safe por operación; wmu serializa las escrituras para que
// Take (get + delete) sea atómico frente a Set/SetNX concurrentes.
type memoryClient struct {
	prefix string
	c      *gocache.Cache
	wmu    sync.Mutex
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemory crea un cliente de cache en memoria. cleanup es el intervalo del
// janitor de go-cache (0 = un minuto).
func NewMemory(prefix string, cleanup time.Duration) *memoryClient {
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &memoryClient{
		prefix: prefix,
		c:      gocache.New(gocache.NoExpiration, cleanup),
	}
}

func (m *memoryClient) key(k string) string { return prefixed(m.prefix, k) }

func ttlOf(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

func (m *memoryClient) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.c.Get(m.key(key))
	if !ok {
		m.misses.Add(1)
		return "", ErrNotFound
	}
	m.hits.Add(1)
	s, _ := v.(string)
	return s, nil
}

func (m *memoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.wmu.Lock()
	defer m.wmu.Unlock()
	m.c.Set(m.key(key), value, ttlOf(ttl))
	return nil
}

func (m *memoryClient) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.wmu.Lock()
	defer m.wmu.Unlock()
	// Add falla si la key existe y no expiró
	if err := m.c.Add(m.key(key), value, ttlOf(ttl)); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *memoryClient) Take(ctx context.Context, key string) (string, error) {
	m.wmu.Lock()
	defer m.wmu.Unlock()
	k := m.key(key)
	v, ok := m.c.Get(k)
	if !ok {
		m.misses.Add(1)
		return "", ErrNotFound
	}
	m.c.Delete(k)
	m.hits.Add(1)
	s, _ := v.(string)
	return s, nil
}

func (m *memoryClient) Delete(ctx context.Context, key string) error {
	m.wmu.Lock()
	defer m.wmu.Unlock()
	m.c.Delete(m.key(key))
	return nil
}

func (m *memoryClient) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.c.Get(m.key(key))
	return ok, nil
}

func (m *memoryClient) Ping(ctx context.Context) error { return nil }

func (m *memoryClient) Close() error {
	m.c.Flush()
	return nil
}

func (m *memoryClient) Stats(ctx context.Context) (Stats, error) {
	m.c.DeleteExpired()
	return Stats{
		Driver: "memory",
		Keys:   int64(m.c.ItemCount()),
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
	}, nil
}
