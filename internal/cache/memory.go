package cache

import (
	"context"
	"time"

	"github.com/gobwas/glob"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore 进程内缓存后端, 未启用redis时使用
type MemoryStore struct {
	items *gocache.Cache
}

func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{items: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	s.items.Set(key, value, ttl)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.items.Get(key)
	if !ok {
		return "", false, nil
	}
	str, _ := v.(string)
	return str, true, nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.items.Delete(k)
	}
	return nil
}

// Keys 按glob匹配, *可以跨越':'
func (s *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	var keys []string
	for k := range s.items.Items() {
		if g.Match(k) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.items.Get(key)
	return ok, nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	_, exp, ok := s.items.GetWithExpiration(key)
	if !ok {
		return NoKey, nil
	}
	if exp.IsZero() {
		return NoExpiry, nil
	}
	return time.Until(exp), nil
}

func (s *MemoryStore) Flush(_ context.Context) error {
	s.items.Flush()
	return nil
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
