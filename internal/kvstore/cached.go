package kvstore

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// CachedStore fronts a slower backend with a short lived read cache. Writes
// go to the backend first and then refresh the cache.
type CachedStore struct {
	next  Store
	cache *ttlcache.Cache[string, string]
}

func NewCachedStore(next Store, ttl time.Duration) *CachedStore {
	c := ttlcache.New(
		ttlcache.WithTTL[string, string](ttl),
	)
	return &CachedStore{next: next, cache: c}
}

// StartEviction runs expiry until ctx is done.
func (s *CachedStore) StartEviction(ctx context.Context) {
	go s.cache.Start()
	<-ctx.Done()
	s.cache.Stop()
}

func (s *CachedStore) Get(ctx context.Context, key string) (string, error) {
	if item := s.cache.Get(key); item != nil {
		return item.Value(), nil
	}
	v, err := s.next.Get(ctx, key)
	if err != nil {
		return "", err
	}
	s.cache.Set(key, v, ttlcache.DefaultTTL)
	return v, nil
}

func (s *CachedStore) Set(ctx context.Context, key, value string) error {
	if err := s.next.Set(ctx, key, value); err != nil {
		s.cache.Delete(key)
		return err
	}
	s.cache.Set(key, value, ttlcache.DefaultTTL)
	return nil
}

func (s *CachedStore) Remove(ctx context.Context, key string) error {
	s.cache.Delete(key)
	return s.next.Remove(ctx, key)
}
