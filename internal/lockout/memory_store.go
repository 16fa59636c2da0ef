package lockout

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type counter struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounterStore implements CounterStore in process.
type MemoryCounterStore struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, counter]
	now   func() time.Time
}

func NewMemoryCounterStore() *MemoryCounterStore {
	c := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, counter](),
	)
	go c.Start()

	return &MemoryCounterStore{cache: c, now: time.Now}
}

func (s *MemoryCounterStore) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c := counter{expiresAt: now.Add(window)}
	if item := s.cache.Get(key); item != nil && item.Value().expiresAt.After(now) {
		c = item.Value()
	}
	c.count++

	s.cache.Set(key, c, c.expiresAt.Sub(now))
	return c.count, nil
}

func (s *MemoryCounterStore) Get(_ context.Context, key string) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(key)
	if item == nil {
		return 0, 0, nil
	}
	c := item.Value()
	remaining := c.expiresAt.Sub(s.now())
	if remaining <= 0 {
		return 0, 0, nil
	}
	return c.count, remaining, nil
}

func (s *MemoryCounterStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Delete(key)
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryCounterStore) Close() error {
	s.cache.Stop()
	return nil
}

var _ CounterStore = (*MemoryCounterStore)(nil)
