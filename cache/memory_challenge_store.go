package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryChallengeStore implements ChallengeStore using ttlcache.
type MemoryChallengeStore struct {
	cache *ttlcache.Cache[string, PendingSecondFactor]
}

// NewMemoryChallengeStore creates an in-memory store with automatic cleanup.
// defaultTTL applies when Put is called with a non-positive ttl.
func NewMemoryChallengeStore(defaultTTL time.Duration) *MemoryChallengeStore {
	c := ttlcache.New(
		ttlcache.WithTTL[string, PendingSecondFactor](defaultTTL),
		ttlcache.WithDisableTouchOnHit[string, PendingSecondFactor](),
	)

	go c.Start()

	return &MemoryChallengeStore{cache: c}
}

func (s *MemoryChallengeStore) Put(_ context.Context, token string, entry PendingSecondFactor, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.DefaultTTL
	}
	s.cache.Set(HashToken(token), entry, ttl)
	return nil
}

func (s *MemoryChallengeStore) Get(_ context.Context, token string) (*PendingSecondFactor, error) {
	item := s.cache.Get(HashToken(token))
	if item == nil {
		return nil, ErrChallengeNotFound
	}
	entry := item.Value()
	return &entry, nil
}

func (s *MemoryChallengeStore) Take(_ context.Context, token string) (*PendingSecondFactor, error) {
	item, ok := s.cache.GetAndDelete(HashToken(token))
	if !ok || item == nil {
		return nil, ErrChallengeNotFound
	}
	entry := item.Value()
	return &entry, nil
}

// Len returns the number of live entries.
func (s *MemoryChallengeStore) Len() int {
	return s.cache.Len()
}

// Close stops the cleanup goroutine.
func (s *MemoryChallengeStore) Close() error {
	s.cache.Stop()
	return nil
}

var _ ChallengeStore = (*MemoryChallengeStore)(nil)
