package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pilab-dev/shadow-auth/cache"
	"github.com/redis/go-redis/v9"
)

// ChallengeStore implements cache.ChallengeStore on Redis. Take uses GETDEL
// so concurrent redemptions cannot both succeed.
type ChallengeStore struct {
	client redis.UniversalClient
	prefix string
}

func NewChallengeStore(client redis.UniversalClient, prefix string) *ChallengeStore {
	return &ChallengeStore{client: client, prefix: prefix}
}

func (s *ChallengeStore) redisKey(token string) string {
	return fmt.Sprintf("%s:checkpoint:%s", s.prefix, cache.HashToken(token))
}

func (s *ChallengeStore) Put(ctx context.Context, token string, entry cache.PendingSecondFactor, ttl time.Duration) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal challenge: %w", err)
	}
	if err := s.client.Set(ctx, s.redisKey(token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store challenge in Redis: %w", err)
	}
	return nil
}

func (s *ChallengeStore) Get(ctx context.Context, token string) (*cache.PendingSecondFactor, error) {
	payload, err := s.client.Get(ctx, s.redisKey(token)).Bytes()
	return decode(payload, err)
}

func (s *ChallengeStore) Take(ctx context.Context, token string) (*cache.PendingSecondFactor, error) {
	payload, err := s.client.GetDel(ctx, s.redisKey(token)).Bytes()
	return decode(payload, err)
}

func decode(payload []byte, err error) (*cache.PendingSecondFactor, error) {
	if errors.Is(err, redis.Nil) {
		return nil, cache.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read challenge from Redis: %w", err)
	}

	var entry cache.PendingSecondFactor
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal challenge: %w", err)
	}
	return &entry, nil
}

var _ cache.ChallengeStore = (*ChallengeStore)(nil)
