package presence

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// onlineSetKey is the shared Redis set holding the ids of every user
// with at least one live connection, across all gateway instances.
const onlineSetKey = "presence:online"

// RedisSetStore adapts a Redis client to the SetStore contract. Redis
// set commands are atomic, which gives the tracker read-your-write
// consistency for free: an IsOnline immediately after MarkOnline sees
// the new membership.
type RedisSetStore struct {
	client *redis.Client
	key    string
}

func NewRedisSetStore(client *redis.Client) *RedisSetStore {
	return &RedisSetStore{client: client, key: onlineSetKey}
}

// Add returns true when the member was not already in the set — SAdd's
// reply is the number of members actually added.
func (s *RedisSetStore) Add(ctx context.Context, member string) (bool, error) {
	added, err := s.client.SAdd(ctx, s.key, member).Result()
	if err != nil {
		return false, err
	}
	return added > 0, nil
}

// Remove returns true when the member was actually present.
func (s *RedisSetStore) Remove(ctx context.Context, member string) (bool, error) {
	removed, err := s.client.SRem(ctx, s.key, member).Result()
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

func (s *RedisSetStore) Contains(ctx context.Context, member string) (bool, error) {
	return s.client.SIsMember(ctx, s.key, member).Result()
}

func (s *RedisSetStore) Members(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, s.key).Result()
}
