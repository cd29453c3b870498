package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPresenceStore keeps one TTL key per user; an expired key means the
// user is offline.
type RedisPresenceStore struct {
	rdb *redis.Client
}

func NewRedisPresenceStore(rdb *redis.Client) *RedisPresenceStore {
	return &RedisPresenceStore{rdb: rdb}
}

func presenceKey(userID string) string {
	return "presence:user:" + userID
}

func (p *RedisPresenceStore) UpdateStatus(ctx context.Context, userID, status string, ttl time.Duration) error {
	return p.rdb.Set(ctx, presenceKey(userID), status, ttl).Err()
}

func (p *RedisPresenceStore) GetStatus(ctx context.Context, userID string) (string, error) {
	status, err := p.rdb.Get(ctx, presenceKey(userID)).Result()
	if err == redis.Nil {
		return "offline", nil
	}
	if err != nil {
		return "", err
	}
	return status, nil
}

func (p *RedisPresenceStore) Clear(ctx context.Context, userID string) error {
	return p.rdb.Del(ctx, presenceKey(userID)).Err()
}
