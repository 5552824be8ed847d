package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is where the session state lives unless configured
// otherwise
const DefaultRedisKey = "flowcap:session"

// RedisStore keeps the session state in Redis so a restarted daemon, or
// a standby instance, picks up a live recording where it stopped
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. A zero ttl keeps the state
// until explicitly cleared.
func NewRedisStore(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key, ttl: ttl}
}

func (rs *RedisStore) Load(ctx context.Context) (*State, error) {
	data, err := rs.client.Get(ctx, rs.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return NewIdleState(), nil
		}
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}
	return decodeState(data)
}

func (rs *RedisStore) Save(ctx context.Context, st *State) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}
	if err := rs.client.Set(ctx, rs.key, data, rs.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}
	return nil
}

func (rs *RedisStore) Clear(ctx context.Context) error {
	if err := rs.client.Del(ctx, rs.key).Err(); err != nil {
		return fmt.Errorf("failed to clear session state: %w", err)
	}
	return nil
}
