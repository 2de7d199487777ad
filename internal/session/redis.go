package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the token in Redis so several dashboard processes share
// one session.
type RedisStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

// NewRedisStore connects and pings. prefix namespaces the key, so the stored
// key is prefix + TokenKey.
func NewRedisStore(ctx context.Context, addr, password string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("session.NewRedisStore: ping: %w", err)
	}

	return &RedisStore{client: client, key: prefix + TokenKey, now: time.Now}, nil
}

func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("session.RedisStore.Close: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (string, error) {
	tok, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("session.RedisStore.Load: %w", err)
	}
	return tok, nil
}

// Save stores token. A JWT with an expiry gets a matching key TTL.
func (s *RedisStore) Save(ctx context.Context, token string) error {
	var ttl time.Duration
	if info, err := Inspect(token); err == nil && info.ExpiresAt != nil {
		ttl = info.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return fmt.Errorf("session.RedisStore.Save: %w", ErrExpired)
		}
	}
	if err := s.client.Set(ctx, s.key, token, ttl).Err(); err != nil {
		return fmt.Errorf("session.RedisStore.Save: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("session.RedisStore.Clear: %w", err)
	}
	return nil
}

// Client exposes the connection so other components can share it.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}
