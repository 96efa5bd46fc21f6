package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/saaga0h/ea-advisor/pkg/redis"
)

// RedisStore persists documents as plain string keys scoped to a session
type RedisStore struct {
	client  redis.Client
	session string
	logger  *slog.Logger
}

// NewRedisStore creates a store writing under advisor:{session}:{key}
func NewRedisStore(client redis.Client, session string, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		client:  client,
		session: session,
		logger:  logger,
	}
}

func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, redis.StateKey(s.session, key))
	if errors.Is(err, redis.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return []byte(val), nil
}

// Save writes without TTL; documents live until cleared
func (s *RedisStore) Save(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, redis.StateKey(s.session, key), string(data), 0); err != nil {
		return err
	}
	s.logger.Debug("Persisted document", "key", key, "bytes", len(data))
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, redis.StateKey(s.session, key))
}
