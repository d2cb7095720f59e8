package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LexiconIndonesia/photo-storage-gateway/common/gateway"
	"github.com/redis/go-redis/v9"
)

// RedisConfig locates the Redis instance holding the descriptor
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisSource reads the descriptor from a Redis key
type RedisSource struct {
	client getter
	key    string
	closer func() error
}

// NewRedisSource connects to Redis and checks the connection
func NewRedisSource(ctx context.Context, cfg RedisConfig, key string) (*RedisSource, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: failed to connect to Redis: %w", gateway.ErrConfiguration, err)
	}

	return &RedisSource{
		client: client,
		key:    key,
		closer: client.Close,
	}, nil
}

func (s *RedisSource) ConnectionString(ctx context.Context) (string, error) {
	value, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: redis key %s is not set", gateway.ErrConfiguration, s.key)
	}
	if err != nil {
		return "", fmt.Errorf("%w: reading redis key %s: %w", gateway.ErrConfiguration, s.key, err)
	}
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%w: redis key %s is empty", gateway.ErrConfiguration, s.key)
	}
	return strings.TrimSpace(value), nil
}

// Close closes the Redis client connection
func (s *RedisSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
