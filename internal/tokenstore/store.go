package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound means no token has been saved.
var ErrNotFound = errors.New("token not found")

const (
	DefaultKey = "arena:token"
	ttlToken   = 7 * 24 * time.Hour
)

// Store keeps the bearer token between runs of the client.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
	Close() error
}

// Open returns a redis store for redisURL, or a memory store when it is empty.
func Open(ctx context.Context, redisURL, key string) (Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return NewMemory(), nil
	}
	opts, err := redisOptions(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedis(rdb, key), nil
}

type Redis struct {
	rdb *redis.Client
	key string
}

func NewRedis(rdb *redis.Client, key string) *Redis {
	if strings.TrimSpace(key) == "" {
		key = DefaultKey
	}
	return &Redis{rdb: rdb, key: key}
}

func (s *Redis) Load(ctx context.Context) (string, error) {
	tok, err := s.rdb.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return tok, nil
}

func (s *Redis) Save(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return s.Clear(ctx)
	}
	if err := s.rdb.Set(ctx, s.key, token, ttlToken).Err(); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *Redis) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

func (s *Redis) Close() error { return s.rdb.Close() }

// Memory keeps the token for the lifetime of the process only.
type Memory struct {
	mu    sync.Mutex
	token string
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return "", ErrNotFound
	}
	return m.token, nil
}

func (m *Memory) Save(_ context.Context, token string) error {
	m.mu.Lock()
	m.token = strings.TrimSpace(token)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

// redisOptions accepts redis:// and rediss:// URLs, including ACL user and db path.
func redisOptions(raw string) (*redis.Options, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	return opts, nil
}
