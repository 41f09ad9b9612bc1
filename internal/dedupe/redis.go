package dedupe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bakkerme/digestbot/internal/core"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the connection used by RedisStore.
type RedisConfig struct {
	Addr     string // e.g. localhost:6379
	Password string
	DB       int
}

func NewRedisClient(cfg RedisConfig) *redis.Client {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = "localhost:6379"
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisAPI is the subset of the Redis client the store needs, so tests can fake it.
type RedisAPI interface {
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisStore keeps the seen set in a Redis SET so several hosts can share it.
// Saves only ever add members, so concurrent runs against the same key merge.
type RedisStore struct {
	client RedisAPI
	key    string
	ttl    time.Duration
}

func NewRedisStore(client RedisAPI, key string, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("redis key is required")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("redis ttl must be >= 0")
	}
	return &RedisStore{client: client, key: key, ttl: ttl}, nil
}

func (s *RedisStore) Load(ctx context.Context) (core.SeenSet, error) {
	links, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return core.NewSeenSet(), &core.StoreLoadError{Err: fmt.Errorf("smembers %s: %w", s.key, err)}
	}
	return core.NewSeenSet(links...), nil
}

// Save adds the links to the set. Members already stored are never removed,
// so a run that started from an empty set after a failed Load cannot shrink it.
func (s *RedisStore) Save(ctx context.Context, seen core.SeenSet) error {
	links := seen.Links()
	if len(links) == 0 {
		return nil
	}
	members := make([]interface{}, 0, len(links))
	for _, link := range links {
		members = append(members, link)
	}
	if err := s.client.SAdd(ctx, s.key, members...).Err(); err != nil {
		return fmt.Errorf("sadd %s: %w", s.key, err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, s.key, s.ttl).Err(); err != nil {
			return fmt.Errorf("expire %s: %w", s.key, err)
		}
	}
	return nil
}
