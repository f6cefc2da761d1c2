package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey holds the snapshot document when no key is configured.
const DefaultRedisKey = "marketfeed:snapshot"

// RedisRepository stores the snapshot document under a single Redis key.
type RedisRepository struct {
	rdb     *redis.Client
	key     string
	timeout time.Duration
}

// NewRedisRepository connects and pings Redis.
func NewRedisRepository(ctx context.Context, addr, password string, db int, key string) (*RedisRepository, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if key == "" {
		key = DefaultRedisKey
	}
	log.Printf("[INFO] redis snapshot repository connected: %s key=%s", addr, key)
	return &RedisRepository{rdb: rdb, key: key, timeout: 5 * time.Second}, nil
}

func (r *RedisRepository) Load() (*Document, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	b, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decodeDocument(b)
}

func (r *RedisRepository) Save(doc *Document) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.rdb.Set(ctx, r.key, b, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisRepository) Close() error {
	return r.rdb.Close()
}
