package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/speedrun-hq/speedrun-minter/pkg/models"
)

// RedisJournal stores results in Redis so they survive restarts and are shared between replicas
type RedisJournal struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ Journal = (*RedisJournal)(nil)

// NewRedisJournal connects to the Redis server at url
func NewRedisJournal(ctx context.Context, url string, ttl time.Duration) (*RedisJournal, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisJournal{rdb: rdb, ttl: ttl}, nil
}

// Key helpers
func resultKey(id string) string {
	return fmt.Sprintf("mint:result:%s", id)
}

func (j *RedisJournal) Get(ctx context.Context, id string) (*models.MintResult, error) {
	data, err := j.rdb.Get(ctx, resultKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mint result: %w", err)
	}

	var result models.MintResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mint result: %w", err)
	}
	return &result, nil
}

func (j *RedisJournal) Put(ctx context.Context, result *models.MintResult) error {
	if result == nil || result.ID == "" {
		return errors.New("result without id")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal mint result: %w", err)
	}

	if err := j.rdb.Set(ctx, resultKey(result.ID), data, j.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set mint result: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (j *RedisJournal) Close() error {
	return j.rdb.Close()
}
