// SPDX-License-Identifier: MIT

package heuristics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces the per-URL hashes.
const DefaultRedisKeyPrefix = "epgmerge:heuristics:"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr      string // Redis server address (host:port)
	Password  string // Redis password (optional)
	DB        int    // Redis database number
	KeyPrefix string // defaults to "epgmerge:heuristics:"
}

// RedisStore keeps one hash per source URL so several instances can share
// what they learned.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore connects and pings the server.
func NewRedisStore(config RedisConfig) (*RedisStore, error) {
	if config.Addr == "" {
		return nil, errors.New("redis heuristics store: addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}, nil
}

func (s *RedisStore) key(url string) string { return s.prefix + url }

func (s *RedisStore) Get(ctx context.Context, url string) (Observation, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(url)).Result()
	if err != nil {
		return Observation{}, false, err
	}
	if len(fields) == 0 {
		return Observation{}, false, nil
	}

	var obs Observation
	if v, ok := fields["byte_size"]; ok {
		obs.ByteSize, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := fields["parse_duration_seconds"]; ok {
		secs, _ := strconv.ParseFloat(v, 64)
		obs.ParseDuration = time.Duration(secs * float64(time.Second))
	}
	if v, ok := fields["updated_at"]; ok {
		obs.UpdatedAt, _ = time.Parse(time.RFC3339Nano, v)
	}
	return obs, true, nil
}

func (s *RedisStore) RecordByteSize(ctx context.Context, url string, n int64) error {
	return s.client.HSet(ctx, s.key(url),
		"byte_size", n,
		"updated_at", s.now().UTC().Format(time.RFC3339Nano),
	).Err()
}

func (s *RedisStore) RecordParseDuration(ctx context.Context, url string, d time.Duration) error {
	return s.client.HSet(ctx, s.key(url),
		"parse_duration_seconds", strconv.FormatFloat(d.Seconds(), 'f', -1, 64),
		"updated_at", s.now().UTC().Format(time.RFC3339Nano),
	).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
