// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package heuristics remembers per-source byte sizes and parse durations so
// later runs can estimate progress before the first byte arrives.
package heuristics

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// Observation is what was learned about one source URL.
// Zero fields mean the value was never recorded.
type Observation struct {
	ByteSize      int64         `json:"byte_size"`
	ParseDuration time.Duration `json:"parse_duration"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Store persists observations keyed by source URL. Writes are
// last-writer-wins and safe for concurrent use.
type Store interface {
	Get(ctx context.Context, url string) (Observation, bool, error)
	RecordByteSize(ctx context.Context, url string, n int64) error
	RecordParseDuration(ctx context.Context, url string, d time.Duration) error
	Close() error
}

// Supported backends.
const (
	BackendSqlite = "sqlite"
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// File names of the on-disk backends inside Config.Dir.
const (
	SqliteFileName = "heuristics.sqlite"
	BadgerDirName  = "heuristics.badger"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	Dir     string // data directory for sqlite and badger
	Redis   RedisConfig
}

// NewStore creates a heuristics store based on the backend.
func NewStore(cfg Config) (Store, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = BackendSqlite
	}

	switch backend {
	case BackendSqlite:
		if cfg.Dir == "" {
			return NewMemoryStore(), nil
		}
		return NewSqliteStore(filepath.Join(cfg.Dir, SqliteFileName))
	case BackendBadger:
		if cfg.Dir == "" {
			return NewMemoryStore(), nil
		}
		return NewBadgerStore(filepath.Join(cfg.Dir, BadgerDirName))
	case BackendRedis:
		return NewRedisStore(cfg.Redis)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown heuristics backend: %s (supported: sqlite, badger, redis, memory)", backend)
	}
}
