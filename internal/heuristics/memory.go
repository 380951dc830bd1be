// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package heuristics

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store using a map (thread-safe).
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Observation
	now  func() time.Time
}

// NewMemoryStore creates an in-memory heuristics store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]Observation),
		now:  time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, url string) (Observation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obs, ok := s.data[url]
	return obs, ok, nil
}

func (s *MemoryStore) RecordByteSize(_ context.Context, url string, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obs := s.data[url]
	obs.ByteSize = n
	obs.UpdatedAt = s.now().UTC()
	s.data[url] = obs
	return nil
}

func (s *MemoryStore) RecordParseDuration(_ context.Context, url string, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obs := s.data[url]
	obs.ParseDuration = d
	obs.UpdatedAt = s.now().UTC()
	s.data[url] = obs
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.data = map[string]Observation{}
	s.mu.Unlock()
	return nil
}
