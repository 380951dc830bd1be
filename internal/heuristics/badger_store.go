// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package heuristics

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "heur:"

// BadgerStore keeps one JSON Observation per key "heur:<url>".
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db, now: time.Now}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func (s *BadgerStore) Get(_ context.Context, url string) (Observation, bool, error) {
	var obs Observation
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + url))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &obs)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Observation{}, false, nil
	}
	if err != nil {
		return Observation{}, false, err
	}
	return obs, true, nil
}

func (s *BadgerStore) RecordByteSize(_ context.Context, url string, n int64) error {
	return s.update(url, func(obs *Observation) { obs.ByteSize = n })
}

func (s *BadgerStore) RecordParseDuration(_ context.Context, url string, d time.Duration) error {
	return s.update(url, func(obs *Observation) { obs.ParseDuration = d })
}

// update retries on transaction conflicts so concurrent writers end up
// last-writer-wins instead of failing.
func (s *BadgerStore) update(url string, fn func(*Observation)) error {
	var err error
	for range 3 {
		err = s.updateOnce(url, fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (s *BadgerStore) updateOnce(url string, fn func(*Observation)) error {
	key := []byte(badgerKeyPrefix + url)
	return s.db.Update(func(txn *badger.Txn) error {
		var obs Observation
		item, err := txn.Get(key)
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &obs)
			}); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		fn(&obs)
		obs.UpdatedAt = s.now().UTC()
		buf, err := json.Marshal(obs)
		if err != nil {
			return err
		}
		return txn.Set(key, buf)
	})
}
