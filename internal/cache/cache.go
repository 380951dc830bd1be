// SPDX-License-Identifier: MIT

// Package cache persists the last merged schedule so a restart can serve it
// before the first refresh completes.
package cache

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/klauspost/compress/gzip"

	"github.com/ManuGH/epgmerge/internal/epg"
	xglog "github.com/ManuGH/epgmerge/internal/log"
	"github.com/ManuGH/epgmerge/internal/metrics"
)

// Version is the envelope format. Files written with any other version are
// treated as a miss.
const Version = 1

// FileName is the cache file inside the data directory.
const FileName = "epg-cache.json.gz"

// Envelope is the on-disk record.
type Envelope struct {
	Version int                  `json:"version"`
	SavedAt time.Time            `json:"saved_at"`
	EPG     epg.Schedule         `json:"epg"`
	Map     epg.ChannelNameIndex `json:"map"`
}

// Store reads and writes the envelope at <dir>/epg-cache.json.gz.
// Writes replace the whole file atomically; concurrent readers see either
// the old or the new file.
type Store struct {
	path string
	now  func() time.Time
}

// NewStore returns a store rooted at dataDir.
func NewStore(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, FileName), now: time.Now}
}

// Path returns the cache file location.
func (s *Store) Path() string { return s.path }

// Save writes sched and names as the current envelope.
func (s *Store) Save(ctx context.Context, sched epg.Schedule, names epg.ChannelNameIndex) (err error) {
	defer func() { metrics.RecordCacheWrite(err) }()
	logger := xglog.WithComponentFromContext(ctx, "cache")

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	if sched == nil {
		sched = epg.Schedule{}
	}
	if names == nil {
		names = epg.ChannelNameIndex{}
	}
	env := Envelope{Version: Version, SavedAt: s.now().UTC(), EPG: sched, Map: names}

	pendingFile, err := renameio.NewPendingFile(s.path, renameio.WithPermissions(0o640))
	if err != nil {
		return fmt.Errorf("create pending cache file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending cache file")
		}
	}()

	gz := gzip.NewWriter(pendingFile)
	bw := bufio.NewWriter(gz)
	if err := json.NewEncoder(bw).Encode(env); err != nil {
		return fmt.Errorf("encode cache envelope: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write cache envelope: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("finish gzip stream: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace cache file: %w", err)
	}

	logger.Info().
		Str(xglog.FieldEvent, "cache.save").
		Str(xglog.FieldPath, s.path).
		Int(xglog.FieldChannels, len(sched)).
		Int(xglog.FieldProgrammes, sched.Programmes()).
		Msg("cache written")
	return nil
}

// Load reads the envelope. A missing, unreadable, corrupt or
// version-mismatched file is reported as (nil, false).
func (s *Store) Load(ctx context.Context) (*Envelope, bool) {
	logger := xglog.WithComponentFromContext(ctx, "cache")

	env, err := s.read()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Debug().
				Str(xglog.FieldEvent, "cache.miss").
				Str(xglog.FieldPath, s.path).
				Err(err).
				Msg("cache unusable, ignoring")
		}
		metrics.IncCacheLoad(false)
		return nil, false
	}

	metrics.IncCacheLoad(true)
	logger.Info().
		Str(xglog.FieldEvent, "cache.load").
		Time("saved_at", env.SavedAt).
		Int(xglog.FieldChannels, len(env.EPG)).
		Msg("cache loaded")
	return env, true
}

func (s *Store) read() (*Envelope, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer func() { _ = gz.Close() }()

	var env Envelope
	if err := json.NewDecoder(gz).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	// Reach EOF so the gzip checksum is verified.
	if _, err := io.Copy(io.Discard, gz); err != nil {
		return nil, fmt.Errorf("verify gzip stream: %w", err)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("envelope version %d, want %d", env.Version, Version)
	}
	if env.EPG == nil {
		env.EPG = epg.Schedule{}
	}
	if env.Map == nil {
		env.Map = epg.ChannelNameIndex{}
	}
	return &env, nil
}
