// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/epgmerge/internal/epg"
)

func sample() (epg.Schedule, epg.ChannelNameIndex) {
	start := time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC)
	sched := epg.Schedule{
		"bbc1.uk": {
			{ChannelID: "bbc1.uk", Title: "News", Description: "Headlines", Start: start, Stop: start.Add(30 * time.Minute)},
			{ChannelID: "bbc1.uk", Title: "Weather", Start: start.Add(30 * time.Minute), Stop: start.Add(time.Hour)},
		},
	}
	names := epg.ChannelNameIndex{"bbc one": "bbc1.uk", "bbc 1": "bbc1.uk"}
	return sched, names
}

func writeGzip(t *testing.T, path string, payload []byte) {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore(t.TempDir())
	saved := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return saved }

	sched, names := sample()
	require.NoError(t, s.Save(ctx, sched, names))

	env, ok := s.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, Version, env.Version)
	assert.True(t, env.SavedAt.Equal(saved))
	if diff := cmp.Diff(sched, env.EPG); diff != "" {
		t.Errorf("schedule (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(names, env.Map); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
}

func TestStoreSaveReplaces(t *testing.T) {
	ctx := context.Background()
	s := NewStore(filepath.Join(t.TempDir(), "nested", "data"))

	sched, names := sample()
	require.NoError(t, s.Save(ctx, sched, names))
	require.NoError(t, s.Save(ctx, nil, nil))

	env, ok := s.Load(ctx)
	require.True(t, ok)
	assert.Empty(t, env.EPG)
	assert.Empty(t, env.Map)
	assert.NotNil(t, env.EPG)

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files may remain")
}

func TestStoreLoadMisses(t *testing.T) {
	ctx := context.Background()

	tests := map[string]func(t *testing.T, path string){
		"missing": func(t *testing.T, path string) {},
		"not gzip": func(t *testing.T, path string) {
			require.NoError(t, os.WriteFile(path, []byte(`{"version":1}`), 0o600))
		},
		"truncated gzip": func(t *testing.T, path string) {
			var buf bytes.Buffer
			w := gzip.NewWriter(&buf)
			_, _ = w.Write([]byte(`{"version":1,"epg":{},"map":{}}`))
			_ = w.Close()
			require.NoError(t, os.WriteFile(path, buf.Bytes()[:buf.Len()-6], 0o600))
		},
		"bad json": func(t *testing.T, path string) {
			writeGzip(t, path, []byte(`{"version":1,"epg":[`))
		},
		"version mismatch": func(t *testing.T, path string) {
			writeGzip(t, path, []byte(`{"version":99,"saved_at":"2025-01-01T00:00:00Z","epg":{},"map":{}}`))
		},
	}

	for name, prepare := range tests {
		t.Run(name, func(t *testing.T) {
			s := NewStore(t.TempDir())
			prepare(t, s.Path())

			env, ok := s.Load(ctx)
			assert.False(t, ok)
			assert.Nil(t, env)
		})
	}
}

func TestStoreSaveHonoursCancellation(t *testing.T) {
	s := NewStore(t.TempDir())
	sched, names := sample()
	require.NoError(t, s.Save(context.Background(), sched, names))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Save(ctx, nil, nil), context.Canceled)

	env, ok := s.Load(context.Background())
	require.True(t, ok)
	assert.Len(t, env.EPG["bbc1.uk"], 2, "previous envelope must survive")
}
