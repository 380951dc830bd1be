// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/ManuGH/epgmerge/internal/epg"
	"github.com/ManuGH/epgmerge/internal/platform/httpx"
)

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<tv>
  <channel id="bbc1.uk"><display-name>BBC One</display-name></channel>
  <programme channel="bbc1.uk" start="20250101180000 +0000" stop="20250101183000 +0000"><title>News</title></programme>
</tv>
`

type sizeRecorder struct {
	mu    sync.Mutex
	sizes map[string]int64
}

func (r *sizeRecorder) RecordByteSize(_ context.Context, url string, n int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sizes == nil {
		r.sizes = map[string]int64{}
	}
	r.sizes[url] = n
	return nil
}

type progressLog struct {
	mu     sync.Mutex
	values []float64
}

func (p *progressLog) report(f float64) {
	p.mu.Lock()
	p.values = append(p.values, f)
	p.mu.Unlock()
}

func (p *progressLog) assertMonotonic(t *testing.T) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.values)
	for i, v := range p.values {
		assert.LessOrEqual(t, v, 0.99)
		if i > 0 {
			assert.GreaterOrEqual(t, v, p.values[i-1])
		}
	}
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newFetcher(t *testing.T, opts Options) (*Fetcher, string) {
	t.Helper()
	dir := t.TempDir()
	opts.ScratchDir = dir
	if opts.Client == nil {
		opts.Client = httpx.NewClient(5 * time.Second)
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = time.Millisecond
	}
	return New(opts), dir
}

func assertScratchEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch files left behind")
}

func readPayload(t *testing.T, p *Payload) string {
	t.Helper()
	data, err := io.ReadAll(p)
	require.NoError(t, err)
	return string(data)
}

func TestFetchPlainWithContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = io.WriteString(w, sampleXML)
	}))
	defer srv.Close()

	rec := &sizeRecorder{}
	f, dir := newFetcher(t, Options{Sizes: rec})
	var prog progressLog

	p, err := f.Fetch(context.Background(), epg.SourceDescriptor{URL: srv.URL}, prog.report)
	require.NoError(t, err)

	assert.Equal(t, EncodingIdentity, p.Encoding)
	assert.Equal(t, int64(len(sampleXML)), p.Bytes)
	assert.Equal(t, sampleXML, readPayload(t, p))
	prog.assertMonotonic(t)
	assert.Equal(t, int64(len(sampleXML)), rec.sizes[srv.URL])

	require.NoError(t, p.Close())
	assertScratchEmpty(t, dir)
}

func TestFetchGzipWithoutContentLength(t *testing.T) {
	gz := gzipBytes(t, []byte(sampleXML))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Flushing before the body is complete forces chunked encoding.
		half := len(gz) / 2
		_, _ = w.Write(gz[:half])
		w.(http.Flusher).Flush()
		_, _ = w.Write(gz[half:])
	}))
	defer srv.Close()

	rec := &sizeRecorder{}
	f, dir := newFetcher(t, Options{Sizes: rec})
	var prog progressLog

	p, err := f.Fetch(context.Background(), epg.SourceDescriptor{URL: srv.URL}, prog.report)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	assert.Equal(t, EncodingGzip, p.Encoding)
	assert.Equal(t, int64(len(gz)), p.WireBytes)
	assert.Equal(t, sampleXML, readPayload(t, p))
	assert.Equal(t, int64(len(gz)), rec.sizes[srv.URL])

	// Without Content-Length or history the 16 MiB fallback is the denominator.
	prog.assertMonotonic(t)
	last := prog.values[len(prog.values)-1]
	assert.InDelta(t, float64(len(gz))/float64(DefaultFallbackByteSize), last, 1e-9)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the inflated payload should remain")
}

func TestFetchUsesRememberedSizeAndCapsProgress(t *testing.T) {
	body := []byte(strings.Repeat(sampleXML, 20))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body[:100])
		w.(http.Flusher).Flush()
		_, _ = w.Write(body[100:])
	}))
	defer srv.Close()

	f, _ := newFetcher(t, Options{})
	var prog progressLog

	p, err := f.Fetch(context.Background(), epg.SourceDescriptor{URL: srv.URL, ExpectedByteSize: 200}, prog.report)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	prog.assertMonotonic(t)
	assert.Equal(t, 0.99, prog.values[len(prog.values)-1])
}

func TestFetchDetectsCompressionByMagicBytes(t *testing.T) {
	encoders := map[Encoding]func(t *testing.T) []byte{
		EncodingGzip: func(t *testing.T) []byte { return gzipBytes(t, []byte(sampleXML)) },
		EncodingZlib: func(t *testing.T) []byte {
			var buf bytes.Buffer
			w := zlib.NewWriter(&buf)
			_, err := w.Write([]byte(sampleXML))
			require.NoError(t, err)
			require.NoError(t, w.Close())
			return buf.Bytes()
		},
		EncodingZstd: func(t *testing.T) []byte {
			enc, err := zstd.NewWriter(nil)
			require.NoError(t, err)
			defer func() { _ = enc.Close() }()
			return enc.EncodeAll([]byte(sampleXML), nil)
		},
		EncodingXZ: func(t *testing.T) []byte {
			var buf bytes.Buffer
			w, err := xz.NewWriter(&buf)
			require.NoError(t, err)
			_, err = w.Write([]byte(sampleXML))
			require.NoError(t, err)
			require.NoError(t, w.Close())
			return buf.Bytes()
		},
	}

	for enc, encode := range encoders {
		t.Run(string(enc), func(t *testing.T) {
			body := encode(t)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				// A misleading header must not matter.
				w.Header().Set("Content-Type", "text/plain")
				_, _ = w.Write(body)
			}))
			defer srv.Close()

			f, _ := newFetcher(t, Options{})
			p, err := f.Fetch(context.Background(), epg.SourceDescriptor{URL: srv.URL}, nil)
			require.NoError(t, err)
			defer func() { _ = p.Close() }()

			assert.Equal(t, enc, p.Encoding)
			assert.Equal(t, sampleXML, readPayload(t, p))
		})
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		header []byte
		want   Encoding
	}{
		{[]byte{0x1f, 0x8b, 0x08, 0, 0, 0}, EncodingGzip},
		{[]byte{0x78, 0x9c, 0, 0, 0, 0}, EncodingZlib},
		{[]byte{0x78, 0xda, 0, 0, 0, 0}, EncodingZlib},
		{[]byte{0x28, 0xb5, 0x2f, 0xfd, 0, 0}, EncodingZstd},
		{[]byte{0xfd, '7', 'z', 'X', 'Z', 0x00}, EncodingXZ},
		{[]byte("BZh91A"), EncodingBzip2},
		{[]byte("<?xml "), EncodingIdentity},
		{[]byte("xmltv"), EncodingIdentity},
		{[]byte{0x1f}, EncodingIdentity},
		{nil, EncodingIdentity},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sniff(tt.header), "header %x", tt.header)
	}
}

func TestFetchFailures(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		opts     Options
		sentinel error
		status   int
	}{
		{
			name:     "not found",
			handler:  func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
			sentinel: ErrBadStatus,
			status:   http.StatusNotFound,
		},
		{
			name:     "empty body",
			handler:  func(w http.ResponseWriter, r *http.Request) {},
			sentinel: ErrEmptyPayload,
		},
		{
			name: "empty after gunzip",
			handler: func(w http.ResponseWriter, r *http.Request) {
				var buf bytes.Buffer
				gw := gzip.NewWriter(&buf)
				_ = gw.Close()
				_, _ = w.Write(buf.Bytes())
			},
			sentinel: ErrEmptyPayload,
		},
		{
			name: "corrupt gzip",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte{0x1f, 0x8b, 'n', 'o', 'p', 'e', 0, 0, 0, 0, 0, 0})
			},
			sentinel: ErrDecompress,
		},
		{
			name: "too large plain",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, strings.Repeat("x", 1000))
			},
			opts:     Options{MaxDecompressedBytes: 100},
			sentinel: ErrTooLarge,
		},
		{
			name: "too large inflated",
			handler: func(w http.ResponseWriter, r *http.Request) {
				var buf bytes.Buffer
				gw := gzip.NewWriter(&buf)
				_, _ = gw.Write(bytes.Repeat([]byte("a"), 10_000))
				_ = gw.Close()
				_, _ = w.Write(buf.Bytes())
			},
			opts:     Options{MaxDecompressedBytes: 1000},
			sentinel: ErrTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			rec := &sizeRecorder{}
			tt.opts.Sizes = rec
			f, dir := newFetcher(t, tt.opts)

			p, err := f.Fetch(context.Background(), epg.SourceDescriptor{URL: srv.URL}, nil)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, tt.sentinel)

			var se *SourceError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.Status)
			assert.Empty(t, rec.sizes, "failed fetch must not record a size")
			assertScratchEmpty(t, dir)
		})
	}
}

func TestFetchRetriesServerErrorsOnly(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, sampleXML)
	}))
	defer srv.Close()

	f, _ := newFetcher(t, Options{Retries: 2})
	p, err := f.Fetch(context.Background(), epg.SourceDescriptor{URL: srv.URL}, nil)
	require.NoError(t, err)
	_ = p.Close()
	assert.Equal(t, int32(3), hits.Load())

	var misses atomic.Int32
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		misses.Add(1)
		http.NotFound(w, r)
	}))
	defer notFound.Close()

	_, err = f.Fetch(context.Background(), epg.SourceDescriptor{URL: notFound.URL}, nil)
	require.ErrorIs(t, err, ErrBadStatus)
	assert.Equal(t, int32(1), misses.Load(), "4xx must not be retried")
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	f, dir := newFetcher(t, Options{Client: httpx.NewClient(150 * time.Millisecond)})
	_, err := f.Fetch(context.Background(), epg.SourceDescriptor{URL: srv.URL}, nil)
	require.ErrorIs(t, err, ErrTimeout)
	assertScratchEmpty(t, dir)
}

func TestFetchPerSourceDeadlineIsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	f, _ := newFetcher(t, Options{})
	_, err := f.Fetch(ctx, epg.SourceDescriptor{URL: srv.URL}, nil)
	require.ErrorIs(t, err, ErrTimeout)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchCancelled(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	f, dir := newFetcher(t, Options{Retries: 3})
	_, err := f.Fetch(ctx, epg.SourceDescriptor{URL: srv.URL}, nil)
	require.ErrorIs(t, err, context.Canceled)

	var se *SourceError
	assert.False(t, errors.As(err, &se), "cancellation is not a source error")
	assertScratchEmpty(t, dir)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "bad_status", Outcome(&SourceError{Sentinel: ErrBadStatus, Status: 500}))
	assert.Equal(t, "timeout", Outcome(&SourceError{Sentinel: ErrTimeout}))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}
