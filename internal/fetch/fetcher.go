// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fetch downloads one XMLTV source into a scratch file, reporting
// byte progress and undoing any compression the provider applied.
package fetch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/ManuGH/epgmerge/internal/epg"
	xglog "github.com/ManuGH/epgmerge/internal/log"
	"github.com/ManuGH/epgmerge/internal/metrics"
	"github.com/ManuGH/epgmerge/internal/platform/httpx"
	platformnet "github.com/ManuGH/epgmerge/internal/platform/net"
)

const (
	// DefaultFallbackByteSize is assumed when neither the response nor the
	// heuristics store knows how large a source is.
	DefaultFallbackByteSize int64 = 16 << 20
	// DefaultMaxDecompressedBytes bounds the inflated payload.
	DefaultMaxDecompressedBytes int64 = 256 << 20

	defaultRetryBackoff = 500 * time.Millisecond
	downloadCeiling     = 0.99
)

// SizeRecorder receives the observed wire size of a successful download.
type SizeRecorder interface {
	RecordByteSize(ctx context.Context, url string, n int64) error
}

// Options configures a Fetcher. Zero values take defaults.
type Options struct {
	Client               *http.Client
	ScratchDir           string
	MaxDecompressedBytes int64
	FallbackByteSize     int64
	Retries              int
	RetryBackoff         time.Duration
	UserAgent            string
	Sizes                SizeRecorder
}

// Fetcher downloads sources. It is safe for concurrent use.
type Fetcher struct {
	opts Options
}

// New returns a Fetcher with defaults applied.
func New(opts Options) *Fetcher {
	if opts.Client == nil {
		opts.Client = httpx.NewClient(0)
	}
	if opts.MaxDecompressedBytes <= 0 {
		opts.MaxDecompressedBytes = DefaultMaxDecompressedBytes
	}
	if opts.FallbackByteSize <= 0 {
		opts.FallbackByteSize = DefaultFallbackByteSize
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "epgmerge"
	}
	return &Fetcher{opts: opts}
}

// Payload is a fetched, decompressed XMLTV document spooled to disk.
// Close removes the backing file.
type Payload struct {
	URL       string
	Encoding  Encoding
	WireBytes int64 // bytes received over HTTP
	Bytes     int64 // bytes after decompression

	file *os.File
}

func (p *Payload) Read(b []byte) (int, error) { return p.file.Read(b) }

// Close releases and deletes the scratch file.
func (p *Payload) Close() error {
	name := p.file.Name()
	err := p.file.Close()
	if rmErr := os.Remove(name); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}

// Fetch downloads desc.URL. onProgress, when set, receives the download
// fraction after every chunk, capped at 0.99. A cancelled ctx yields
// ctx.Err(); every other failure is a *SourceError.
func (f *Fetcher) Fetch(ctx context.Context, desc epg.SourceDescriptor, onProgress func(float64)) (*Payload, error) {
	safeURL := platformnet.SanitizeURL(desc.URL)
	logger := xglog.WithComponentFromContext(ctx, "fetch").With().Str(xglog.FieldSourceURL, safeURL).Logger()

	var lastErr error
	for attempt := 0; attempt <= f.opts.Retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * f.opts.RetryBackoff
			logger.Debug().
				Str(xglog.FieldEvent, "source.retry").
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Err(lastErr).
				Msg("retrying source")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, f.ctxError(ctx, safeURL)
			}
		}

		p, err := f.fetchOnce(ctx, desc, safeURL, onProgress)
		if err == nil {
			metrics.IncSourceFetch("success")
			metrics.AddSourceBytes(string(p.Encoding), p.WireBytes)
			f.recordSize(ctx, desc.URL, p.WireBytes)
			logger.Debug().
				Str(xglog.FieldEvent, "source.fetched").
				Str(xglog.FieldEncoding, string(p.Encoding)).
				Int64(xglog.FieldBytes, p.Bytes).
				Int64("wire_bytes", p.WireBytes).
				Msg("source downloaded")
			return p, nil
		}
		if ctx.Err() != nil {
			return nil, f.ctxError(ctx, safeURL)
		}
		metrics.IncSourceFetch(Outcome(err))
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return nil, lastErr
}

// ctxError keeps cancellation distinguishable from a per-source deadline.
func (f *Fetcher) ctxError(ctx context.Context, safeURL string) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		metrics.IncSourceFetch("timeout")
		return &SourceError{Sentinel: ErrTimeout, Op: "download", URL: safeURL, Err: err}
	}
	return err
}

func (f *Fetcher) recordSize(ctx context.Context, url string, n int64) {
	if f.opts.Sizes == nil {
		return
	}
	if err := f.opts.Sizes.RecordByteSize(ctx, url, n); err != nil {
		metrics.IncHeuristicsError("record_size")
		logger := xglog.WithComponentFromContext(ctx, "fetch")
		logger.Debug().Err(err).Msg("record byte size")
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, desc epg.SourceDescriptor, safeURL string, onProgress func(float64)) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.URL, nil)
	if err != nil {
		return nil, &SourceError{Sentinel: ErrUpstreamUnavailable, Op: "request", URL: safeURL, Err: err}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "application/xml, text/xml, application/octet-stream, */*")

	resp, err := f.opts.Client.Do(req)
	if err != nil {
		return nil, transportError("download", safeURL, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &SourceError{Sentinel: ErrBadStatus, Op: "download", URL: safeURL, Status: resp.StatusCode}
	}

	wire, err := os.CreateTemp(f.opts.ScratchDir, "epg-wire-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	keepWire := false
	defer func() {
		if !keepWire {
			_ = wire.Close()
			_ = os.Remove(wire.Name())
		}
	}()

	pr := &progressReader{
		r:        resp.Body,
		expected: expectedSize(resp.ContentLength, desc.ExpectedByteSize, f.opts.FallbackByteSize),
		report:   onProgress,
	}
	limit := f.opts.MaxDecompressedBytes
	wireBytes, err := io.Copy(wire, io.LimitReader(pr, limit+1))
	if err != nil {
		return nil, transportError("download", safeURL, err)
	}
	if wireBytes > limit {
		return nil, &SourceError{Sentinel: ErrTooLarge, Op: "download", URL: safeURL, Err: fmt.Errorf("more than %d bytes", limit)}
	}

	enc, err := sniffFile(wire)
	if err != nil {
		return nil, fmt.Errorf("sniff scratch file: %w", err)
	}

	if enc == EncodingIdentity {
		if wireBytes == 0 {
			return nil, &SourceError{Sentinel: ErrEmptyPayload, Op: "download", URL: safeURL}
		}
		keepWire = true
		return &Payload{URL: desc.URL, Encoding: enc, WireBytes: wireBytes, Bytes: wireBytes, file: wire}, nil
	}

	out, n, err := f.inflate(enc, wire, safeURL)
	if err != nil {
		return nil, err
	}
	return &Payload{URL: desc.URL, Encoding: enc, WireBytes: wireBytes, Bytes: n, file: out}, nil
}

// inflate decompresses src into a new scratch file positioned at offset 0.
func (f *Fetcher) inflate(enc Encoding, src *os.File, safeURL string) (*os.File, int64, error) {
	dec, err := newDecompressor(enc, bufio.NewReader(src))
	if err != nil {
		return nil, 0, &SourceError{Sentinel: ErrDecompress, Op: "decompress", URL: safeURL, Err: err}
	}
	defer func() { _ = dec.Close() }()

	out, err := os.CreateTemp(f.opts.ScratchDir, "epg-xml-*")
	if err != nil {
		return nil, 0, fmt.Errorf("create scratch file: %w", err)
	}
	fail := func(e error) (*os.File, int64, error) {
		_ = out.Close()
		_ = os.Remove(out.Name())
		return nil, 0, e
	}

	limit := f.opts.MaxDecompressedBytes
	n, err := io.Copy(out, io.LimitReader(dec, limit+1))
	if err != nil {
		return fail(&SourceError{Sentinel: ErrDecompress, Op: "decompress", URL: safeURL, Err: err})
	}
	if n > limit {
		return fail(&SourceError{Sentinel: ErrTooLarge, Op: "decompress", URL: safeURL, Err: fmt.Errorf("more than %d bytes", limit)})
	}
	if n == 0 {
		return fail(&SourceError{Sentinel: ErrEmptyPayload, Op: "decompress", URL: safeURL})
	}
	if _, err := out.Seek(0, io.SeekStart); err != nil {
		return fail(fmt.Errorf("rewind scratch file: %w", err))
	}
	return out, n, nil
}

// sniffFile reads the leading bytes of f and rewinds it.
func sniffFile(f *os.File) (Encoding, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	header := make([]byte, sniffLen)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return Sniff(header[:n]), nil
}

// expectedSize picks the denominator for download progress.
func expectedSize(contentLength, remembered, fallback int64) int64 {
	switch {
	case contentLength > 0:
		return contentLength
	case remembered > 0:
		return remembered
	default:
		return fallback
	}
}

func transportError(op, safeURL string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &SourceError{Sentinel: ErrTimeout, Op: op, URL: safeURL, Err: err}
	}
	return &SourceError{Sentinel: ErrUpstreamUnavailable, Op: op, URL: safeURL, Err: err}
}

// progressReader reports min(received/expected, 0.99) after every read.
type progressReader struct {
	r        io.Reader
	expected int64
	received int64
	report   func(float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.received += int64(n)
		if p.report != nil {
			p.report(downloadFraction(p.received, p.expected))
		}
	}
	return n, err
}

func downloadFraction(received, expected int64) float64 {
	if expected <= 0 {
		return 0
	}
	f := float64(received) / float64(expected)
	if f > downloadCeiling {
		return downloadCeiling
	}
	return f
}
