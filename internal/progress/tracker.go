// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package progress

import (
	"context"
	"math"
	"sync"
	"time"
)

const (
	// DownloadWeight and ParseWeight split a source's progress between its
	// two phases.
	DownloadWeight = 0.2
	ParseWeight    = 0.8

	// parseRate shapes 1-exp(-rate*elapsed/expected): about 92% at the
	// expected duration, approaching but never reaching 1.
	parseRate = 2.5

	// DefaultTickInterval is how often the parse estimate is republished.
	DefaultTickInterval = 250 * time.Millisecond
)

// Clock abstracts time for the parse ticker.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) (<-chan time.Time, func())
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// ParseEstimate is the synthetic parse fraction after elapsed of an expected
// duration.
func ParseEstimate(elapsed, expected time.Duration) float64 {
	if expected <= 0 || elapsed <= 0 {
		return 0
	}
	return 1 - math.Exp(-parseRate*elapsed.Seconds()/expected.Seconds())
}

// Tracker composes one source's download and parse phases into a single
// fraction: DownloadWeight*download + ParseWeight*parseEstimate. The parse
// ticker lives between BeginParse and EndParse (or Done).
type Tracker struct {
	ctx      context.Context
	report   func(float64)
	expected time.Duration
	clock    Clock
	interval time.Duration

	mu       sync.Mutex
	download float64
	parse    float64
	last     float64

	started time.Time
	stop    chan struct{}
	wg      sync.WaitGroup
}

// TrackerOption customizes a Tracker.
type TrackerOption func(*Tracker)

// WithClock replaces the wall clock.
func WithClock(c Clock) TrackerOption { return func(t *Tracker) { t.clock = c } }

// WithTickInterval sets the parse ticker period.
func WithTickInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// NewTracker returns a tracker publishing to report. expectedParse is the
// duration the parse phase is assumed to take.
func NewTracker(ctx context.Context, report func(float64), expectedParse time.Duration, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		ctx:      ctx,
		report:   report,
		expected: expectedParse,
		clock:    RealClock,
		interval: DefaultTickInterval,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Download records the download fraction (already capped by the fetcher).
func (t *Tracker) Download(f float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if f > t.download {
		t.download = min(f, 1)
		t.publishLocked()
	}
}

// BeginParse marks the download complete and starts the parse ticker.
func (t *Tracker) BeginParse() {
	t.mu.Lock()
	if t.stop != nil {
		t.mu.Unlock()
		return
	}
	t.download = 1
	t.started = t.clock.Now()
	t.stop = make(chan struct{})
	t.publishLocked()
	stop := t.stop
	t.mu.Unlock()

	ticks, stopTicker := t.clock.NewTicker(t.interval)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer stopTicker()
		for {
			select {
			case <-stop:
				return
			case <-t.ctx.Done():
				return
			case <-ticks:
				t.mu.Lock()
				t.parse = ParseEstimate(t.clock.Now().Sub(t.started), t.expected)
				t.publishLocked()
				t.mu.Unlock()
			}
		}
	}()
}

// EndParse stops the ticker and returns how long the parse phase took.
// It returns zero if BeginParse was never called.
func (t *Tracker) EndParse() time.Duration {
	t.mu.Lock()
	stop := t.stop
	started := t.started
	if stop == nil {
		t.mu.Unlock()
		return 0
	}
	select {
	case <-stop:
	default:
		close(stop)
	}
	t.mu.Unlock()

	t.wg.Wait()
	return t.clock.Now().Sub(started)
}

// Done stops any running ticker and snaps the source to 1.0.
func (t *Tracker) Done() {
	t.EndParse()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.download, t.parse = 1, 1
	t.publishLocked()
}

func (t *Tracker) publishLocked() {
	f := DownloadWeight*t.download + ParseWeight*t.parse
	if t.download >= 1 && t.parse >= 1 {
		f = 1
	}
	if f <= t.last || t.report == nil {
		return
	}
	t.last = f
	t.report(f)
}
