// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package progress

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type sinkLog struct {
	mu     sync.Mutex
	values []float64
}

func (s *sinkLog) sink(f float64) {
	s.mu.Lock()
	s.values = append(s.values, f)
	s.mu.Unlock()
}

func (s *sinkLog) snapshot() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.values...)
}

func TestAggregatorOverallIsMeanAndMonotonic(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var log sinkLog
	a := NewAggregator(context.Background(), 2, log.sink)
	a.Report(0, 0.5)
	a.Report(0, 0.3) // regress: ignored
	a.Report(1, 0.5)
	a.Report(0, 1)
	a.Report(1, 1)
	a.Report(1, 1) // no change: no sink call
	a.Close()

	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1}, log.snapshot())
}

func TestAggregatorIgnoresBadUpdates(t *testing.T) {
	var log sinkLog
	a := NewAggregator(context.Background(), 1, log.sink)
	a.Report(-1, 0.5)
	a.Report(1, 0.5)
	a.Report(0, math.NaN())
	a.Report(0, 7) // clamped to 1
	a.Close()

	assert.Equal(t, []float64{1}, log.snapshot())
}

func TestAggregatorConcurrentReporters(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	const sources = 8
	var log sinkLog
	a := NewAggregator(context.Background(), sources, log.sink)

	var wg sync.WaitGroup
	for i := range sources {
		report := a.Reporter(i)
		wg.Go(func() {
			for step := 1; step <= 20; step++ {
				report(float64(step) / 20)
			}
		})
	}
	wg.Wait()
	a.Close()

	values := log.snapshot()
	require.NotEmpty(t, values)
	for i := 1; i < len(values); i++ {
		assert.Greater(t, values[i], values[i-1], "overall must strictly increase between sink calls")
	}
	assert.Equal(t, 1.0, values[len(values)-1])
}

func TestAggregatorSilentAfterCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	a := NewAggregator(ctx, 2, func(float64) { calls.Add(1) })

	a.Report(0, 0.5)
	a.Close()
	require.Equal(t, int32(1), calls.Load())

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	var after atomic.Int32
	b := NewAggregator(ctx2, 2, func(float64) { after.Add(1) })
	cancel2()
	for range 100 {
		b.Report(0, 1)
		b.Report(1, 1)
	}
	b.Close()
	assert.Zero(t, after.Load(), "sink called after cancellation")
	cancel()
}

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	ticks   chan time.Time
	stopped atomic.Bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0), ticks: make(chan time.Time)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(time.Duration) (<-chan time.Time, func()) {
	return c.ticks, func() { c.stopped.Store(true) }
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	c.ticks <- now
}

func next(t *testing.T, ch <-chan float64) float64 {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("no progress reported")
		return 0
	}
}

func TestTrackerPhases(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	clock := newFakeClock()
	got := make(chan float64, 16)
	tr := NewTracker(context.Background(), func(f float64) { got <- f }, 10*time.Second, WithClock(clock))

	tr.Download(0.5)
	assert.InDelta(t, 0.1, next(t, got), 1e-9)
	tr.Download(0.99)
	assert.InDelta(t, 0.198, next(t, got), 1e-9)
	tr.Download(0.4) // regress: nothing reported

	tr.BeginParse()
	assert.InDelta(t, 0.2, next(t, got), 1e-9)

	clock.Advance(10 * time.Second)
	want := 0.2 + 0.8*(1-math.Exp(-2.5))
	assert.InDelta(t, want, next(t, got), 1e-9)

	assert.Equal(t, 10*time.Second, tr.EndParse())
	assert.True(t, clock.stopped.Load(), "ticker must stop with the parse phase")

	tr.Done()
	assert.Equal(t, 1.0, next(t, got))
	assert.Empty(t, got)
}

func TestTrackerDoneWithoutParse(t *testing.T) {
	got := make(chan float64, 4)
	tr := NewTracker(context.Background(), func(f float64) { got <- f }, 0)

	assert.Zero(t, tr.EndParse())
	tr.Done()
	assert.Equal(t, 1.0, next(t, got))
	tr.Done()
	assert.Empty(t, got, "Done is idempotent")
}

func TestTrackerStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	tr := NewTracker(ctx, func(float64) {}, time.Second, WithTickInterval(time.Millisecond))
	tr.BeginParse()
	time.Sleep(5 * time.Millisecond)
	cancel()
	tr.EndParse()
}

func TestParseEstimate(t *testing.T) {
	assert.Zero(t, ParseEstimate(0, time.Second))
	assert.Zero(t, ParseEstimate(time.Second, 0))
	assert.InDelta(t, 1-math.Exp(-2.5), ParseEstimate(20*time.Second, 20*time.Second), 1e-12)

	prev := 0.0
	for s := 1; s <= 100; s++ {
		v := ParseEstimate(time.Duration(s)*time.Second, 20*time.Second)
		assert.Greater(t, v, prev)
		assert.Less(t, v, 1.0)
		prev = v
	}
}
