// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package progress turns per-source fractions into one monotonic overall
// progress signal.
package progress

import (
	"context"
	"math"
	"sync"
)

// Sink receives overall progress in [0, 1]. It is never called concurrently.
type Sink func(overall float64)

type update struct {
	index    int
	fraction float64
}

// Aggregator owns the per-source fraction table on a single goroutine.
// Workers publish through Report; nothing else touches the table.
type Aggregator struct {
	ctx     context.Context
	updates chan update
	done    chan struct{}
	close   sync.Once
}

// NewAggregator starts the aggregation goroutine for n sources. Once ctx is
// cancelled sink is not called again.
func NewAggregator(ctx context.Context, n int, sink Sink) *Aggregator {
	a := &Aggregator{
		ctx:     ctx,
		updates: make(chan update, n+1),
		done:    make(chan struct{}),
	}
	go a.run(n, sink)
	return a
}

// Report publishes a new fraction for source index. Lower values than the
// last accepted one are ignored. Report blocks until the update is queued or
// ctx is cancelled, and must not be called after Close.
func (a *Aggregator) Report(index int, fraction float64) {
	select {
	case a.updates <- update{index: index, fraction: fraction}:
	case <-a.ctx.Done():
	}
}

// Reporter binds Report to one source index.
func (a *Aggregator) Reporter(index int) func(float64) {
	return func(f float64) { a.Report(index, f) }
}

// Close stops accepting updates and waits until every queued update has
// been applied.
func (a *Aggregator) Close() {
	a.close.Do(func() { close(a.updates) })
	<-a.done
}

func (a *Aggregator) run(n int, sink Sink) {
	defer close(a.done)

	fractions := make([]float64, n)
	var last float64

	for {
		select {
		case <-a.ctx.Done():
			// Discard until Close; the sink stays silent from here on.
			for range a.updates {
			}
			return
		case u, ok := <-a.updates:
			if !ok {
				return
			}
			if u.index < 0 || u.index >= n || math.IsNaN(u.fraction) {
				continue
			}
			f := min(max(u.fraction, 0), 1)
			if f <= fractions[u.index] {
				continue
			}
			fractions[u.index] = f

			var sum float64
			for _, v := range fractions {
				sum += v
			}
			overall := sum / float64(n)
			if overall <= last {
				continue
			}
			last = overall
			if a.ctx.Err() != nil {
				continue
			}
			if sink != nil {
				sink(overall)
			}
		}
	}
}
