// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const barWidth = 30

// progressLine redraws a single terminal line with the overall refresh
// fraction. Updates closer together than minRedraw are dropped, except the
// final one.
type progressLine struct {
	w         io.Writer
	minRedraw time.Duration
	now       func() time.Time

	mu      sync.Mutex
	last    time.Time
	shown   float64
	drawn   bool
	started time.Time
}

func newProgressLine(w io.Writer) *progressLine {
	return &progressLine{w: w, minRedraw: 100 * time.Millisecond, now: time.Now, shown: -1}
}

// Update is a progress.Sink.
func (p *progressLine) Update(f float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.started.IsZero() {
		p.started = now
	}
	if f == p.shown {
		return
	}
	if f < 1 && p.drawn && now.Sub(p.last) < p.minRedraw {
		return
	}
	p.last = now
	p.shown = f
	p.drawn = true
	_, _ = io.WriteString(p.w, "\r"+renderBar(f, now.Sub(p.started)))
}

// Finish terminates the line.
func (p *progressLine) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		_, _ = io.WriteString(p.w, "\n")
		p.drawn = false
	}
}

func renderBar(f float64, elapsed time.Duration) string {
	f = min(max(f, 0), 1)
	filled := int(f * barWidth)
	return fmt.Sprintf("[%s%s] %5.1f%% %s",
		strings.Repeat("#", filled),
		strings.Repeat("-", barWidth-filled),
		f*100,
		elapsed.Truncate(100*time.Millisecond))
}
