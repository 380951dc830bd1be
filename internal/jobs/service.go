// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/ManuGH/epgmerge/internal/cache"
	"github.com/ManuGH/epgmerge/internal/epg"
	xglog "github.com/ManuGH/epgmerge/internal/log"
	"github.com/ManuGH/epgmerge/internal/telemetry"
)

// Refresh triggers.
const (
	TriggerStartup   = "startup"
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// DefaultMinTriggerInterval spaces manual refreshes.
const DefaultMinTriggerInterval = 30 * time.Second

var (
	// ErrRateLimited is returned by Trigger when manual refreshes come too fast.
	ErrRateLimited = errors.New("refresh rate limited")
	// ErrNotRunning is returned by Trigger before Run has started.
	ErrNotRunning = errors.New("refresh service not running")
	// ErrAllSourcesFailed marks a refresh in which no source contributed.
	ErrAllSourcesFailed = errors.New("all sources failed")
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Sources            []string
	RefreshInterval    time.Duration // zero disables periodic refresh
	XMLTVPath          string        // empty disables the export
	MinTriggerInterval time.Duration
}

// Snapshot is an immutable merged schedule.
type Snapshot struct {
	Schedule  epg.Schedule
	Names     epg.ChannelNameIndex
	UpdatedAt time.Time
	FromCache bool
}

// Status represents the current state of the refresh job
type Status struct {
	Running      bool           `json:"running"`
	RunID        string         `json:"run_id,omitempty"`
	Trigger      string         `json:"trigger,omitempty"`
	Progress     float64        `json:"progress"`
	StartedAt    time.Time      `json:"started_at,omitzero"`
	LastRun      time.Time      `json:"last_run,omitzero"`
	LastDuration time.Duration  `json:"last_duration"`
	Channels     int            `json:"channels"`
	Programmes   int            `json:"programmes"`
	Sources      []SourceReport `json:"sources,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// Service holds the latest merged schedule and keeps it fresh.
type Service struct {
	engine  *Engine
	cache   *cache.Store
	limiter *rate.Limiter
	group   singleflight.Group

	mu       sync.RWMutex
	cfg      ServiceConfig
	base     context.Context
	snapshot *Snapshot
	status   Status
	pending  string // run id reserved by Trigger
}

// NewService creates a Service. store may be nil.
func NewService(cfg ServiceConfig, engine *Engine, store *cache.Store) *Service {
	interval := cfg.MinTriggerInterval
	if interval <= 0 {
		interval = DefaultMinTriggerInterval
	}
	cfg.Sources = slices.Clone(cfg.Sources)
	return &Service{
		engine:  engine,
		cache:   store,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		cfg:     cfg,
	}
}

// SetSources replaces the source list used by subsequent refreshes.
func (s *Service) SetSources(urls []string) {
	s.mu.Lock()
	s.cfg.Sources = slices.Clone(urls)
	s.mu.Unlock()
}

// Snapshot returns the latest schedule, or nil before the first load.
func (s *Service) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Ready reports whether a schedule is available.
func (s *Service) Ready() bool { return s.Snapshot() != nil }

// Status returns a copy of the current job status.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	st.Sources = slices.Clone(s.status.Sources)
	return st
}

// LoadCache installs the cached schedule if nothing newer is loaded.
func (s *Service) LoadCache(ctx context.Context) bool {
	if s.cache == nil {
		return false
	}
	env, ok := s.cache.Load(ctx)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot != nil {
		return false
	}
	s.snapshot = &Snapshot{Schedule: env.EPG, Names: env.Map, UpdatedAt: env.SavedAt, FromCache: true}
	s.status.Channels = len(env.EPG)
	s.status.Programmes = env.EPG.Programmes()

	logger := xglog.WithComponentFromContext(ctx, "jobs")
	logger.Info().
		Str(xglog.FieldEvent, "cache.loaded").
		Int(xglog.FieldChannels, s.status.Channels).
		Int(xglog.FieldProgrammes, s.status.Programmes).
		Time("saved_at", env.SavedAt).
		Msg("serving cached schedule")
	return true
}

// Run loads the cache, refreshes once and then on every RefreshInterval
// until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	s.base = ctx
	interval := s.cfg.RefreshInterval
	s.mu.Unlock()

	s.LoadCache(ctx)
	_, _ = s.Refresh(ctx, TriggerStartup)

	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = s.Refresh(ctx, TriggerScheduled)
		}
	}
}

// Trigger starts a manual refresh in the background and returns its run id.
// If a refresh is already running its id is returned instead.
func (s *Service) Trigger() (string, error) {
	s.mu.Lock()
	if s.status.Running {
		id := s.status.RunID
		s.mu.Unlock()
		return id, nil
	}
	base := s.base
	if base == nil || base.Err() != nil {
		s.mu.Unlock()
		return "", ErrNotRunning
	}
	if !s.limiter.Allow() {
		s.mu.Unlock()
		return "", ErrRateLimited
	}
	id := uuid.NewString()
	s.pending = id
	s.status.Running = true
	s.status.RunID = id
	s.status.Trigger = TriggerManual
	s.status.Progress = 0
	s.mu.Unlock()

	go func() { _, _ = s.Refresh(base, TriggerManual) }()
	return id, nil
}

// Refresh runs FetchAndMerge for the configured sources and installs the
// result. Concurrent calls share one run.
func (s *Service) Refresh(ctx context.Context, trigger string) (*Result, error) {
	v, err, _ := s.group.Do("refresh", func() (any, error) {
		return s.refresh(ctx, trigger)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (s *Service) refresh(ctx context.Context, trigger string) (*Result, error) {
	id, sources := s.begin(trigger)
	ctx = xglog.ContextWithJobID(ctx, id)
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "epg.refresh")
	defer span.End()

	res, err := s.engine.FetchAndMerge(ctx, s.engine.Describe(ctx, sources), s.setProgress)
	s.finish(res, err)

	status := "success"
	if err != nil {
		status = "cancelled"
		telemetry.RecordError(span, err, status)
	}
	var durMS int64
	if res != nil {
		durMS = res.Duration.Milliseconds()
	}
	span.SetAttributes(telemetry.JobAttributes(id, trigger, status, durMS)...)
	if err != nil {
		return nil, err
	}

	if path := s.xmltvPath(); path != "" && !res.AllSourcesFailed() {
		if werr := WriteXMLTV(ctx, path, res.Schedule, res.Names); werr != nil {
			logger := xglog.WithComponentFromContext(ctx, "jobs")
			logger.Error().
				Err(werr).
				Str(xglog.FieldEvent, "xmltv.write_failed").
				Msg("XMLTV export failed")
		}
	}
	return res, nil
}

func (s *Service) begin(trigger string) (string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.pending
	s.pending = ""
	if id == "" {
		id = uuid.NewString()
		s.status.Trigger = trigger
	}
	s.status.Running = true
	s.status.RunID = id
	s.status.Progress = 0
	s.status.StartedAt = time.Now()
	return id, slices.Clone(s.cfg.Sources)
}

func (s *Service) setProgress(f float64) {
	s.mu.Lock()
	if f > s.status.Progress {
		s.status.Progress = f
	}
	s.mu.Unlock()
}

func (s *Service) finish(res *Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Running = false
	if err != nil {
		s.status.Error = err.Error()
		return
	}
	s.status.Progress = 1
	s.status.LastRun = res.StartedAt
	s.status.LastDuration = res.Duration
	s.status.Sources = res.Sources
	if res.AllSourcesFailed() {
		s.status.Error = ErrAllSourcesFailed.Error()
		return
	}
	s.status.Error = ""
	s.status.Channels = len(res.Schedule)
	s.status.Programmes = res.Schedule.Programmes()
	s.snapshot = &Snapshot{Schedule: res.Schedule, Names: res.Names, UpdatedAt: res.StartedAt.Add(res.Duration)}
}

func (s *Service) xmltvPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.XMLTVPath
}
