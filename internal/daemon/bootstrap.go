// SPDX-License-Identifier: MIT

// Package daemon wires the refresh service, the HTTP API and config reload
// into one process lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/epgmerge/internal/api"
	"github.com/ManuGH/epgmerge/internal/cache"
	"github.com/ManuGH/epgmerge/internal/config"
	"github.com/ManuGH/epgmerge/internal/epg"
	"github.com/ManuGH/epgmerge/internal/fetch"
	"github.com/ManuGH/epgmerge/internal/health"
	"github.com/ManuGH/epgmerge/internal/heuristics"
	"github.com/ManuGH/epgmerge/internal/jobs"
	"github.com/ManuGH/epgmerge/internal/platform/httpx"
	"github.com/ManuGH/epgmerge/internal/telemetry"
)

// staleFactor multiplies RefreshInterval into the readiness max age.
const staleFactor = 3

// Runtime is the object graph behind a running daemon.
type Runtime struct {
	Config     config.AppConfig
	Heuristics heuristics.Store
	Cache      *cache.Store
	Engine     *jobs.Engine
	Service    *jobs.Service
	Health     *health.Manager
	API        *api.Server
	XMLTVPath  string
}

// NewFetcher builds the source downloader from cfg.
func NewFetcher(cfg config.AppConfig, sizes fetch.SizeRecorder) *fetch.Fetcher {
	client := httpx.NewClientWithTimeouts(httpx.Timeouts{
		Connect: cfg.Fetch.ConnectTimeout,
		Header:  cfg.Fetch.HeaderTimeout,
		Total:   cfg.Fetch.TotalTimeout,
	})
	if cfg.Telemetry.Enabled {
		client = httpx.Traced(client)
	}
	return fetch.New(fetch.Options{
		Client:               client,
		ScratchDir:           cfg.Fetch.ScratchDir,
		MaxDecompressedBytes: cfg.Fetch.MaxDecompressedBytes,
		FallbackByteSize:     cfg.Fetch.FallbackByteSize,
		Retries:              cfg.Fetch.Retries,
		RetryBackoff:         cfg.Fetch.RetryBackoff,
		UserAgent:            cfg.Fetch.UserAgent,
		Sizes:                sizes,
	})
}

// NewEngine builds a FetchAndMerge engine. heur and store may be nil.
func NewEngine(cfg config.AppConfig, heur heuristics.Store, store *cache.Store) (*jobs.Engine, error) {
	tp, err := epg.LoadTimeParser(cfg.EPG.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("default timezone: %w", err)
	}

	var sizes fetch.SizeRecorder
	if heur != nil {
		sizes = heur
	}
	return jobs.NewEngine(jobs.EngineConfig{
		SourceTimeout: cfg.EPG.SourceTimeout,
		Deadline:      cfg.EPG.Deadline,
		TimeParser:    tp,
	}, NewFetcher(cfg, sizes), heur, store), nil
}

// OpenHeuristics opens the configured heuristics backend.
func OpenHeuristics(cfg config.AppConfig) (heuristics.Store, error) {
	return heuristics.NewStore(heuristics.Config{
		Backend: cfg.Heuristics.Backend,
		Dir:     cfg.DataDir,
		Redis: heuristics.RedisConfig{
			Addr:      cfg.Heuristics.Redis.Addr,
			Password:  cfg.Heuristics.Redis.Password,
			DB:        cfg.Heuristics.Redis.DB,
			KeyPrefix: cfg.Heuristics.Redis.KeyPrefix,
		},
	})
}

// Bootstrap builds the runtime for cfg. Close releases what it opened.
func Bootstrap(cfg config.AppConfig) (*Runtime, error) {
	xmltvPath, err := jobs.ExportPath(cfg.DataDir, cfg.XMLTVFile)
	if err != nil {
		return nil, err
	}

	heur, err := OpenHeuristics(cfg)
	if err != nil {
		return nil, fmt.Errorf("open heuristics store: %w", err)
	}

	store := cache.NewStore(cfg.DataDir)
	engine, err := NewEngine(cfg, heur, store)
	if err != nil {
		return nil, errors.Join(err, heur.Close())
	}

	svc := jobs.NewService(jobs.ServiceConfig{
		Sources:            cfg.Sources,
		RefreshInterval:    cfg.RefreshInterval,
		XMLTVPath:          xmltvPath,
		MinTriggerInterval: cfg.API.TriggerInterval,
	}, engine, store)

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewScheduleChecker(ScheduleState(svc), staleFactor*cfg.RefreshInterval))
	hm.RegisterChecker(health.NewFileChecker("xmltv", xmltvPath))

	apiCfg := api.Config{RateLimit: cfg.API.RateLimit}
	if cfg.Telemetry.Enabled {
		apiCfg.TracingService = telemetry.DefaultServiceName
	}

	return &Runtime{
		Config:     cfg,
		Heuristics: heur,
		Cache:      store,
		Engine:     engine,
		Service:    svc,
		Health:     hm,
		API:        api.New(apiCfg, svc, hm),
		XMLTVPath:  xmltvPath,
	}, nil
}

// Close releases the heuristics store.
func (r *Runtime) Close(_ context.Context) error {
	if r.Heuristics == nil {
		return nil
	}
	return r.Heuristics.Close()
}

// ScheduleState adapts a refresh service to the readiness checker.
func ScheduleState(svc *jobs.Service) func() health.ScheduleState {
	return func() health.ScheduleState {
		st := svc.Status()
		state := health.ScheduleState{LastError: st.Error}
		if snap := svc.Snapshot(); snap != nil {
			state.Loaded = true
			state.UpdatedAt = snap.UpdatedAt
			state.FromCache = snap.FromCache
		}
		return state
	}
}
