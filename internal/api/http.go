// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the merged schedule, the refresh controls and the
// operational endpoints over HTTP.
package api

import (
	"net/http"
	"sync"

	"github.com/ManuGH/epgmerge/internal/health"
	"github.com/ManuGH/epgmerge/internal/jobs"
)

// ScheduleService is the part of jobs.Service the API needs.
type ScheduleService interface {
	Snapshot() *jobs.Snapshot
	Status() jobs.Status
	Trigger() (string, error)
}

// Config configures the HTTP surface.
type Config struct {
	RateLimit        int    // requests per minute per client; zero disables
	TracingService   string // empty disables server spans
	DisableAccessLog bool
}

// Server represents the HTTP API server.
type Server struct {
	cfg    Config
	svc    ScheduleService
	health *health.Manager

	xmltvMu   sync.Mutex
	xmltvSnap *jobs.Snapshot
	xmltvBody []byte
}

// New creates a Server. health may be nil, in which case the probes report
// healthy without component checks.
func New(cfg Config, svc ScheduleService, hm *health.Manager) *Server {
	if hm == nil {
		hm = health.NewManager("")
	}
	return &Server{cfg: cfg, svc: svc, health: hm}
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.routes()
}
