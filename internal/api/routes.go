// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/epgmerge/internal/api/middleware"
)

func (s *Server) routes() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        s.cfg.TracingService,
		EnableLogging:         !s.cfg.DisableAccessLog,
	})

	// Probes and scrapes are never rate limited.
	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(middleware.RateLimit(middleware.RateLimitConfig{
				RequestLimit: s.cfg.RateLimit,
				WindowSize:   time.Minute,
			}))
		}
		r.Get("/xmltv.xml", s.handleXMLTV)
		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/epg", s.handleEPG)
			r.Get("/channels", s.handleChannels)
			r.Get("/lookup", s.handleLookup)
			r.Get("/status", s.handleStatus)
			r.Post("/refresh", s.handleRefresh)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { writeNotFound(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})
	return r
}
