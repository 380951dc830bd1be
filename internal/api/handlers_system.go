// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"

	"github.com/ManuGH/epgmerge/internal/jobs"
	"github.com/ManuGH/epgmerge/internal/log"
)

type refreshResponse struct {
	RunID string `json:"run_id"`
}

// handleStatus serves GET /api/v1/status.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Status())
}

// handleRefresh serves POST /api/v1/refresh. A refresh already in flight is
// joined rather than restarted.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	id, err := s.svc.Trigger()
	switch {
	case errors.Is(err, jobs.ErrRateLimited):
		w.Header().Set("Retry-After", "30")
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: err.Error()})
		return
	case errors.Is(err, jobs.ErrNotRunning):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
		return
	case err != nil:
		logger.Error().Err(err).Str(log.FieldEvent, "refresh.trigger_failed").Msg("refresh trigger failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "refresh failed to start"})
		return
	}

	logger.Info().
		Str(log.FieldEvent, "refresh.triggered").
		Str(log.FieldJobID, id).
		Msg("manual refresh accepted")
	writeJSON(w, http.StatusAccepted, refreshResponse{RunID: id})
}
