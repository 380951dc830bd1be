// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"net/http"

	"github.com/ManuGH/epgmerge/internal/epg"
	"github.com/ManuGH/epgmerge/internal/jobs"
	"github.com/ManuGH/epgmerge/internal/log"
)

// handleXMLTV serves the merged schedule as an XMLTV document. The encoding
// is cached per snapshot; conditional and HEAD requests go through
// http.ServeContent.
func (s *Server) handleXMLTV(w http.ResponseWriter, r *http.Request) {
	snap := s.svc.Snapshot()
	if snap == nil {
		writeNotReady(w)
		return
	}

	body, err := s.xmltvFor(snap)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "xmltv.encode_failed").
			Msg("failed to encode XMLTV")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	http.ServeContent(w, r, jobs.DefaultXMLTVFile, snap.UpdatedAt, bytes.NewReader(body))
}

func (s *Server) xmltvFor(snap *jobs.Snapshot) ([]byte, error) {
	s.xmltvMu.Lock()
	defer s.xmltvMu.Unlock()
	if s.xmltvSnap == snap {
		return s.xmltvBody, nil
	}

	var buf bytes.Buffer
	if err := epg.Encode(&buf, epg.BuildTV(snap.Schedule, snap.Names)); err != nil {
		return nil, err
	}
	s.xmltvSnap = snap
	s.xmltvBody = buf.Bytes()
	return s.xmltvBody, nil
}
