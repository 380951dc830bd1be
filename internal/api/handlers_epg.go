// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/ManuGH/epgmerge/internal/epg"
)

type epgResponse struct {
	UpdatedAt time.Time                `json:"updated_at"`
	FromCache bool                     `json:"from_cache"`
	Channels  map[string][]epg.Program `json:"channels"`
}

type channelInfo struct {
	ID         string   `json:"id"`
	Names      []string `json:"names,omitempty"`
	Programmes int      `json:"programmes"`
}

type lookupResponse struct {
	Name    string `json:"name"`
	Channel string `json:"channel"`
}

// timeWindow restricts programmes to those overlapping [from, to).
type timeWindow struct {
	from, to time.Time
}

func parseWindow(r *http.Request) (timeWindow, error) {
	var win timeWindow
	q := r.URL.Query()
	for _, p := range []struct {
		key string
		dst *time.Time
	}{{"from", &win.from}, {"to", &win.to}} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return win, err
		}
		*p.dst = t.UTC()
	}
	return win, nil
}

func (win timeWindow) filter(progs []epg.Program) []epg.Program {
	if win.from.IsZero() && win.to.IsZero() {
		return progs
	}
	out := make([]epg.Program, 0, len(progs))
	for _, p := range progs {
		if !win.from.IsZero() && !p.Stop.After(win.from) {
			continue
		}
		if !win.to.IsZero() && !p.Start.Before(win.to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// handleEPG serves GET /api/v1/epg[?channel=&from=&to=].
func (s *Server) handleEPG(w http.ResponseWriter, r *http.Request) {
	snap := s.svc.Snapshot()
	if snap == nil {
		writeNotReady(w)
		return
	}
	win, err := parseWindow(r)
	if err != nil {
		writeBadRequest(w, "from/to must be RFC 3339 timestamps")
		return
	}

	resp := epgResponse{
		UpdatedAt: snap.UpdatedAt,
		FromCache: snap.FromCache,
		Channels:  make(map[string][]epg.Program),
	}
	if id := strings.TrimSpace(r.URL.Query().Get("channel")); id != "" {
		progs, ok := snap.Schedule[id]
		if !ok {
			writeNotFound(w)
			return
		}
		resp.Channels[id] = win.filter(progs)
		writeJSON(w, http.StatusOK, resp)
		return
	}
	for id, progs := range snap.Schedule {
		resp.Channels[id] = win.filter(progs)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleChannels serves GET /api/v1/channels.
func (s *Server) handleChannels(w http.ResponseWriter, _ *http.Request) {
	snap := s.svc.Snapshot()
	if snap == nil {
		writeNotReady(w)
		return
	}

	names := make(map[string][]string)
	for key, id := range snap.Names {
		names[id] = append(names[id], key)
	}

	ids := snap.Schedule.Channels()
	for id := range names {
		if _, ok := snap.Schedule[id]; !ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	out := make([]channelInfo, 0, len(ids))
	for _, id := range ids {
		n := names[id]
		slices.Sort(n)
		out = append(out, channelInfo{ID: id, Names: n, Programmes: len(snap.Schedule[id])})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleLookup serves GET /api/v1/lookup?name=.
func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if strings.TrimSpace(name) == "" {
		writeBadRequest(w, "name is required")
		return
	}
	snap := s.svc.Snapshot()
	if snap == nil {
		writeNotReady(w)
		return
	}
	id, ok := snap.Names.Lookup(name)
	if !ok {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, lookupResponse{Name: name, Channel: id})
}
