// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package epg

import "sort"

// NameConflict records a display name that two sources map to different ids.
type NameConflict struct {
	Name     string
	Previous string // id from the earlier source, overwritten
	Winner   string // id from the later source, kept
}

// Merge combines per-source partials into one schedule and one name index.
//
// parts must be in configured source order; results do not depend on which
// source finished first. Name collisions resolve to the later source.
// Per channel, programs are stably sorted by Start and an entry whose Start
// equals an already kept Start is dropped, so the earlier source wins a
// duplicate slot. Merge is idempotent.
func Merge(parts []Partial) (Schedule, ChannelNameIndex) {
	sched, names, _ := MergeWithConflicts(parts)
	return sched, names
}

// MergeWithConflicts is Merge plus the list of name collisions it resolved.
func MergeWithConflicts(parts []Partial) (Schedule, ChannelNameIndex, []NameConflict) {
	names := ChannelNameIndex{}
	var conflicts []NameConflict
	for _, p := range parts {
		for name, id := range p.Names {
			if prev, ok := names[name]; ok && prev != id {
				conflicts = append(conflicts, NameConflict{Name: name, Previous: prev, Winner: id})
			}
			names[name] = id
		}
	}

	sizes := map[string]int{}
	for _, p := range parts {
		for id, progs := range p.Schedule {
			sizes[id] += len(progs)
		}
	}

	sched := make(Schedule, len(sizes))
	for id, n := range sizes {
		all := make([]Program, 0, n)
		for _, p := range parts {
			all = append(all, p.Schedule[id]...)
		}
		if deduped := dedupe(all); len(deduped) > 0 {
			sched[id] = deduped
		}
	}
	return sched, names, conflicts
}

// dedupe sorts progs by Start in place and drops repeated Starts.
func dedupe(progs []Program) []Program {
	sort.SliceStable(progs, func(i, j int) bool {
		return progs[i].Start.Before(progs[j].Start)
	})
	out := progs[:0]
	for i, p := range progs {
		if i > 0 && p.Start.Equal(out[len(out)-1].Start) {
			continue
		}
		out = append(out, p)
	}
	return out
}
