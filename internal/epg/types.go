// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package epg

import (
	"sort"
	"time"
)

// DefaultParseDuration is assumed for a source that has never been parsed before.
const DefaultParseDuration = 20 * time.Second

// Program is one schedule entry. Two programs are duplicates when they share
// ChannelID and Start.
type Program struct {
	ChannelID   string    `json:"channel"`
	Title       string    `json:"title"`
	Description string    `json:"desc,omitempty"`
	Start       time.Time `json:"start"`
	Stop        time.Time `json:"stop"`
}

// Schedule maps a channel id to its programs. After Merge every list is ordered
// by Start and holds no two entries with the same Start.
type Schedule map[string][]Program

// ChannelNameIndex maps a normalised display name (see NameKey) to a channel id.
type ChannelNameIndex map[string]string

// SourceDescriptor is one configured EPG source plus what was observed about it
// on earlier runs. Zero values mean "unknown".
type SourceDescriptor struct {
	URL                   string        `json:"url"`
	ExpectedByteSize      int64         `json:"expected_byte_size,omitempty"`
	ExpectedParseDuration time.Duration `json:"expected_parse_duration,omitempty"`
}

// ParseEstimate returns the expected parse duration, falling back to
// DefaultParseDuration when nothing was observed yet.
func (d SourceDescriptor) ParseEstimate() time.Duration {
	if d.ExpectedParseDuration > 0 {
		return d.ExpectedParseDuration
	}
	return DefaultParseDuration
}

// Partial is the decode output of a single source.
type Partial struct {
	Schedule Schedule
	Names    ChannelNameIndex
}

// Empty reports whether the partial carries neither programs nor names.
func (p Partial) Empty() bool {
	return len(p.Schedule) == 0 && len(p.Names) == 0
}

// Programmes returns the total number of programs across all channels.
func (s Schedule) Programmes() int {
	n := 0
	for _, progs := range s {
		n += len(progs)
	}
	return n
}

// Channels returns the channel ids in lexical order.
func (s Schedule) Channels() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Lookup resolves a display name through the index using the same
// normalisation the decoder applies.
func (idx ChannelNameIndex) Lookup(name string) (string, bool) {
	id, ok := idx[NameKey(name)]
	return id, ok
}
