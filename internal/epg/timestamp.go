// SPDX-License-Identifier: MIT

package epg

import (
	"strings"
	"time"
)

// XMLTV timestamp layouts, tried in order.
const (
	layoutSpacedOffset = "20060102150405 -0700"
	layoutJoinedOffset = "20060102150405-0700"
	layoutBare         = "20060102150405"
)

// TimeParser converts XMLTV date strings into absolute instants.
//
// Timestamps without an explicit offset are interpreted in Default. A nil
// Default means UTC; the host's local zone is never used implicitly.
type TimeParser struct {
	Default *time.Location
}

// Parse returns the instant in UTC and true, or the zero time and false when
// raw matches none of the accepted layouts.
func (p TimeParser) Parse(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse(layoutSpacedOffset, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(layoutJoinedOffset, s); err == nil {
		return t.UTC(), true
	}

	loc := p.Default
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(layoutBare, s, loc); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// LoadTimeParser resolves a zone name ("UTC", "Local", "Europe/Berlin") into a
// parser. An empty name selects UTC.
func LoadTimeParser(zone string) (TimeParser, error) {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return TimeParser{Default: time.UTC}, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return TimeParser{}, err
	}
	return TimeParser{Default: loc}, nil
}

// formatXMLTVTime formats time in XMLTV format: YYYYMMDDHHMMSS +ZZZZ
func formatXMLTVTime(t time.Time) string {
	return t.Format(layoutSpacedOffset)
}
