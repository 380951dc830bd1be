// SPDX-License-Identifier: MIT

// Package epg provides Electronic Program Guide functionality: XMLTV decoding,
// timestamp parsing, cross-source merging and XMLTV export.
package epg

import (
	"strings"

	unorm "golang.org/x/text/unicode/norm"
)

func normalize(s string) string {
	// Normalize Unicode to NFC form (composed form) before processing
	s = unorm.NFC.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	// Re-normalize after case conversion (lowercase may create new combining sequences)
	return unorm.NFC.String(s)
}

// NameKey generates the ChannelNameIndex key for a display name: trimmed,
// lower-cased and NFC-normalised. Inner whitespace is kept as is.
func NameKey(s string) string { return normalize(s) }
