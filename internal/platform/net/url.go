// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package net

import (
	"fmt"
	"net/url"
	"strings"
)

// SanitizeURL removes user info and query parameters for safe logging.
// Provider URLs often carry credentials in either place.
func SanitizeURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	parsedURL.RawQuery = ""
	return parsedURL.String()
}

// ParseSourceURL validates an EPG source URL.
// It enforces:
//   - Scheme must be "http" or "https"
//   - Host must be non-empty
//   - No fragment
//
// Basic-auth credentials in the user info are allowed; SanitizeURL strips
// them before the URL reaches a log line.
func ParseSourceURL(s string) (*url.URL, error) {
	s = strings.TrimSpace(s)
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	// strict scheme check (case-insensitive)
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("scheme %q not allowed", u.Scheme)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("missing url host")
	}

	if u.Fragment != "" {
		return nil, fmt.Errorf("fragments not allowed")
	}

	return u, nil
}

// NormalizeAuthority parses a host string (which may act as an authority)
// and returns the normalized hostname and port.
//
// If the input lacks a scheme, defaultScheme is prepended before parsing.
// The hostname relies on url.URL.Hostname() which strips brackets from IPv6 literals.
func NormalizeAuthority(s, defaultScheme string) (host, port string, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", fmt.Errorf("empty input")
	}

	if !strings.Contains(s, "://") {
		if defaultScheme == "" {
			defaultScheme = "http"
		}
		s = defaultScheme + "://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse authority: %w", err)
	}

	if u.Host == "" {
		return "", "", fmt.Errorf("empty host")
	}

	return u.Hostname(), u.Port(), nil
}
