// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// mergeFileConfig overlays the values present in src onto dst.
func mergeFileConfig(dst *AppConfig, src *FileConfig) error {
	var errs []error
	dur := func(field, raw string, target *time.Duration) {
		if raw == "" {
			return
		}
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err))
			return
		}
		*target = d
	}

	if src.DataDir != "" {
		dst.DataDir = expandEnv(src.DataDir)
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if len(src.Sources) > 0 {
		dst.Sources = make([]string, 0, len(src.Sources))
		for _, s := range src.Sources {
			if s = strings.TrimSpace(expandEnv(s)); s != "" {
				dst.Sources = append(dst.Sources, s)
			}
		}
	}
	dur("refreshInterval", src.RefreshInterval, &dst.RefreshInterval)
	if src.XMLTVFile != "" {
		dst.XMLTVFile = src.XMLTVFile
	}

	if src.EPG.DefaultTimezone != "" {
		dst.EPG.DefaultTimezone = src.EPG.DefaultTimezone
	}
	dur("epg.sourceTimeout", src.EPG.SourceTimeout, &dst.EPG.SourceTimeout)
	dur("epg.deadline", src.EPG.Deadline, &dst.EPG.Deadline)

	f := src.Fetch
	dur("fetch.connectTimeout", f.ConnectTimeout, &dst.Fetch.ConnectTimeout)
	dur("fetch.headerTimeout", f.HeaderTimeout, &dst.Fetch.HeaderTimeout)
	dur("fetch.totalTimeout", f.TotalTimeout, &dst.Fetch.TotalTimeout)
	dur("fetch.retryBackoff", f.RetryBackoff, &dst.Fetch.RetryBackoff)
	if f.Retries != nil {
		dst.Fetch.Retries = *f.Retries
	}
	if f.MaxDecompressedBytes != nil {
		dst.Fetch.MaxDecompressedBytes = *f.MaxDecompressedBytes
	}
	if f.FallbackByteSize != nil {
		dst.Fetch.FallbackByteSize = *f.FallbackByteSize
	}
	if f.ScratchDir != "" {
		dst.Fetch.ScratchDir = expandEnv(f.ScratchDir)
	}
	if f.UserAgent != "" {
		dst.Fetch.UserAgent = f.UserAgent
	}

	h := src.Heuristics
	if h.Backend != "" {
		dst.Heuristics.Backend = strings.ToLower(h.Backend)
	}
	if h.Redis.Addr != "" {
		dst.Heuristics.Redis.Addr = h.Redis.Addr
	}
	if h.Redis.Password != "" {
		dst.Heuristics.Redis.Password = expandEnv(h.Redis.Password)
	}
	if h.Redis.DB != nil {
		dst.Heuristics.Redis.DB = *h.Redis.DB
	}
	if h.Redis.KeyPrefix != "" {
		dst.Heuristics.Redis.KeyPrefix = h.Redis.KeyPrefix
	}

	if src.API.ListenAddr != "" {
		dst.API.ListenAddr = src.API.ListenAddr
	}
	if src.API.RateLimit != nil {
		dst.API.RateLimit = *src.API.RateLimit
	}
	dur("api.triggerInterval", src.API.TriggerInterval, &dst.API.TriggerInterval)

	t := src.Telemetry
	if t.Enabled != nil {
		dst.Telemetry.Enabled = *t.Enabled
	}
	if t.Exporter != "" {
		dst.Telemetry.Exporter = t.Exporter
	}
	if t.Endpoint != "" {
		dst.Telemetry.Endpoint = t.Endpoint
	}
	if t.Environment != "" {
		dst.Telemetry.Environment = t.Environment
	}
	if t.SamplingRate != nil {
		dst.Telemetry.SamplingRate = *t.SamplingRate
	}

	return errors.Join(errs...)
}
