// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"time"

	"github.com/ManuGH/epgmerge/internal/heuristics"
	"github.com/ManuGH/epgmerge/internal/jobs"
	"github.com/ManuGH/epgmerge/internal/metrics"
	"github.com/ManuGH/epgmerge/internal/validate"
)

// MinRefreshInterval is the shortest accepted periodic refresh.
const MinRefreshInterval = time.Minute

var heuristicsBackends = []string{
	heuristics.BackendSqlite,
	heuristics.BackendBadger,
	heuristics.BackendRedis,
	heuristics.BackendMemory,
}

// Validate validates an AppConfig using the centralized validation package
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.Directory("dataDir", cfg.DataDir, false)
	if _, err := validate.ParseLogLevel(cfg.LogLevel); err != nil {
		v.AddError("logLevel", err.Error(), cfg.LogLevel)
	}

	seen := make(map[string]int, len(cfg.Sources))
	for i, src := range cfg.Sources {
		field := fmt.Sprintf("sources[%d]", i)
		v.SourceURL(field, src)
		if first, dup := seen[src]; dup {
			v.AddError(field, fmt.Sprintf("duplicate of sources[%d]", first), i)
			continue
		}
		seen[src] = i
	}

	if cfg.RefreshInterval != 0 {
		v.DurationRange("refreshInterval", cfg.RefreshInterval, MinRefreshInterval, 0)
	}
	v.Custom("xmltvFile", cfg.XMLTVFile, func(val any) error {
		_, err := jobs.ExportPath(cfg.DataDir, val.(string))
		return err
	})

	// EPG
	v.Timezone("epg.defaultTimezone", cfg.EPG.DefaultTimezone)
	v.DurationRange("epg.sourceTimeout", cfg.EPG.SourceTimeout, time.Second, 24*time.Hour)
	if cfg.EPG.Deadline != 0 {
		v.DurationRange("epg.deadline", cfg.EPG.Deadline, time.Second, 24*time.Hour)
	}

	// Fetch
	f := cfg.Fetch
	v.DurationRange("fetch.totalTimeout", f.TotalTimeout, time.Second, 24*time.Hour)
	v.DurationRange("fetch.connectTimeout", f.ConnectTimeout, 100*time.Millisecond, f.TotalTimeout)
	v.DurationRange("fetch.headerTimeout", f.HeaderTimeout, time.Second, f.TotalTimeout)
	v.Range("fetch.retries", f.Retries, 0, 5)
	v.DurationRange("fetch.retryBackoff", f.RetryBackoff, 0, time.Minute)
	if f.MaxDecompressedBytes < 1<<20 {
		v.AddError("fetch.maxDecompressedBytes", "must be at least 1MiB", f.MaxDecompressedBytes)
	}
	v.Positive("fetch.fallbackByteSize", f.FallbackByteSize)
	if f.ScratchDir != "" {
		v.Directory("fetch.scratchDir", f.ScratchDir, false)
	}

	// Heuristics
	v.OneOf("heuristics.backend", cfg.Heuristics.Backend, heuristicsBackends)
	if cfg.Heuristics.Backend == heuristics.BackendRedis {
		v.NotEmpty("heuristics.redis.addr", cfg.Heuristics.Redis.Addr)
		v.Range("heuristics.redis.db", cfg.Heuristics.Redis.DB, 0, 15)
	}

	// API
	v.ListenAddr("api.listenAddr", cfg.API.ListenAddr)
	v.NonNegative("api.rateLimit", cfg.API.RateLimit)
	v.DurationRange("api.triggerInterval", cfg.API.TriggerInterval, time.Second, 0)

	// Telemetry
	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
	}
	v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)

	if !v.IsValid() {
		metrics.IncConfigValidationError()
	}
	return v.Err()
}
