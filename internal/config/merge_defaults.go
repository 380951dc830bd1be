// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/epgmerge/internal/fetch"
	"github.com/ManuGH/epgmerge/internal/heuristics"
	"github.com/ManuGH/epgmerge/internal/jobs"
)

// Defaults.
const (
	DefaultDataDir         = "/var/lib/epgd"
	DefaultListenAddr      = ":8080"
	DefaultRefreshInterval = 6 * time.Hour
	DefaultSourceTimeout   = 3 * time.Minute
)

func setDefaults(cfg *AppConfig) {
	cfg.DataDir = DefaultDataDir
	cfg.LogLevel = "info"
	cfg.RefreshInterval = DefaultRefreshInterval
	cfg.XMLTVFile = jobs.DefaultXMLTVFile

	cfg.EPG = EPGSettings{
		DefaultTimezone: "UTC",
		SourceTimeout:   DefaultSourceTimeout,
	}
	cfg.Fetch = FetchSettings{
		ConnectTimeout:       10 * time.Second,
		HeaderTimeout:        30 * time.Second,
		TotalTimeout:         2 * time.Minute,
		Retries:              1,
		RetryBackoff:         500 * time.Millisecond,
		MaxDecompressedBytes: fetch.DefaultMaxDecompressedBytes,
		FallbackByteSize:     fetch.DefaultFallbackByteSize,
		UserAgent:            "epgmerge",
	}
	cfg.Heuristics = HeuristicsSettings{
		Backend: heuristics.BackendSqlite,
		Redis:   RedisSettings{KeyPrefix: heuristics.DefaultRedisKeyPrefix},
	}
	cfg.API = APISettings{
		ListenAddr:      DefaultListenAddr,
		RateLimit:       120,
		TriggerInterval: jobs.DefaultMinTriggerInterval,
	}
	cfg.Telemetry = TelemetrySettings{
		Exporter:     "grpc",
		Endpoint:     "localhost:4317",
		Environment:  "production",
		SamplingRate: 1.0,
	}
}
