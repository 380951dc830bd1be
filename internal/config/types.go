// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// FileConfig is the on-disk YAML shape. Pointer fields distinguish "unset"
// from an explicit zero.
type FileConfig struct {
	DataDir         string   `yaml:"dataDir,omitempty"`
	LogLevel        string   `yaml:"logLevel,omitempty"`
	Sources         []string `yaml:"sources,omitempty"`
	RefreshInterval string   `yaml:"refreshInterval,omitempty"`
	XMLTVFile       string   `yaml:"xmltvFile,omitempty"`

	EPG        EPGConfig        `yaml:"epg,omitempty"`
	Fetch      FetchConfig      `yaml:"fetch,omitempty"`
	Heuristics HeuristicsConfig `yaml:"heuristics,omitempty"`
	API        APIConfig        `yaml:"api,omitempty"`
	Telemetry  TelemetryConfig  `yaml:"telemetry,omitempty"`
}

// EPGConfig holds decode and pipeline timing settings.
type EPGConfig struct {
	DefaultTimezone string `yaml:"defaultTimezone,omitempty"`
	SourceTimeout   string `yaml:"sourceTimeout,omitempty"`
	Deadline        string `yaml:"deadline,omitempty"`
}

// FetchConfig holds HTTP download settings.
type FetchConfig struct {
	ConnectTimeout       string `yaml:"connectTimeout,omitempty"`
	HeaderTimeout        string `yaml:"headerTimeout,omitempty"`
	TotalTimeout         string `yaml:"totalTimeout,omitempty"`
	Retries              *int   `yaml:"retries,omitempty"`
	RetryBackoff         string `yaml:"retryBackoff,omitempty"`
	MaxDecompressedBytes *int64 `yaml:"maxDecompressedBytes,omitempty"`
	FallbackByteSize     *int64 `yaml:"fallbackByteSize,omitempty"`
	ScratchDir           string `yaml:"scratchDir,omitempty"`
	UserAgent            string `yaml:"userAgent,omitempty"`
}

// HeuristicsConfig selects where per-source observations are kept.
type HeuristicsConfig struct {
	Backend string      `yaml:"backend,omitempty"`
	Redis   RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig configures the redis heuristics backend.
type RedisConfig struct {
	Addr      string `yaml:"addr,omitempty"`
	Password  string `yaml:"password,omitempty"`
	DB        *int   `yaml:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	ListenAddr      string `yaml:"listenAddr,omitempty"`
	RateLimit       *int   `yaml:"rateLimit,omitempty"`
	TriggerInterval string `yaml:"triggerInterval,omitempty"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	Environment  string   `yaml:"environment,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
}

// AppConfig is the resolved runtime configuration.
type AppConfig struct {
	Version         string
	DataDir         string
	LogLevel        string
	Sources         []string
	RefreshInterval time.Duration
	XMLTVFile       string

	EPG        EPGSettings
	Fetch      FetchSettings
	Heuristics HeuristicsSettings
	API        APISettings
	Telemetry  TelemetrySettings
}

// EPGSettings are the resolved EPG settings.
type EPGSettings struct {
	DefaultTimezone string
	SourceTimeout   time.Duration
	Deadline        time.Duration // zero: no overall deadline
}

// FetchSettings are the resolved download settings.
type FetchSettings struct {
	ConnectTimeout       time.Duration
	HeaderTimeout        time.Duration
	TotalTimeout         time.Duration
	Retries              int
	RetryBackoff         time.Duration
	MaxDecompressedBytes int64
	FallbackByteSize     int64
	ScratchDir           string // empty: os.TempDir
	UserAgent            string
}

// HeuristicsSettings are the resolved heuristics store settings.
type HeuristicsSettings struct {
	Backend string
	Redis   RedisSettings
}

// RedisSettings are the resolved redis settings.
type RedisSettings struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// APISettings are the resolved HTTP settings.
type APISettings struct {
	ListenAddr      string
	RateLimit       int // requests per minute per client; 0 disables
	TriggerInterval time.Duration
}

// TelemetrySettings are the resolved tracing settings.
type TelemetrySettings struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	Environment  string
	SamplingRate float64
}
