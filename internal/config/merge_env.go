// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "strings"

// mergeEnvConfig merges environment variables into the config.
// ENV variables have the highest precedence.
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	l.mergeEnvCore(cfg)
	l.mergeEnvEPG(cfg)
	l.mergeEnvFetch(cfg)
	l.mergeEnvHeuristics(cfg)
	l.mergeEnvAPI(cfg)
	l.mergeEnvTelemetry(cfg)
}

func (l *Loader) mergeEnvCore(cfg *AppConfig) {
	cfg.DataDir = l.envString(EnvPrefix+"DATA_DIR", cfg.DataDir)
	cfg.LogLevel = l.envString(EnvPrefix+"LOG_LEVEL", cfg.LogLevel)
	cfg.Sources = l.envList(EnvPrefix+"SOURCES", cfg.Sources)
	cfg.RefreshInterval = l.envDuration(EnvPrefix+"REFRESH_INTERVAL", cfg.RefreshInterval)
	cfg.XMLTVFile = l.envString(EnvPrefix+"XMLTV_FILE", cfg.XMLTVFile)
}

func (l *Loader) mergeEnvEPG(cfg *AppConfig) {
	cfg.EPG.DefaultTimezone = l.envString(EnvPrefix+"DEFAULT_TIMEZONE", cfg.EPG.DefaultTimezone)
	cfg.EPG.SourceTimeout = l.envDuration(EnvPrefix+"SOURCE_TIMEOUT", cfg.EPG.SourceTimeout)
	cfg.EPG.Deadline = l.envDuration(EnvPrefix+"DEADLINE", cfg.EPG.Deadline)
}

func (l *Loader) mergeEnvFetch(cfg *AppConfig) {
	f := &cfg.Fetch
	f.ConnectTimeout = l.envDuration(EnvPrefix+"FETCH_CONNECT_TIMEOUT", f.ConnectTimeout)
	f.HeaderTimeout = l.envDuration(EnvPrefix+"FETCH_HEADER_TIMEOUT", f.HeaderTimeout)
	f.TotalTimeout = l.envDuration(EnvPrefix+"FETCH_TOTAL_TIMEOUT", f.TotalTimeout)
	f.Retries = l.envInt(EnvPrefix+"FETCH_RETRIES", f.Retries)
	f.RetryBackoff = l.envDuration(EnvPrefix+"FETCH_RETRY_BACKOFF", f.RetryBackoff)
	f.MaxDecompressedBytes = l.envInt64(EnvPrefix+"MAX_DECOMPRESSED_BYTES", f.MaxDecompressedBytes)
	f.FallbackByteSize = l.envInt64(EnvPrefix+"FALLBACK_BYTE_SIZE", f.FallbackByteSize)
	f.ScratchDir = l.envString(EnvPrefix+"SCRATCH_DIR", f.ScratchDir)
	f.UserAgent = l.envString(EnvPrefix+"USER_AGENT", f.UserAgent)
}

func (l *Loader) mergeEnvHeuristics(cfg *AppConfig) {
	h := &cfg.Heuristics
	h.Backend = strings.ToLower(l.envString(EnvPrefix+"HEURISTICS_BACKEND", h.Backend))
	h.Redis.Addr = l.envString(EnvPrefix+"REDIS_ADDR", h.Redis.Addr)
	h.Redis.Password = l.envString(EnvPrefix+"REDIS_PASSWORD", h.Redis.Password)
	h.Redis.DB = l.envInt(EnvPrefix+"REDIS_DB", h.Redis.DB)
	h.Redis.KeyPrefix = l.envString(EnvPrefix+"REDIS_KEY_PREFIX", h.Redis.KeyPrefix)
}

func (l *Loader) mergeEnvAPI(cfg *AppConfig) {
	cfg.API.ListenAddr = l.envString(EnvPrefix+"LISTEN_ADDR", cfg.API.ListenAddr)
	cfg.API.RateLimit = l.envInt(EnvPrefix+"API_RATE_LIMIT", cfg.API.RateLimit)
	cfg.API.TriggerInterval = l.envDuration(EnvPrefix+"TRIGGER_INTERVAL", cfg.API.TriggerInterval)
}

func (l *Loader) mergeEnvTelemetry(cfg *AppConfig) {
	t := &cfg.Telemetry
	t.Enabled = l.envBool(EnvPrefix+"TELEMETRY_ENABLED", t.Enabled)
	t.Exporter = l.envString(EnvPrefix+"OTLP_EXPORTER", t.Exporter)
	t.Endpoint = l.envString(EnvPrefix+"OTLP_ENDPOINT", t.Endpoint)
	t.Environment = l.envString(EnvPrefix+"ENVIRONMENT", t.Environment)
	t.SamplingRate = l.envFloat(EnvPrefix+"TRACE_SAMPLING_RATE", t.SamplingRate)
}
