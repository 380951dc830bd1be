// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/epgmerge/internal/log"
)

// EnvPrefix prefixes every environment key the loader reads.
const EnvPrefix = "EPGD_"

// ParseString reads a string from environment variable or returns default value.
// Values of keys that look sensitive are never logged.
func ParseString(key, defaultValue string) string {
	logger := log.WithComponent("config")
	value, exists := os.LookupEnv(key)
	switch {
	case !exists:
		logDefault(logger, key, func(e *zerolog.Event) *zerolog.Event { return e.Str("default", defaultValue) })
		return defaultValue
	case value == "":
		logger.Debug().
			Str("key", key).
			Str("default", defaultValue).
			Str("source", "default").
			Msg("using default value (environment variable is empty)")
		return defaultValue
	case isSensitiveKey(key):
		logger.Debug().
			Str("key", key).
			Str("source", "environment").
			Bool("sensitive", true).
			Msg("using environment variable")
	default:
		logger.Debug().
			Str("key", key).
			Str("value", value).
			Str("source", "environment").
			Msg("using environment variable")
	}
	return value
}

// ParseInt reads an integer from environment variable or returns default value.
// It validates the input and falls back to default on parse errors.
func ParseInt(key string, defaultValue int) int {
	return parseEnv(key, defaultValue, strconv.Atoi, (*zerolog.Event).Int)
}

// ParseInt64 is ParseInt for byte sizes.
func ParseInt64(key string, defaultValue int64) int64 {
	return parseEnv(key, defaultValue, func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	}, (*zerolog.Event).Int64)
}

// ParseDuration reads a duration from environment variable in Go duration format (e.g. "5s").
// It falls back to default on parse errors or empty variables and logs the choice.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseEnv(key, defaultValue, time.ParseDuration, (*zerolog.Event).Dur)
}

// ParseFloat reads a float64 from environment variable or returns default value.
func ParseFloat(key string, defaultValue float64) float64 {
	return parseEnv(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	}, (*zerolog.Event).Float64)
}

// ParseBool reads a boolean from environment variable or returns default value.
// It accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	return parseEnv(key, defaultValue, parseBoolWord, (*zerolog.Event).Bool)
}

// ParseList reads a comma separated list. Blank items are dropped; an unset
// or empty variable yields defaultValue.
func ParseList(key string, defaultValue []string) []string {
	raw := ParseString(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func parseBoolWord(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// parseEnv is the shared lookup, parse and log path of the typed helpers.
func parseEnv[T any](key string, defaultValue T, parse func(string) (T, error), field func(*zerolog.Event, string, T) *zerolog.Event) T {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok {
		logDefault(logger, key, func(e *zerolog.Event) *zerolog.Event { return field(e, "default", defaultValue) })
		return defaultValue
	}
	if v == "" {
		field(logger.Debug(), "default", defaultValue).
			Str("key", key).
			Str("source", "default").
			Msg("using default value (environment variable is empty)")
		return defaultValue
	}
	parsed, err := parse(strings.TrimSpace(v))
	if err != nil {
		field(logger.Warn(), "default", defaultValue).
			Str("key", key).
			Str("value", v).
			Msg("invalid value in environment variable, using default")
		return defaultValue
	}
	field(logger.Debug(), "value", parsed).
		Str("key", key).
		Str("source", "environment").
		Msg("using environment variable")
	return parsed
}

func logDefault(logger zerolog.Logger, key string, withDefault func(*zerolog.Event) *zerolog.Event) {
	withDefault(logger.Debug()).
		Str("key", key).
		Str("source", "default").
		Msg("using default value")
}

// expandEnv expands environment variables in the format ${VAR} or $VAR
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}
