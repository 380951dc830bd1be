// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Source attributes
	SourceURLKey       = "source.url"
	SourceIndexKey     = "source.index"
	SourceTimeoutKey   = "source.timeout_ms"
	SourceEncodingKey  = "source.encoding"
	SourceWireBytesKey = "source.wire_bytes"
	SourceBytesKey     = "source.bytes"

	// Merge attributes
	EPGSourcesKey    = "epg.sources"
	EPGChannelsKey   = "epg.channels"
	EPGProgrammesKey = "epg.programmes"
	EPGNamesKey      = "epg.names"
	EPGConflictsKey  = "epg.name_conflicts"
	EPGDroppedKey    = "epg.dropped"

	// Job attributes
	JobRunIDKey    = "job.run_id"
	JobTriggerKey  = "job.trigger"
	JobStatusKey   = "job.status"
	JobDurationKey = "job.duration_ms"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// SourceAttributes describes one source of a refresh. The URL must already
// be sanitized; a zero timeout is omitted.
func SourceAttributes(url string, index int, timeoutMS int64) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if url != "" {
		attrs = append(attrs, attribute.String(SourceURLKey, url))
	}
	attrs = append(attrs, attribute.Int(SourceIndexKey, index))
	if timeoutMS > 0 {
		attrs = append(attrs, attribute.Int64(SourceTimeoutKey, timeoutMS))
	}
	return attrs
}

// PayloadAttributes records what a fetch delivered.
func PayloadAttributes(encoding string, wireBytes, bytes int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SourceEncodingKey, encoding),
		attribute.Int64(SourceWireBytesKey, wireBytes),
		attribute.Int64(SourceBytesKey, bytes),
	}
}

// MergeAttributes summarizes a merged schedule.
func MergeAttributes(sources, channels, programmes, names, conflicts int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(EPGSourcesKey, sources),
		attribute.Int(EPGChannelsKey, channels),
		attribute.Int(EPGProgrammesKey, programmes),
		attribute.Int(EPGNamesKey, names),
		attribute.Int(EPGConflictsKey, conflicts),
	}
}

// JobAttributes creates job-related span attributes.
func JobAttributes(runID, trigger, status string, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobRunIDKey, runID),
		attribute.String(JobTriggerKey, trigger),
		attribute.String(JobStatusKey, status),
		attribute.Int64(JobDurationKey, durationMS),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
