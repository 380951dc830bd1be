// SPDX-License-Identifier: MIT
package telemetry

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestHTTPAttributes(t *testing.T) {
	attrs := HTTPAttributes("GET", "/api/v1/status", "http://localhost:8080/api/v1/status", 200)

	if len(attrs) != 4 {
		t.Fatalf("Expected 4 attributes, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, HTTPMethodKey, "GET")
	verifyAttribute(t, attrs, HTTPRouteKey, "/api/v1/status")
	verifyAttribute(t, attrs, HTTPURLKey, "http://localhost:8080/api/v1/status")
	verifyIntAttribute(t, attrs, HTTPStatusCodeKey, 200)
}

func TestSourceAttributes(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		timeout int64
		wantLen int
	}{
		{name: "all fields", url: "https://example.com/a.xml", timeout: 30000, wantLen: 3},
		{name: "no timeout", url: "https://example.com/a.xml", wantLen: 2},
		{name: "index only", wantLen: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := SourceAttributes(tt.url, 2, tt.timeout)
			if len(attrs) != tt.wantLen {
				t.Errorf("Expected %d attributes, got %d", tt.wantLen, len(attrs))
			}
			verifyIntAttribute(t, attrs, SourceIndexKey, 2)
		})
	}
}

func TestPayloadAttributes(t *testing.T) {
	attrs := PayloadAttributes("gzip", 1024, 8192)

	verifyAttribute(t, attrs, SourceEncodingKey, "gzip")
	verifyInt64Attribute(t, attrs, SourceWireBytesKey, 1024)
	verifyInt64Attribute(t, attrs, SourceBytesKey, 8192)
}

func TestMergeAttributes(t *testing.T) {
	attrs := MergeAttributes(2, 150, 4200, 310, 3)

	if len(attrs) != 5 {
		t.Fatalf("Expected 5 attributes, got %d", len(attrs))
	}
	verifyIntAttribute(t, attrs, EPGSourcesKey, 2)
	verifyIntAttribute(t, attrs, EPGChannelsKey, 150)
	verifyIntAttribute(t, attrs, EPGProgrammesKey, 4200)
	verifyIntAttribute(t, attrs, EPGNamesKey, 310)
	verifyIntAttribute(t, attrs, EPGConflictsKey, 3)
}

func TestJobAttributes(t *testing.T) {
	attrs := JobAttributes("run-1", "scheduled", "success", 5000)

	verifyAttribute(t, attrs, JobRunIDKey, "run-1")
	verifyAttribute(t, attrs, JobTriggerKey, "scheduled")
	verifyAttribute(t, attrs, JobStatusKey, "success")
	verifyInt64Attribute(t, attrs, JobDurationKey, 5000)
}

func TestErrorAttributes(t *testing.T) {
	attrs := ErrorAttributes(errors.New("boom"), "timeout")

	verifyBoolAttribute(t, attrs, ErrorKey, true)
	verifyAttribute(t, attrs, ErrorTypeKey, "timeout")
}

func TestAttributeKeys_Unique(t *testing.T) {
	keys := []string{
		HTTPMethodKey, HTTPStatusCodeKey, HTTPRouteKey, HTTPURLKey,
		SourceURLKey, SourceIndexKey, SourceTimeoutKey, SourceEncodingKey, SourceWireBytesKey, SourceBytesKey,
		EPGSourcesKey, EPGChannelsKey, EPGProgrammesKey, EPGNamesKey, EPGConflictsKey, EPGDroppedKey,
		JobRunIDKey, JobTriggerKey, JobStatusKey, JobDurationKey,
		ErrorKey, ErrorTypeKey,
	}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			t.Errorf("duplicate attribute key %q", k)
		}
		seen[k] = true
	}
}

func verifyAttribute(t *testing.T, attrs []attribute.KeyValue, key, expectedValue string) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsString() != expectedValue {
				t.Errorf("Expected %s=%s, got %s", key, expectedValue, attr.Value.AsString())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyIntAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue int) {
	t.Helper()
	verifyInt64Attribute(t, attrs, key, int64(expectedValue))
}

func verifyInt64Attribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue int64) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsInt64() != expectedValue {
				t.Errorf("Expected %s=%d, got %d", key, expectedValue, attr.Value.AsInt64())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyBoolAttribute(t *testing.T, attrs []attribute.KeyValue, key string, expectedValue bool) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsBool() != expectedValue {
				t.Errorf("Expected %s=%t, got %t", key, expectedValue, attr.Value.AsBool())
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}
