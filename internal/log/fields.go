// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Source fields
	FieldSourceURL   = "source_url"
	FieldSourceIndex = "source_index"
	FieldSources     = "sources"
	FieldBytes       = "bytes"
	FieldEncoding    = "encoding"

	// Schedule fields
	FieldChannels   = "channels"
	FieldProgrammes = "programmes"
	FieldNames      = "names"

	// Timing fields
	FieldDurationMS = "duration_ms"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
)
