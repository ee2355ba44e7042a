// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID     = "session_id"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldTitleID       = "title_id"

	// Process / pipeline fields
	FieldEvent      = "event"
	FieldComponent  = "component"
	FieldStage      = "stage"
	FieldReason     = "reason"
	FieldGeneration = "generation"
	FieldExtractor  = "extractor"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldPageURL    = "page_url"
	FieldScriptPath = "script_path"
	FieldAPIPath    = "api_path"
	FieldHost       = "host"
	FieldStatus     = "status"

	// Playback fields
	FieldProvider = "provider"
	FieldDubber   = "dubber"
	FieldEpisode  = "episode"
	FieldTime     = "time"
	FieldSegment  = "segment"
	FieldChord    = "chord"
)
