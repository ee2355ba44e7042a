// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by extraction and session spans.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPURLKey        = "http.url"

	ExtractorKey    = "extract.extractor"
	PageHostKey     = "extract.page_host"
	StageKey        = "extract.stage"
	ReasonKey       = "extract.reason"
	SourceCountKey  = "extract.source_count"
	APIPathKey      = "extract.api_path"
	ScriptPathKey   = "extract.script_path"
	StaleRetriedKey = "extract.stale_retried"

	ProviderKey   = "session.provider"
	DubberKey     = "session.dubber"
	EpisodeKey    = "session.episode"
	GenerationKey = "session.generation"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes describes one outbound request.
func HTTPAttributes(method, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// ExtractAttributes describes one resolve run.
func ExtractAttributes(extractor, host string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if extractor != "" {
		attrs = append(attrs, attribute.String(ExtractorKey, extractor))
	}
	if host != "" {
		attrs = append(attrs, attribute.String(PageHostKey, host))
	}
	return attrs
}

// SelectionAttributes describes a selection triple and its generation token.
func SelectionAttributes(provider, dubber, episode int, generation uint64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(ProviderKey, provider),
		attribute.Int(DubberKey, dubber),
		attribute.Int(EpisodeKey, episode),
		attribute.Int64(GenerationKey, int64(generation)),
	}
}

// RecordFailure marks the span as failed at a stage.
func RecordFailure(span trace.Span, stage, reason string, err error) {
	span.SetAttributes(
		attribute.String(StageKey, stage),
		attribute.String(ReasonKey, reason),
		attribute.Bool(ErrorKey, true),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Error, reason)
}
