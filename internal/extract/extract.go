// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package extract defines the media source model and routes episode page URLs to the
// extractor that understands them.
package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Quality is a vertical resolution tier.
type Quality int

const (
	Quality360 Quality = 360
	Quality480 Quality = 480
	Quality720 Quality = 720
)

// Qualities lists the supported tiers in ascending order.
var Qualities = []Quality{Quality360, Quality480, Quality720}

// MediaSource is one directly streamable URL at a quality tier.
type MediaSource struct {
	Quality Quality `json:"quality"`
	URL     string  `json:"url"`
}

// ErrRouting is matched by every RoutingError.
var ErrRouting = errors.New("extract: url not handled by extractor")

// RoutingError reports that a page URL was sent to an extractor that cannot handle it.
type RoutingError struct {
	Extractor string
	URL       string
}

func (e *RoutingError) Error() string {
	if e.Extractor == "" {
		return fmt.Sprintf("extract: no extractor accepts %q", e.URL)
	}
	return fmt.Sprintf("extract: %s cannot handle %q", e.Extractor, e.URL)
}

// Unwrap lets errors.Is match ErrRouting.
func (e *RoutingError) Unwrap() error { return ErrRouting }

// Extractor resolves one provider's episode pages.
//
// Resolve returns a RoutingError when the URL is not the provider's; every other failure
// yields an empty slice and a nil error.
type Extractor interface {
	Name() string
	Accepts(pageURL string) bool
	Resolve(ctx context.Context, pageURL string) ([]MediaSource, error)
}

// Registry routes page URLs to registered extractors. It is not modified after
// NewRegistry returns.
type Registry struct {
	extractors []Extractor
}

// NewRegistry returns a registry holding the given extractors in priority order.
func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: append([]Extractor(nil), extractors...)}
}

// Lookup returns the first extractor accepting pageURL.
func (r *Registry) Lookup(pageURL string) (Extractor, bool) {
	for _, e := range r.extractors {
		if e.Accepts(pageURL) {
			return e, true
		}
	}
	return nil, false
}

// Supported reports whether any extractor accepts pageURL.
func (r *Registry) Supported(pageURL string) bool {
	_, ok := r.Lookup(pageURL)
	return ok
}

// Names lists registered extractor names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.extractors))
	for _, e := range r.extractors {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// Resolve dispatches pageURL to its extractor.
func (r *Registry) Resolve(ctx context.Context, pageURL string) ([]MediaSource, error) {
	e, ok := r.Lookup(pageURL)
	if !ok {
		return nil, &RoutingError{URL: pageURL}
	}
	return e.Resolve(ctx, pageURL)
}

// Resolver is the single-operation view of a Registry or Extractor.
type Resolver interface {
	Resolve(ctx context.Context, pageURL string) ([]MediaSource, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, pageURL string) ([]MediaSource, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, pageURL string) ([]MediaSource, error) {
	return f(ctx, pageURL)
}
