// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package kodik

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/ManuGH/kodikplay/internal/fetch"
	"github.com/ManuGH/kodikplay/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// DefaultAPIPath is used until a companion script has been parsed.
const DefaultAPIPath = "/ftor"

var ajaxURLPattern = regexp.MustCompile(`\$\.ajax\([^>]+,url:\s*atob\(["']([^"']+)["']\)`)

// EndpointResolver caches the versioned API path discovered in the companion script.
// One resolver is shared by every extractor run of a process; it is safe for concurrent use.
type EndpointResolver struct {
	mu          sync.RWMutex
	cached      string
	defaultPath string

	group singleflight.Group
}

// NewEndpointResolver returns a resolver with an empty cache.
func NewEndpointResolver(defaultPath string) *EndpointResolver {
	if defaultPath == "" {
		defaultPath = DefaultAPIPath
	}
	return &EndpointResolver{defaultPath: normalizePath(defaultPath)}
}

// Resolve parses script text and overwrites the cached path on a match.
// It reports whether the cache was written.
func (r *EndpointResolver) Resolve(script string) bool {
	m := ajaxURLPattern.FindStringSubmatch(script)
	if m == nil {
		return false
	}
	data, err := decodeBase64(m[1])
	if err != nil || len(data) == 0 {
		return false
	}
	path := normalizePath(string(data))

	r.mu.Lock()
	r.cached = path
	r.mu.Unlock()
	return true
}

// Cached returns the discovered path, if any.
func (r *EndpointResolver) Cached() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cached, r.cached != ""
}

// Path returns the cached path or the default.
func (r *EndpointResolver) Path() string {
	if p, ok := r.Cached(); ok {
		return p
	}
	return r.defaultPath
}

// APIURL builds the API URL for host from the current path.
func (r *EndpointResolver) APIURL(host string) string {
	return "https://" + host + r.Path()
}

// Refresh fetches the companion script and re-resolves the path.
// Concurrent refreshes of the same script URL share one request.
func (r *EndpointResolver) Refresh(ctx context.Context, f fetch.Fetcher, scriptURL string) (bool, error) {
	v, err, _ := r.group.Do(scriptURL, func() (any, error) {
		resp, err := f.Get(ctx, scriptURL)
		if err != nil {
			metrics.RecordEndpointRefresh("fetch_failed")
			return false, err
		}
		if !resp.OK() {
			metrics.RecordEndpointRefresh("fetch_failed")
			return false, fmt.Errorf("companion script status %d", resp.Status)
		}
		updated := r.Resolve(resp.Body)
		if updated {
			metrics.RecordEndpointRefresh("updated")
		} else {
			metrics.RecordEndpointRefresh("unchanged")
		}
		return updated, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
