// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package httpx builds the outbound HTTP clients used by fetchers.
package httpx

import (
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"
)

const (
	defaultClientTimeout         = 10 * time.Second
	defaultDialTimeout           = 3 * time.Second
	defaultResponseHeaderTimeout = 8 * time.Second
	defaultIdleConnTimeout       = 30 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultMaxIdleConns          = 16
	defaultMaxIdleConnsPerHost   = 4
	defaultHTTP2ReadIdleTimeout  = 15 * time.Second
)

// Options tunes a client beyond its overall timeout.
type Options struct {
	// Traced wraps the transport with otelhttp so every outbound call gets a client span.
	Traced bool
	// DisableHTTP2 keeps the transport on HTTP/1.1.
	DisableHTTP2 bool
}

// NewClient returns a hardened HTTP client for page, script and API calls.
func NewClient(timeout time.Duration) *http.Client {
	return NewClientWithOptions(timeout, Options{})
}

// NewClientWithOptions is NewClient with explicit transport options.
func NewClientWithOptions(timeout time.Duration, opts Options) *http.Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}

	dialTimeout := min(timeout, defaultDialTimeout)
	responseHeaderTimeout := min(timeout, defaultResponseHeaderTimeout)

	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     !opts.DisableHTTP2,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: responseHeaderTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}
	if !opts.DisableHTTP2 {
		// Health pings on idle h2 connections; ConfigureTransports only fails if already configured.
		if h2, err := http2.ConfigureTransports(base); err == nil {
			h2.ReadIdleTimeout = defaultHTTP2ReadIdleTimeout
			h2.PingTimeout = dialTimeout
		}
	}

	var rt http.RoundTripper = base
	if opts.Traced {
		rt = otelhttp.NewTransport(base)
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}
}
