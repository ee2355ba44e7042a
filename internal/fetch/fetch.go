// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fetch issues the plain GET and form POST requests the extractors need.
// It returns status and body text and does no parsing.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/kodikplay/internal/platform/httpx"
	platformnet "github.com/ManuGH/kodikplay/internal/platform/net"
	"github.com/ManuGH/kodikplay/internal/resilience"
	"github.com/ManuGH/kodikplay/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultRateLimit = 5
	defaultBurst     = 10
	// MaxBodyBytes caps how much of a response body is kept.
	MaxBodyBytes = 8 << 20
)

// errServerStatus marks a 5xx response as a breaker failure; the response is still returned.
var errServerStatus = errors.New("upstream server error")

// Response is the status and body text of one request.
type Response struct {
	Status int
	Body   string
	// URL is the final URL after redirects.
	URL    string
}

// OK reports a 2xx status.
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Fetcher is the page-fetching contract consumed by extractors.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (Response, error)
	PostForm(ctx context.Context, rawURL string, form url.Values, header http.Header) (Response, error)
}

// Options configures an HTTP fetcher.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// RateLimit paces requests per host; zero uses the default.
	RateLimit rate.Limit
	Burst     int
	Client    *http.Client

	// BreakerThreshold consecutive failures open a host's breaker; zero uses the default.
	BreakerThreshold int
	// BreakerReset is how long an open breaker waits before probing again.
	BreakerReset time.Duration
}

// HTTPFetcher implements Fetcher over net/http with per-host pacing and circuit breaking.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	limit     rate.Limit
	burst     int

	breakerThreshold int
	breakerReset     time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	breakers map[string]*resilience.CircuitBreaker
}

// New builds an HTTPFetcher.
func New(opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	client := opts.Client
	if client == nil {
		client = httpx.NewClientWithOptions(opts.Timeout, httpx.Options{Traced: true})
	}
	return &HTTPFetcher{
		client:    client,
		userAgent: opts.UserAgent,
		limit:     opts.RateLimit,
		burst:     opts.Burst,
		limiters:  make(map[string]*rate.Limiter),
		breakers:  make(map[string]*resilience.CircuitBreaker),

		breakerThreshold: opts.BreakerThreshold,
		breakerReset:     opts.BreakerReset,
	}
}

// Get fetches rawURL, following redirects.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) (Response, error) {
	return f.do(ctx, http.MethodGet, rawURL, nil, nil)
}

// PostForm posts form as application/x-www-form-urlencoded with the extra headers.
func (f *HTTPFetcher) PostForm(ctx context.Context, rawURL string, form url.Values, header http.Header) (Response, error) {
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()), h)
}

func (f *HTTPFetcher) do(ctx context.Context, method, rawURL string, body io.Reader, header http.Header) (Response, error) {
	u, ok := platformnet.ParseDirectHTTPURL(rawURL)
	if !ok {
		return Response{}, fmt.Errorf("fetch: not a direct http(s) url: %s", platformnet.SanitizeURL(rawURL))
	}
	hostKey, err := platformnet.HostKey(u)
	if err != nil {
		return Response{}, fmt.Errorf("fetch: %w", err)
	}

	ctx, span := telemetry.Tracer("kodikplay.fetch").Start(ctx, "fetch."+strings.ToLower(method), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("http.host", hostKey))

	if err := f.limiterFor(hostKey).Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Response{}, fmt.Errorf("fetch: rate wait: %w", err)
	}

	var resp Response
	err = f.breakerFor(hostKey).Execute(func() error {
		var err error
		resp, err = f.send(ctx, method, rawURL, body, header)
		if err == nil && resp.Status >= http.StatusInternalServerError {
			return errServerStatus
		}
		return err
	})
	switch {
	case errors.Is(err, errServerStatus):
		err = nil
	case errors.Is(err, resilience.ErrCircuitOpen):
		err = fmt.Errorf("fetch: host %s: %w", hostKey, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Response{}, err
	}

	span.SetAttributes(telemetry.HTTPAttributes(method, platformnet.SanitizeURL(rawURL), resp.Status)...)
	if resp.Status >= http.StatusBadRequest {
		span.SetStatus(codes.Error, http.StatusText(resp.Status))
	}
	return resp, nil
}

func (f *HTTPFetcher) send(ctx context.Context, method, rawURL string, body io.Reader, header http.Header) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return Response{}, fmt.Errorf("fetch: build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if f.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("fetch: %s %s: %w", method, platformnet.SanitizeURL(rawURL), err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("fetch: read body: %w", err)
	}

	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return Response{Status: resp.StatusCode, Body: string(data), URL: final}, nil
}

func (f *HTTPFetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(f.limit, f.burst)
		f.limiters[host] = l
	}
	return l
}

func (f *HTTPFetcher) breakerFor(host string) *resilience.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.breakers[host]
	if !ok {
		b = resilience.NewCircuitBreaker(host, f.breakerThreshold, f.breakerReset,
			resilience.WithFailurePredicate(countsAgainstHost))
		f.breakers[host] = b
	}
	return b
}

// OpenHosts lists hosts whose breaker currently rejects requests.
func (f *HTTPFetcher) OpenHosts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var open []string
	for host, b := range f.breakers {
		if b.State() == resilience.StateOpen {
			open = append(open, host)
		}
	}
	slices.Sort(open)
	return open
}

// countsAgainstHost excludes cancellations by the caller.
func countsAgainstHost(err error) bool {
	return !errors.Is(err, context.Canceled)
}
