// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package kodik resolves episode pages of the kodik.info player into media sources.
package kodik

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ManuGH/kodikplay/internal/extract"
	"github.com/ManuGH/kodikplay/internal/fetch"
	"github.com/ManuGH/kodikplay/internal/fsm"
	xglog "github.com/ManuGH/kodikplay/internal/log"
	"github.com/ManuGH/kodikplay/internal/metrics"
	"github.com/ManuGH/kodikplay/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Name identifies this extractor in logs and the registry.
const Name = "kodik"

const (
	notFoundMarker  = `<div class="message">Видео не найдено</div>`
	unhandledMarker = "An unhandled lowlevel error occurred"
	acceptHeader    = "application/json, text/javascript, */*; q=0.01"
)

var pageURLPattern = regexp.MustCompile(`^https://kodik\.info`)

// Options configures an Extractor.
type Options struct {
	Fetcher   fetch.Fetcher
	Endpoints *EndpointResolver
	Logger    *zerolog.Logger
}

// Result is the full outcome of one run.
type Result struct {
	Sources      []extract.MediaSource
	State        State
	Err          *StageError
	StaleRetried bool
}

// Extractor implements extract.Extractor for kodik.info pages.
type Extractor struct {
	fetcher   fetch.Fetcher
	endpoints *EndpointResolver
	logger    zerolog.Logger
}

var _ extract.Extractor = (*Extractor)(nil)

// New builds an Extractor. A nil Fetcher or Endpoints gets a fresh default.
func New(opts Options) *Extractor {
	e := &Extractor{
		fetcher:   opts.Fetcher,
		endpoints: opts.Endpoints,
	}
	if e.fetcher == nil {
		e.fetcher = fetch.New(fetch.Options{})
	}
	if e.endpoints == nil {
		e.endpoints = NewEndpointResolver(DefaultAPIPath)
	}
	if opts.Logger != nil {
		e.logger = opts.Logger.With().Str(xglog.FieldComponent, "extract.kodik").Logger()
	} else {
		e.logger = xglog.WithComponent("extract.kodik")
	}
	return e
}

// Name implements extract.Extractor.
func (e *Extractor) Name() string { return Name }

// Accepts reports whether pageURL belongs to this provider.
func (e *Extractor) Accepts(pageURL string) bool {
	return pageURLPattern.MatchString(pageURL)
}

// Endpoints exposes the shared endpoint cache.
func (e *Extractor) Endpoints() *EndpointResolver { return e.endpoints }

// Resolve returns the media sources of pageURL. Only a foreign URL is an error;
// every other failure yields an empty slice.
func (e *Extractor) Resolve(ctx context.Context, pageURL string) ([]extract.MediaSource, error) {
	res, err := e.ResolveDetailed(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return res.Sources, nil
}

type run struct {
	pageURL      string
	host         string
	staleRetried bool
	logger       zerolog.Logger
	machine      *fsm.Machine[State, Event]
}

// ResolveDetailed is Resolve with the terminal state and failure attached.
func (e *Extractor) ResolveDetailed(ctx context.Context, pageURL string) (Result, error) {
	start := time.Now()
	if !e.Accepts(pageURL) {
		metrics.RecordExtractRun("routing", "routing", time.Since(start))
		return Result{State: StateFailed}, &extract.RoutingError{Extractor: Name, URL: pageURL}
	}

	u, err := url.Parse(pageURL)
	if err != nil {
		metrics.RecordExtractRun("routing", "routing", time.Since(start))
		return Result{State: StateFailed}, &extract.RoutingError{Extractor: Name, URL: pageURL}
	}

	r := &run{
		pageURL: pageURL,
		host:    u.Hostname(),
		logger:  e.logger.With().Str(xglog.FieldPageURL, pageURL).Str(xglog.FieldHost, u.Hostname()).Logger(),
	}
	r.machine = fsm.FromTable(StateIdle, pipelineTable, func(from, to State, ev Event) {
		r.logger.Debug().
			Str(xglog.FieldOldState, string(from)).
			Str(xglog.FieldNewState, string(to)).
			Str(xglog.FieldEvent, string(ev)).
			Msg("extract state transition")
	})
	ctx = context.WithValue(ctx, runKey{}, r)

	ctx, span := telemetry.Tracer("kodikplay.extract").Start(ctx, "kodik.resolve")
	defer span.End()
	span.SetAttributes(telemetry.ExtractAttributes(Name, r.host)...)

	sources, serr := e.execute(ctx, r)
	res := Result{Sources: sources, State: r.machine.State(), Err: serr, StaleRetried: r.staleRetried}
	span.SetAttributes(attribute.Bool(telemetry.StaleRetriedKey, r.staleRetried))

	if serr != nil {
		_, _ = r.machine.Fire(ctx, EventFail)
		res.State = StateFailed
		res.Sources = []extract.MediaSource{}

		ev := r.logger.Warn().
			Str(xglog.FieldStage, string(serr.Stage)).
			Str(xglog.FieldReason, serr.Reason).
			Str(xglog.FieldEvent, "kodik.resolve_failed")
		if serr.Err != nil {
			ev = ev.Err(serr.Err)
		}
		ev.Msg("extraction produced no sources")

		telemetry.RecordFailure(span, string(serr.Stage), serr.Reason, serr.Err)
		metrics.RecordExtractRun("empty", string(serr.Stage), time.Since(start))
		return res, nil
	}

	span.SetAttributes(attribute.Int(telemetry.SourceCountKey, len(sources)))
	span.SetStatus(codes.Ok, "")
	metrics.RecordExtractRun("ok", string(StateDone), time.Since(start))
	metrics.ObserveSourcesResolved(len(sources))
	r.logger.Info().
		Int("sources", len(sources)).
		Bool("stale_retried", r.staleRetried).
		Str(xglog.FieldEvent, "kodik.resolved").
		Msg("extraction succeeded")
	return res, nil
}

func (e *Extractor) execute(ctx context.Context, r *run) ([]extract.MediaSource, *StageError) {
	fire := func(ev Event) *StageError {
		if _, err := r.machine.Fire(ctx, ev); err != nil {
			return &StageError{Stage: StageFSM, Reason: "transition rejected", Kind: ErrValidation, Err: err}
		}
		return nil
	}

	if serr := fire(EventStart); serr != nil {
		return nil, serr
	}
	page, err := e.fetcher.Get(ctx, r.pageURL)
	if err != nil {
		return nil, transportErr(StagePage, "page request failed", err)
	}
	if serr := fire(EventPageFetched); serr != nil {
		return nil, serr
	}

	// Markers first: a 500 page carries the more specific reason in its body.
	if strings.Contains(page.Body, notFoundMarker) {
		return nil, contentErr("video not found")
	}
	if page.Status == http.StatusInternalServerError && strings.Contains(page.Body, unhandledMarker) {
		return nil, contentErr("unhandled lowlevel error")
	}
	if !page.OK() {
		return nil, transportErr(StagePage, fmt.Sprintf("page status %d", page.Status), nil)
	}
	if serr := fire(EventPageClean); serr != nil {
		return nil, serr
	}

	doc := ExtractDocument(page.Body)
	if doc.URLParamsErr != nil {
		r.logger.Debug().Err(doc.URLParamsErr).Msg("urlParams block is not valid JSON")
	}
	if serr := fire(EventPayloadExtracted); serr != nil {
		return nil, serr
	}

	if missing := MissingFields(doc.Payload); len(missing) > 0 {
		for _, f := range missing {
			r.logger.Warn().Str(xglog.FieldStage, string(StagePayload)).Msgf("missing field: %s", f)
		}
		return nil, validationErr(StagePayload, "missing fields: "+strings.Join(missing, ", "), nil)
	}
	if !ValidScriptPath(doc.ScriptPath) {
		return nil, validationErr(StagePayload, "invalid companion script path", nil)
	}
	r.logger.Debug().
		Str(xglog.FieldScriptPath, doc.ScriptPath).
		Interface("strategies", doc.Matched).
		Msg("payload extracted")

	scriptURL := "https://" + r.host + doc.ScriptPath
	if _, ok := e.endpoints.Cached(); !ok {
		if serr := fire(EventEndpointMissing); serr != nil {
			return nil, serr
		}
		if serr := e.refreshEndpoint(ctx, r, scriptURL); serr != nil {
			return nil, serr
		}
		if serr := fire(EventScriptResolved); serr != nil {
			return nil, serr
		}
	} else if serr := fire(EventEndpointCached); serr != nil {
		return nil, serr
	}

	resp, err := e.post(ctx, r, doc.Payload)
	if err != nil {
		return nil, transportErr(StageAPI, "api request failed", err)
	}
	if !resp.OK() {
		// The API path is versioned; a non-OK answer usually means the cache is stale.
		r.logger.Info().Int(xglog.FieldStatus, resp.Status).Msg("api rejected request, refreshing endpoint")
		if serr := fire(EventAPIStale); serr != nil {
			return nil, serr
		}
		if serr := e.refreshEndpoint(ctx, r, scriptURL); serr != nil {
			return nil, serr
		}
		if serr := fire(EventScriptResolved); serr != nil {
			return nil, serr
		}
		resp, err = e.post(ctx, r, doc.Payload)
		if err != nil {
			return nil, transportErr(StageAPI, "api request failed", err)
		}
		if !resp.OK() {
			return nil, transportErr(StageAPI, fmt.Sprintf("api status %d", resp.Status), nil)
		}
	}
	if serr := fire(EventAPIResponded); serr != nil {
		return nil, serr
	}

	links, err := ParseResponse([]byte(resp.Body))
	if err != nil {
		var serr *StageError
		if !errors.As(err, &serr) {
			serr = validationErr(StageJSON, "malformed api response", err)
		}
		return nil, serr
	}
	if serr := fire(EventResponseValid); serr != nil {
		return nil, serr
	}

	sources := MapSources(links)
	if len(sources) == 0 {
		return nil, validationErr(StageMap, "no decodable sources", nil)
	}
	if serr := fire(EventMapped); serr != nil {
		return nil, serr
	}
	return sources, nil
}

func (e *Extractor) refreshEndpoint(ctx context.Context, r *run, scriptURL string) *StageError {
	updated, err := e.endpoints.Refresh(ctx, e.fetcher, scriptURL)
	if err != nil {
		return transportErr(StageScript, "companion script request failed", err)
	}
	r.logger.Debug().
		Bool("updated", updated).
		Str(xglog.FieldAPIPath, e.endpoints.Path()).
		Msg("endpoint refreshed")
	return nil
}

func (e *Extractor) post(ctx context.Context, r *run, p Payload) (fetch.Response, error) {
	header := http.Header{}
	header.Set("Origin", "https://"+r.host)
	header.Set("Referer", r.pageURL)
	header.Set("Accept", acceptHeader)
	return e.fetcher.PostForm(ctx, e.endpoints.APIURL(r.host), p.Form(), header)
}
