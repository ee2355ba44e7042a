// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/ManuGH/kodikplay/internal/extract"
	"github.com/ManuGH/kodikplay/internal/library"
	xglog "github.com/ManuGH/kodikplay/internal/log"
	"github.com/ManuGH/kodikplay/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
)

// DefaultPreferredDubbers is the dubber priority used when no progress exists.
var DefaultPreferredDubbers = []string{"Anilibria", "AniDub"}

// Selection addresses one episode of a Catalog.
type Selection struct {
	Provider int `json:"provider"`
	Dubber   int `json:"dubber"`
	Episode  int `json:"episode"`
}

func (s Selection) String() string {
	return fmt.Sprintf("%d/%d/%d", s.Provider, s.Dubber, s.Episode)
}

// SelectionPatch changes the axes that are non-nil.
type SelectionPatch struct {
	Provider *int
	Dubber   *int
	Episode  *int
}

// Axis names one dimension of the selection.
type Axis int

const (
	AxisProvider Axis = iota
	AxisDubber
	AxisEpisode
)

func (a Axis) String() string {
	switch a {
	case AxisProvider:
		return "provider"
	case AxisDubber:
		return "dubber"
	case AxisEpisode:
		return "episode"
	}
	return "unknown"
}

// Clamp forces every axis of sel into range for c. An empty axis clamps to 0.
func Clamp(c *Catalog, sel Selection) Selection {
	if c == nil || len(c.Providers) == 0 {
		return Selection{}
	}
	sel.Provider = clampIndex(sel.Provider, len(c.Providers))
	p := c.Providers[sel.Provider]
	sel.Dubber = clampIndex(sel.Dubber, len(p.Dubbers))
	if len(p.Dubbers) == 0 {
		sel.Episode = 0
		return sel
	}
	sel.Episode = clampIndex(sel.Episode, len(p.Dubbers[sel.Dubber].Episodes))
	return sel
}

func clampIndex(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	return min(i, n-1)
}

// InitialSelection picks the starting selection: the persisted progress when all of
// its indices are still valid, else the first dubber matching the preferred names in
// priority order (case-insensitive), else 0/0/0.
func InitialSelection(c *Catalog, progress *library.Progress, preferred []string) Selection {
	if progress != nil {
		sel := Selection{Provider: progress.Provider, Dubber: progress.Dubber, Episode: progress.Episode}
		if _, ok := c.Episode(sel); ok {
			return sel
		}
	}
	if c != nil {
		fold := cases.Fold()
		for _, name := range preferred {
			want := fold.String(name)
			for pi, p := range c.Providers {
				for di, d := range p.Dubbers {
					if fold.String(d.Name) == want {
						return Selection{Provider: pi, Dubber: di}
					}
				}
			}
		}
	}
	return Selection{}
}

// MatrixOptions configures a Matrix.
type MatrixOptions struct {
	TitleID   string
	Resolver  extract.Resolver
	Observers *Observers

	// AutoFallback advances to the next provider when one resolves to no sources.
	AutoFallback bool
	Logger       *zerolog.Logger
}

// Matrix holds the selection over a Catalog and keeps the published sources in step
// with the selected episode. Each resolve is tagged with a generation; a result whose
// generation is no longer current is dropped.
type Matrix struct {
	catalog *Catalog
	opts    MatrixOptions
	logger  zerolog.Logger

	mu      sync.Mutex
	sel     Selection
	pageURL string
	gen     uint64
	sources []extract.MediaSource
}

// NewMatrix returns a matrix positioned at initial (clamped). Nothing is resolved
// until Start or Set.
func NewMatrix(c *Catalog, initial Selection, opts MatrixOptions) *Matrix {
	m := &Matrix{catalog: c, opts: opts, sel: Clamp(c, initial)}
	if opts.Logger != nil {
		m.logger = opts.Logger.With().Str(xglog.FieldComponent, "session.matrix").Logger()
	} else {
		m.logger = xglog.WithComponent("session.matrix")
	}
	if opts.TitleID != "" {
		m.logger = m.logger.With().Str(xglog.FieldTitleID, opts.TitleID).Logger()
	}
	return m
}

// Catalog returns the catalog the matrix addresses.
func (m *Matrix) Catalog() *Catalog { return m.catalog }

// Selection returns the current selection.
func (m *Matrix) Selection() Selection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sel
}

// Episode returns the currently selected episode.
func (m *Matrix) Episode() (Episode, bool) {
	return m.catalog.Episode(m.Selection())
}

// Generation returns the generation of the latest resolve request.
func (m *Matrix) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// Sources returns the last published sources.
func (m *Matrix) Sources() []extract.MediaSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sources
}

// Start resolves the initial selection.
func (m *Matrix) Start(ctx context.Context) error {
	_, err := m.apply(ctx, func(cur Selection) Selection { return cur }, true)
	return err
}

// Set applies patch to the current selection, clamping each axis. When the selected
// page changes, the new episode is resolved and its sources are published.
func (m *Matrix) Set(ctx context.Context, patch SelectionPatch) (Selection, error) {
	return m.apply(ctx, func(cur Selection) Selection { return selectionWith(cur, patch) }, false)
}

// Step moves one axis of the current selection by delta. It stops at the ends and
// does nothing when the index would not change.
func (m *Matrix) Step(ctx context.Context, axis Axis, delta int) (Selection, error) {
	switch axis {
	case AxisProvider, AxisDubber, AxisEpisode:
	default:
		return m.Selection(), fmt.Errorf("unknown axis %d", axis)
	}
	return m.apply(ctx, func(cur Selection) Selection {
		switch axis {
		case AxisProvider:
			cur.Provider += delta
		case AxisDubber:
			cur.Dubber += delta
		case AxisEpisode:
			cur.Episode += delta
		}
		return cur
	}, false)
}

func selectionWith(sel Selection, patch SelectionPatch) Selection {
	if patch.Provider != nil {
		sel.Provider = *patch.Provider
	}
	if patch.Dubber != nil {
		sel.Dubber = *patch.Dubber
	}
	if patch.Episode != nil {
		sel.Episode = *patch.Episode
	}
	return sel
}

// apply derives the next selection from the current one and commits it, together with
// the generation bump for a page change, in one critical section.
func (m *Matrix) apply(ctx context.Context, change func(Selection) Selection, force bool) (Selection, error) {
	m.mu.Lock()
	next := Clamp(m.catalog, change(m.sel))
	ep, _ := m.catalog.Episode(next)
	changed := next != m.sel
	pageChanged := force || ep.PageURL != m.pageURL
	m.sel = next
	if !pageChanged {
		gen := m.gen
		m.mu.Unlock()
		if changed {
			m.opts.Observers.Emit(ctx, Event{Kind: EventSelectionChanged, TitleID: m.opts.TitleID, Selection: next, Generation: gen})
		}
		return next, nil
	}
	m.pageURL = ep.PageURL
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	m.opts.Observers.Emit(ctx, Event{Kind: EventSelectionChanged, TitleID: m.opts.TitleID, Selection: next, Generation: gen})

	var sources []extract.MediaSource
	var resolveErr error
	if ep.PageURL != "" && m.opts.Resolver != nil {
		sources, resolveErr = m.opts.Resolver.Resolve(ctx, ep.PageURL)
	}
	if sources == nil {
		sources = []extract.MediaSource{}
	}

	m.mu.Lock()
	if gen != m.gen {
		current := m.gen
		m.mu.Unlock()
		metrics.IncStaleResultDropped()
		m.logger.Debug().
			Uint64(xglog.FieldGeneration, gen).
			Uint64("current_generation", current).
			Str(xglog.FieldPageURL, ep.PageURL).
			Str(xglog.FieldEvent, "session.stale_result_dropped").
			Msg("dropping superseded extraction result")
		return next, nil
	}
	m.sources = sources
	m.mu.Unlock()

	if resolveErr != nil {
		m.logger.Warn().Err(resolveErr).
			Str(xglog.FieldPageURL, ep.PageURL).
			Str(xglog.FieldEvent, "session.resolve_failed").
			Msg("episode could not be resolved")
	}
	m.logger.Debug().
		Uint64(xglog.FieldGeneration, gen).
		Int("sources", len(sources)).
		Str(xglog.FieldEvent, "session.sources_resolved").
		Msg("sources published")
	m.opts.Observers.Emit(ctx, Event{
		Kind:       EventSourcesResolved,
		TitleID:    m.opts.TitleID,
		Selection:  next,
		Generation: gen,
		Sources:    sources,
	})

	if len(sources) == 0 && m.opts.AutoFallback && next.Provider+1 < len(m.catalog.Providers) {
		m.logger.Info().
			Int(xglog.FieldProvider, next.Provider).
			Str(xglog.FieldEvent, "session.provider_fallback").
			Msg("no sources, falling back to next provider")
		return m.Step(ctx, AxisProvider, 1)
	}
	if resolveErr != nil {
		return next, fmt.Errorf("resolve %s: %w", ep.PageURL, resolveErr)
	}
	return next, nil
}
