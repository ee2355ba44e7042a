// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session runs one playback session: the provider × dubber × episode
// selection, its resolved sources, periodic progress checkpoints and skip segments.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/kodikplay/internal/extract"
	xglog "github.com/ManuGH/kodikplay/internal/log"
	"github.com/ManuGH/kodikplay/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config wires a Session.
type Config struct {
	TitleID            string
	Catalog            *Catalog
	Resolver           extract.Resolver
	Progress           *ProgressStore
	PreferredDubbers   []string
	CheckpointInterval time.Duration
	AutoFallback       bool
}

// Session ties the selection matrix, skip tracker and checkpointer of one title
// together and publishes their events through Observers.
type Session struct {
	ID        string
	TitleID   string
	Observers *Observers

	matrix   *Matrix
	tracker  *Tracker
	progress *ProgressStore
	ckpt     *Checkpointer
	logger   zerolog.Logger

	mu       sync.Mutex
	time     float64
	startAt  float64
	episode  string
	gen      uint64
	stopOnce sync.Once
}

// Open loads saved progress, picks the initial selection, resolves it and starts the
// checkpointer. StartTime reports where playback should resume.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.TitleID == "" {
		return nil, fmt.Errorf("session: empty title id")
	}
	if cfg.Progress == nil {
		return nil, fmt.Errorf("session: progress store is required")
	}
	preferred := cfg.PreferredDubbers
	if preferred == nil {
		preferred = DefaultPreferredDubbers
	}

	saved, err := cfg.Progress.Load(ctx, cfg.TitleID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	initial := InitialSelection(cfg.Catalog, saved, preferred)

	s := &Session{
		ID:        uuid.NewString(),
		TitleID:   cfg.TitleID,
		Observers: &Observers{},
		progress:  cfg.Progress,
		tracker:   NewTracker(nil),
	}
	s.logger = xglog.WithComponent("session").With().
		Str(xglog.FieldSessionID, s.ID).
		Str(xglog.FieldTitleID, cfg.TitleID).
		Logger()

	if saved != nil && initial == (Selection{Provider: saved.Provider, Dubber: saved.Dubber, Episode: saved.Episode}) {
		s.startAt = saved.Time
		s.time = saved.Time
	}

	s.matrix = NewMatrix(cfg.Catalog, initial, MatrixOptions{
		TitleID:      cfg.TitleID,
		Resolver:     cfg.Resolver,
		Observers:    s.Observers,
		AutoFallback: cfg.AutoFallback,
		Logger:       &s.logger,
	})
	s.Observers.Add(ObserverFunc(s.onSelection))
	s.ckpt = NewCheckpointer(cfg.Progress, cfg.TitleID, s.snapshot, cfg.CheckpointInterval, s.Observers)

	s.logger.Info().
		Str("selection", initial.String()).
		Float64(xglog.FieldTime, s.startAt).
		Bool("restored", s.startAt > 0).
		Str(xglog.FieldEvent, "session.open").
		Msg("session opened")

	if err := s.matrix.Start(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("initial resolve failed")
	}
	s.ckpt.Start(context.WithoutCancel(ctx))
	return s, nil
}

// onSelection resets the tracker and position when the episode changes. Events older
// than the last one applied are ignored.
func (s *Session) onSelection(_ context.Context, ev Event) {
	if ev.Kind != EventSelectionChanged {
		return
	}
	ep, _ := s.matrix.catalog.Episode(ev.Selection)
	s.mu.Lock()
	if ev.Generation < s.gen {
		s.mu.Unlock()
		return
	}
	s.gen = ev.Generation
	changed := ep.PageURL != s.episode
	first := s.episode == ""
	s.episode = ep.PageURL
	if changed && !first {
		s.time = 0
	}
	s.mu.Unlock()
	if changed {
		s.tracker.Reset(ep.Skips)
	}
}

// snapshot pairs the current selection with the playback time. A time recorded for
// another episode is not carried over to a selection whose change is still in flight.
func (s *Session) snapshot() (Selection, float64) {
	sel := s.matrix.Selection()
	ep, _ := s.matrix.catalog.Episode(sel)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.episode != "" && ep.PageURL != s.episode {
		return sel, 0
	}
	return sel, s.time
}

// Matrix exposes the selection matrix.
func (s *Session) Matrix() *Matrix { return s.matrix }

// StartTime is the resume position found at Open, 0 when starting fresh.
func (s *Session) StartTime() float64 { return s.startAt }

// Time is the last reported playback time.
func (s *Session) Time() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.time
}

// Tick records the playback time and publishes segment edges.
func (s *Session) Tick(ctx context.Context, t float64) {
	s.mu.Lock()
	s.time = max(t, 0)
	s.mu.Unlock()

	tr, ok := s.tracker.Update(t)
	if !ok {
		return
	}
	sel := s.matrix.Selection()
	if tr.From != nil {
		metrics.IncSegmentTransition(tr.From.Kind, "exit")
		s.Observers.Emit(ctx, Event{Kind: EventSegmentExited, TitleID: s.TitleID, Selection: sel, Time: t, Segment: tr.From})
	}
	if tr.To != nil {
		metrics.IncSegmentTransition(tr.To.Kind, "enter")
		s.logger.Debug().Str(xglog.FieldSegment, tr.To.Kind).Float64(xglog.FieldTime, t).Msg("segment entered")
		s.Observers.Emit(ctx, Event{Kind: EventSegmentEntered, TitleID: s.TitleID, Selection: sel, Time: t, Segment: tr.To})
	}
}

// ActiveSegment is the visible skip segment, or nil.
func (s *Session) ActiveSegment() *SkipSegment { return s.tracker.Active() }

// DismissSegment hides the active segment until playback leaves it.
func (s *Session) DismissSegment() { s.tracker.Dismiss() }

// Skip returns the time that skips the active segment.
func (s *Session) Skip() (float64, bool) {
	seg := s.tracker.Active()
	if seg == nil {
		return 0, false
	}
	return SkipTarget(*seg), true
}

// Play enables interval checkpoints.
func (s *Session) Play() { s.ckpt.Play() }

// Playing reports whether playback is running.
func (s *Session) Playing() bool { return s.ckpt.Playing() }

// Pause stops interval checkpoints and saves immediately.
func (s *Session) Pause(ctx context.Context) error { return s.ckpt.Pause(ctx) }

// Select applies a selection patch.
func (s *Session) Select(ctx context.Context, patch SelectionPatch) (Selection, error) {
	return s.matrix.Set(ctx, patch)
}

// Step moves one selection axis by delta.
func (s *Session) Step(ctx context.Context, axis Axis, delta int) (Selection, error) {
	return s.matrix.Step(ctx, axis, delta)
}

// Close stops the checkpointer after a final save. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		err = s.ckpt.Stop(ctx)
		s.logger.Info().Str(xglog.FieldEvent, "session.close").Msg("session closed")
	})
	return err
}
