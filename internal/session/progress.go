// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/kodikplay/internal/library"
	xglog "github.com/ManuGH/kodikplay/internal/log"
	"github.com/ManuGH/kodikplay/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultCheckpointInterval is how often progress is saved while playing.
const DefaultCheckpointInterval = 5 * time.Second

// Checkpoint reasons.
const (
	ReasonInterval = "interval"
	ReasonPause    = "pause"
	ReasonTeardown = "teardown"
	ReasonManual   = "manual"
)

// ProgressStore persists per-title playback positions through the library.
type ProgressStore struct {
	lib    *library.Library
	rewind float64
}

// NewProgressStore returns a store that saves time minus rewind seconds (floored at 0).
func NewProgressStore(lib *library.Library, rewind time.Duration) *ProgressStore {
	return &ProgressStore{lib: lib, rewind: max(rewind.Seconds(), 0)}
}

// Checkpoint upserts the position of titleID; the last write wins.
func (s *ProgressStore) Checkpoint(ctx context.Context, titleID string, sel Selection, t float64) error {
	return s.checkpoint(ctx, titleID, sel, t, ReasonManual)
}

func (s *ProgressStore) checkpoint(ctx context.Context, titleID string, sel Selection, t float64, reason string) error {
	err := s.lib.SaveProgress(ctx, titleID, library.Progress{
		Provider: sel.Provider,
		Dubber:   sel.Dubber,
		Episode:  sel.Episode,
		Time:     max(t-s.rewind, 0),
	})
	metrics.RecordCheckpoint(reason, err)
	return err
}

// Load returns the saved position of titleID, or nil.
func (s *ProgressStore) Load(ctx context.Context, titleID string) (*library.Progress, error) {
	return s.lib.LoadProgress(ctx, titleID)
}

// Clear forgets the saved position of titleID.
func (s *ProgressStore) Clear(ctx context.Context, titleID string) error {
	return s.lib.ClearProgress(ctx, titleID)
}

// Snapshot reports what to save: the current selection and playback time.
type Snapshot func() (Selection, float64)

// Checkpointer saves progress on a fixed interval while playing and immediately on
// pause and teardown. After Stop it writes nothing.
type Checkpointer struct {
	store     *ProgressStore
	titleID   string
	snapshot  Snapshot
	interval  time.Duration
	observers *Observers
	logger    zerolog.Logger

	mu      sync.Mutex
	playing bool
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// NewCheckpointer returns a paused checkpointer. A non-positive interval uses
// DefaultCheckpointInterval.
func NewCheckpointer(store *ProgressStore, titleID string, snapshot Snapshot, interval time.Duration, observers *Observers) *Checkpointer {
	if interval <= 0 {
		interval = DefaultCheckpointInterval
	}
	return &Checkpointer{
		store:     store,
		titleID:   titleID,
		snapshot:  snapshot,
		interval:  interval,
		observers: observers,
		logger:    xglog.WithComponent("session.progress").With().Str(xglog.FieldTitleID, titleID).Logger(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the interval loop. It is bound to ctx as well as Stop.
func (c *Checkpointer) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.stopped {
		return
	}
	c.started = true
	go c.loop(ctx)
}

func (c *Checkpointer) loop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			playing := c.playing && !c.stopped
			c.mu.Unlock()
			if playing {
				c.save(ctx, ReasonInterval)
			}
		}
	}
}

// Play enables interval checkpoints.
func (c *Checkpointer) Play() {
	c.mu.Lock()
	c.playing = true
	c.mu.Unlock()
}

// Playing reports whether interval checkpoints are enabled.
func (c *Checkpointer) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Pause disables interval checkpoints and saves immediately.
func (c *Checkpointer) Pause(ctx context.Context) error {
	c.mu.Lock()
	c.playing = false
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return nil
	}
	return c.save(ctx, ReasonPause)
}

// Stop ends the interval loop, waits for it and writes a final checkpoint. Later
// calls do nothing.
func (c *Checkpointer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.playing = false
	started := c.started
	close(c.stop)
	c.mu.Unlock()

	if started {
		<-c.done
	}
	return c.save(ctx, ReasonTeardown)
}

func (c *Checkpointer) save(ctx context.Context, reason string) error {
	sel, t := c.snapshot()
	if err := c.store.checkpoint(ctx, c.titleID, sel, t, reason); err != nil {
		c.logger.Warn().Err(err).
			Str(xglog.FieldReason, reason).
			Str(xglog.FieldEvent, "session.checkpoint_failed").
			Msg("progress checkpoint failed")
		return err
	}
	c.logger.Debug().
		Str(xglog.FieldReason, reason).
		Str("selection", sel.String()).
		Float64(xglog.FieldTime, t).
		Str(xglog.FieldEvent, "session.checkpoint").
		Msg("progress saved")
	c.observers.Emit(ctx, Event{Kind: EventProgressTick, TitleID: c.titleID, Selection: sel, Time: t, Reason: reason})
	return nil
}
