// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/kodikplay/internal/extract"
	"github.com/ManuGH/kodikplay/internal/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func openTestSession(t *testing.T, store *ProgressStore) *Session {
	t.Helper()
	c := testCatalog()
	c.Providers[0].Dubbers[0].Episodes[0].Skips = []SkipSegment{{Kind: "opening", Start: 60, Length: 30}}
	s, err := Open(context.Background(), Config{
		TitleID:            "title-1",
		Catalog:            c,
		Resolver:           echoResolver(),
		Progress:           store,
		PreferredDubbers:   []string{"AniDub"},
		CheckpointInterval: time.Hour,
	})
	require.NoError(t, err)
	return s
}

func TestSessionOpenFresh(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := openTestSession(t, newProgressStore())
	defer s.Close(context.Background())

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, Selection{}, s.Matrix().Selection())
	assert.Zero(t, s.StartTime())
	require.Len(t, s.Matrix().Sources(), 1)
}

func TestSessionResumesSavedProgress(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	ctx := context.Background()
	store := newProgressStore()
	require.NoError(t, store.Checkpoint(ctx, "title-1", Selection{Dubber: 1, Episode: 1}, 123.5))

	s := openTestSession(t, store)
	assert.Equal(t, Selection{Dubber: 1, Episode: 1}, s.Matrix().Selection())
	assert.Equal(t, 123.5, s.StartTime())
	assert.Equal(t, 123.5, s.Time())

	s.Tick(ctx, 130)
	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))

	p, err := store.Load(ctx, "title-1")
	require.NoError(t, err)
	assert.Equal(t, 130.0, p.Time)
	assert.Equal(t, 1, p.Episode)
}

func TestSessionSegmentEvents(t *testing.T) {
	ctx := context.Background()
	s := openTestSession(t, newProgressStore())
	defer s.Close(ctx)
	rec := &recorder{}
	s.Observers.Add(rec)

	s.Tick(ctx, 10)
	s.Tick(ctx, 61)
	s.Tick(ctx, 62)
	target, ok := s.Skip()
	require.True(t, ok)
	assert.Equal(t, 90.0, target)

	s.DismissSegment()
	assert.Nil(t, s.ActiveSegment())
	_, ok = s.Skip()
	assert.False(t, ok)

	s.Tick(ctx, 90)
	assert.Equal(t, []EventKind{EventSegmentEntered, EventSegmentExited}, rec.kinds())
	entered := rec.of(EventSegmentEntered)
	assert.Equal(t, "opening", entered[0].Segment.Kind)
}

func TestSessionEpisodeChangeResetsPosition(t *testing.T) {
	ctx := context.Background()
	s := openTestSession(t, newProgressStore())
	defer s.Close(ctx)

	s.Tick(ctx, 70)
	require.NotNil(t, s.ActiveSegment())

	_, err := s.Step(ctx, AxisEpisode, 1)
	require.NoError(t, err)
	assert.Zero(t, s.Time())
	assert.Nil(t, s.ActiveSegment())
	assert.Equal(t, pageURL("k", "ad", "2"), s.Matrix().Sources()[0].URL)
}

type fakePlayer struct {
	mu      sync.Mutex
	toggles int
	seeks   []float64
}

func (p *fakePlayer) TogglePause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toggles++
}

func (p *fakePlayer) Seek(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seeks = append(p.seeks, t)
}

func (p *fakePlayer) seekLog() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64(nil), p.seeks...)
}

func TestBindDefaultCommands(t *testing.T) {
	ctx := context.Background()
	s := openTestSession(t, newProgressStore())
	defer s.Close(ctx)
	stack := keys.NewStack(nil)
	player := &fakePlayer{}

	unbind := BindDefaultCommands(ctx, stack, s, player)

	require.True(t, stack.Dispatch(keys.Event{Code: "Space"}))
	assert.Equal(t, 1, player.toggles)

	s.Tick(ctx, 65)
	stack.Dispatch(keys.Event{Code: "ArrowLeft"})
	stack.Dispatch(keys.Event{Code: "Enter"})
	assert.Equal(t, []float64{55, 90}, player.seekLog())

	stack.Dispatch(keys.Event{Code: "Period"})
	require.Eventually(t, func() bool {
		return s.Matrix().Selection() == Selection{Episode: 1}
	}, time.Second, 5*time.Millisecond)

	stack.Dispatch(keys.Event{Code: "Period", Shift: true})
	require.Eventually(t, func() bool {
		return s.Matrix().Selection() == Selection{Dubber: 1, Episode: 1}
	}, time.Second, 5*time.Millisecond)

	stack.Dispatch(keys.Event{Code: "Period", Ctrl: true})
	require.Eventually(t, func() bool {
		return s.Matrix().Selection() == Selection{Provider: 1}
	}, time.Second, 5*time.Millisecond)

	unbind()
	assert.False(t, stack.Dispatch(keys.Event{Code: "Space"}))
	assert.False(t, stack.Listening())
}

func TestSnapshotDropsTimeOfPreviousEpisode(t *testing.T) {
	ctx := context.Background()
	s := openTestSession(t, newProgressStore())
	defer s.Close(ctx)

	s.Tick(ctx, 70)
	sel, tm := s.snapshot()
	assert.Equal(t, Selection{}, sel)
	assert.InDelta(t, 70, tm, 1e-9)

	// selection committed, change event not yet delivered
	s.matrix.mu.Lock()
	s.matrix.sel = Selection{Episode: 1}
	s.matrix.mu.Unlock()

	sel, tm = s.snapshot()
	assert.Equal(t, Selection{Episode: 1}, sel)
	assert.Zero(t, tm)
}

func TestSessionIgnoresOutdatedSelectionEvents(t *testing.T) {
	ctx := context.Background()
	s := openTestSession(t, newProgressStore())
	defer s.Close(ctx)

	_, err := s.Step(ctx, AxisEpisode, 1)
	require.NoError(t, err)
	s.Tick(ctx, 30)

	s.onSelection(ctx, Event{Kind: EventSelectionChanged, Selection: Selection{}, Generation: 1})
	assert.InDelta(t, 30, s.Time(), 1e-9)
	_, tm := s.snapshot()
	assert.InDelta(t, 30, tm, 1e-9)
}

func TestBindDefaultCommandsAppliesStepsInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	ctx := context.Background()
	blocked := pageURL("k", "ad", "2")
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	res := extract.ResolverFunc(func(ctx context.Context, u string) ([]extract.MediaSource, error) {
		if u == blocked {
			once.Do(func() { close(started) })
			<-release
		}
		return echoResolver().Resolve(ctx, u)
	})
	s, err := Open(ctx, Config{
		TitleID:            "title-1",
		Catalog:            testCatalog(),
		Resolver:           res,
		Progress:           newProgressStore(),
		PreferredDubbers:   []string{"AniDub"},
		CheckpointInterval: time.Hour,
	})
	require.NoError(t, err)
	stack := keys.NewStack(nil)
	unbind := BindDefaultCommands(ctx, stack, s, &fakePlayer{})

	stack.Dispatch(keys.Event{Code: "Period"})
	<-started
	stack.Dispatch(keys.Event{Code: "Comma"})

	assert.Never(t, func() bool {
		return s.Matrix().Selection() != Selection{Episode: 1}
	}, 50*time.Millisecond, 5*time.Millisecond)

	close(release)
	require.Eventually(t, func() bool {
		return s.Matrix().Selection() == Selection{} && len(s.Matrix().Sources()) == 1 &&
			s.Matrix().Sources()[0].URL == pageURL("k", "ad", "1")
	}, time.Second, 5*time.Millisecond)

	unbind()
	require.NoError(t, s.Close(ctx))
}
