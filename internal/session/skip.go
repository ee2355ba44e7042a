// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import "sync"

// Transition is a change of the active segment. From or To is nil when no segment
// was or is active.
type Transition struct {
	From *SkipSegment
	To   *SkipSegment
}

// Tracker reports changes of the active skip segment as playback time advances.
// Repeated ticks inside the same segment report nothing.
type Tracker struct {
	mu        sync.Mutex
	segments  []SkipSegment
	active    int
	dismissed bool
}

// NewTracker returns a tracker over segments.
func NewTracker(segments []SkipSegment) *Tracker {
	t := &Tracker{}
	t.Reset(segments)
	return t
}

// Reset replaces the segment list, e.g. on episode change, and clears the active segment.
func (t *Tracker) Reset(segments []SkipSegment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.segments = make([]SkipSegment, 0, len(segments))
	for _, s := range segments {
		if s.Length > 0 {
			t.segments = append(t.segments, s)
		}
	}
	t.active = -1
	t.dismissed = false
}

// Update moves the tracker to time now and returns the transition, if any.
func (t *Tracker) Update(now float64) (Transition, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := -1
	for i, s := range t.segments {
		if s.Contains(now) {
			next = i
			break
		}
	}
	if next == t.active {
		return Transition{}, false
	}
	tr := Transition{From: t.segmentAt(t.active), To: t.segmentAt(next)}
	t.active = next
	t.dismissed = false
	return tr, true
}

func (t *Tracker) segmentAt(i int) *SkipSegment {
	if i < 0 {
		return nil
	}
	s := t.segments[i]
	return &s
}

// Active returns the active segment unless it was dismissed.
func (t *Tracker) Active() *SkipSegment {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dismissed {
		return nil
	}
	return t.segmentAt(t.active)
}

// Dismiss hides the active segment until playback leaves it.
func (t *Tracker) Dismiss() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active >= 0 {
		t.dismissed = true
	}
}

// SkipTarget is the playback time that skips seg.
func SkipTarget(seg SkipSegment) float64 { return seg.End() }
