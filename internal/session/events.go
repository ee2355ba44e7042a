// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"sync"

	"github.com/ManuGH/kodikplay/internal/extract"
)

// EventKind is the closed set of session events.
type EventKind string

const (
	EventSelectionChanged EventKind = "selection_changed"
	EventSourcesResolved  EventKind = "sources_resolved"
	EventProgressTick     EventKind = "progress_tick"
	EventSegmentEntered   EventKind = "segment_entered"
	EventSegmentExited    EventKind = "segment_exited"
)

// Event carries the fields relevant to its Kind; the rest are zero.
type Event struct {
	Kind       EventKind
	TitleID    string
	Selection  Selection
	Generation uint64
	Sources    []extract.MediaSource
	Time       float64
	Reason     string
	Segment    *SkipSegment
}

// Observer receives session events synchronously on the emitting goroutine.
type Observer interface {
	OnEvent(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) OnEvent(ctx context.Context, ev Event) { f(ctx, ev) }

// Observers is the single fan-out list for session events. The zero value is ready to use.
type Observers struct {
	mu   sync.RWMutex
	list []*observerEntry
}

type observerEntry struct{ obs Observer }

// Add registers obs and returns a func removing it.
func (o *Observers) Add(obs Observer) func() {
	e := &observerEntry{obs: obs}
	o.mu.Lock()
	o.list = append(o.list, e)
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			for i, x := range o.list {
				if x == e {
					o.list = append(o.list[:i:i], o.list[i+1:]...)
					return
				}
			}
		})
	}
}

// Emit delivers ev to every observer in registration order. Observers may add or
// remove observers while handling an event.
func (o *Observers) Emit(ctx context.Context, ev Event) {
	if o == nil {
		return
	}
	o.mu.RLock()
	list := append([]*observerEntry(nil), o.list...)
	o.mu.RUnlock()
	for _, e := range list {
		e.obs.OnEvent(ctx, ev)
	}
}
