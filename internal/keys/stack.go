// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package keys routes key chords to the most recently registered handler.
package keys

import (
	"sync"

	"github.com/ManuGH/kodikplay/internal/metrics"
)

// Handler runs synchronously on dispatch and must not block.
type Handler func(Event)

// Source is the single physical listener feeding a Stack.
type Source interface {
	Attach(dispatch func(Event))
	Detach()
}

type entry struct {
	handler Handler
}

// Stack keeps one LIFO handler stack per normalized chord. Only the top handler of a
// chord runs; the ones below it are shadowed until it unsubscribes.
type Stack struct {
	mu        sync.Mutex
	stacks    map[string][]*entry
	source    Source
	listening bool
}

// NewStack returns a stack that attaches source on first registration. source may be nil.
func NewStack(source Source) *Stack {
	return &Stack{stacks: make(map[string][]*entry), source: source}
}

// Subscribe pushes h for combo and returns its unsubscribe func. An invalid chord
// subscribes nothing and returns a no-op.
func (s *Stack) Subscribe(combo string, h Handler) func() {
	chord := Normalize(combo)
	if chord == "" || h == nil {
		return func() {}
	}
	e := &entry{handler: h}

	s.mu.Lock()
	s.stacks[chord] = append(s.stacks[chord], e)
	attach := !s.listening && s.source != nil
	s.listening = true
	s.mu.Unlock()

	if attach {
		s.source.Attach(func(ev Event) { s.Dispatch(ev) })
	}

	var once sync.Once
	return func() { once.Do(func() { s.remove(chord, e) }) }
}

// SubscribeMany subscribes h to every combo; the returned func undoes all of them.
func (s *Stack) SubscribeMany(combos []string, h Handler) func() {
	unsubs := make([]func(), 0, len(combos))
	for _, combo := range combos {
		unsubs = append(unsubs, s.Subscribe(combo, h))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (s *Stack) remove(chord string, e *entry) {
	s.mu.Lock()
	stack := s.stacks[chord]
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == e {
			stack = append(stack[:i], stack[i+1:]...)
			break
		}
	}
	if len(stack) == 0 {
		delete(s.stacks, chord)
	} else {
		s.stacks[chord] = stack
	}
	detach := s.listening && len(s.stacks) == 0
	if detach {
		s.listening = false
	}
	s.mu.Unlock()

	if detach && s.source != nil {
		s.source.Detach()
	}
}

// Dispatch invokes the top handler for the event's chord and reports whether one ran.
func (s *Stack) Dispatch(ev Event) bool {
	chord := NormalizeEvent(ev)
	if chord == "" {
		return false
	}
	s.mu.Lock()
	stack := s.stacks[chord]
	var top Handler
	if len(stack) > 0 {
		top = stack[len(stack)-1].handler
	}
	s.mu.Unlock()

	if top == nil {
		return false
	}
	metrics.IncCommandDispatch(chord)
	top(ev)
	return true
}

// Depth returns how many handlers are stacked on combo.
func (s *Stack) Depth(combo string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stacks[Normalize(combo)])
}

// Listening reports whether the source is attached.
func (s *Stack) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listening
}
