// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"sync"

	"github.com/ManuGH/kodikplay/internal/keys"
	xglog "github.com/ManuGH/kodikplay/internal/log"
)

// SeekStep is how far the arrow keys seek, in seconds.
const SeekStep = 10.0

// stepQueueSize bounds selection steps waiting behind a running resolve.
const stepQueueSize = 16

type stepRequest struct {
	axis  Axis
	delta int
}

// Player is the playback surface the default commands drive.
type Player interface {
	TogglePause()
	Seek(t float64)
}

// BindDefaultCommands subscribes the standard chords on stack and returns a func that
// removes them. Selection steps are queued to one worker so handlers never block and
// steps apply in key order; superseded results are dropped by the matrix.
func BindDefaultCommands(ctx context.Context, stack *keys.Stack, s *Session, p Player) func() {
	steps := make(chan stepRequest, stepQueueSize)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case req := <-steps:
				if _, err := s.Step(ctx, req.axis, req.delta); err != nil {
					s.logger.Warn().Err(err).
						Str("axis", req.axis.String()).
						Str(xglog.FieldEvent, "session.step_failed").
						Msg("selection step failed")
				}
			}
		}
	}()

	step := func(axis Axis, delta int) keys.Handler {
		return func(keys.Event) {
			select {
			case steps <- stepRequest{axis: axis, delta: delta}:
			default:
				s.logger.Warn().
					Str("axis", axis.String()).
					Str(xglog.FieldEvent, "session.step_dropped").
					Msg("selection step queue full")
			}
		}
	}
	seek := func(delta float64) keys.Handler {
		return func(keys.Event) { p.Seek(max(s.Time()+delta, 0)) }
	}

	unsubs := []func(){
		stack.Subscribe("Ctrl+Period", step(AxisProvider, 1)),
		stack.Subscribe("Ctrl+Comma", step(AxisProvider, -1)),
		stack.Subscribe("Shift+Period", step(AxisDubber, 1)),
		stack.Subscribe("Shift+Comma", step(AxisDubber, -1)),
		stack.Subscribe("Period", step(AxisEpisode, 1)),
		stack.Subscribe("Comma", step(AxisEpisode, -1)),
		stack.Subscribe("Space", func(keys.Event) { p.TogglePause() }),
		stack.Subscribe("ArrowLeft", seek(-SeekStep)),
		stack.Subscribe("ArrowRight", seek(SeekStep)),
		stack.Subscribe("Enter", func(keys.Event) {
			if t, ok := s.Skip(); ok {
				p.Seek(t)
			}
		}),
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			for _, u := range unsubs {
				u()
			}
			close(stop)
			<-done
		})
	}
}
