// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"context"
	"fmt"
	"slices"

	"github.com/ManuGH/kodikplay/internal/kv"
)

// Speeds are the playback rates a player offers.
var Speeds = []float64{0.25, 0.5, 0.75, 1, 1.25, 1.5, 1.75, 2}

// Settings are the persisted player preferences.
type Settings struct {
	PlaybackSpeed     float64 `json:"playbackSpeed"`
	Volume            float64 `json:"volume"`
	IsMuted           bool    `json:"isMuted"`
	ShowRemainingTime bool    `json:"showRemainingTime"`
}

// DefaultSettings is used for absent or partial records.
func DefaultSettings() Settings {
	return Settings{PlaybackSpeed: 1, Volume: 1}
}

// Settings returns stored settings layered over the defaults.
func (l *Library) Settings(ctx context.Context) (Settings, error) {
	s := DefaultSettings()
	if _, err := kv.GetJSON(ctx, l.store, KeySettings, &s); err != nil {
		return DefaultSettings(), err
	}
	return s, nil
}

// UpdateSettings applies fn to the current settings and stores the result.
func (l *Library) UpdateSettings(ctx context.Context, fn func(*Settings)) (Settings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.Settings(ctx)
	if err != nil {
		return s, err
	}
	fn(&s)
	s.Volume = min(max(s.Volume, 0), 1)
	if err := kv.SetJSON(ctx, l.store, KeySettings, s); err != nil {
		return s, fmt.Errorf("library: save %s: %w", KeySettings, err)
	}
	return s, nil
}

// SetPlaybackSpeed stores speed when it is one of Speeds.
func (l *Library) SetPlaybackSpeed(ctx context.Context, speed float64) error {
	if !slices.Contains(Speeds, speed) {
		return fmt.Errorf("library: unsupported playback speed %v", speed)
	}
	_, err := l.UpdateSettings(ctx, func(s *Settings) { s.PlaybackSpeed = speed })
	return err
}

// SetVolume stores volume clamped to [0, 1].
func (l *Library) SetVolume(ctx context.Context, volume float64) error {
	_, err := l.UpdateSettings(ctx, func(s *Settings) { s.Volume = volume })
	return err
}

// SetMuted stores the mute flag.
func (l *Library) SetMuted(ctx context.Context, muted bool) error {
	_, err := l.UpdateSettings(ctx, func(s *Settings) { s.IsMuted = muted })
	return err
}

// SetShowRemainingTime stores the remaining-time display flag.
func (l *Library) SetShowRemainingTime(ctx context.Context, show bool) error {
	_, err := l.UpdateSettings(ctx, func(s *Settings) { s.ShowRemainingTime = show })
	return err
}
