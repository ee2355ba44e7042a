// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package library holds the per-user records kept next to playback: settings,
// per-title progress, watch history, favourites and watch status.
package library

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ManuGH/kodikplay/internal/kv"
)

// Record keys in the kv store.
const (
	KeySettings   = "player_settings"
	KeyProgress   = "anime_progress"
	KeyHistory    = "animeHistory"
	KeyFavourites = "favourites_list"
	KeyStatus     = "anime_status"
)

// Library reads and writes records through a kv.Store. Read-modify-write updates
// are serialized per Library.
type Library struct {
	store kv.Store
	now   func() time.Time
	mu    sync.Mutex
}

// New wraps store.
func New(store kv.Store) *Library {
	return &Library{store: store, now: time.Now}
}

// Store returns the underlying store.
func (l *Library) Store() kv.Store { return l.store }

// Progress is the resumable position of one title.
type Progress struct {
	Provider  int       `json:"player"`
	Dubber    int       `json:"dubber"`
	Episode   int       `json:"episode"`
	Time      float64   `json:"time"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// SaveProgress upserts the record for titleID; the last write wins.
func (l *Library) SaveProgress(ctx context.Context, titleID string, p Progress) error {
	if titleID == "" {
		return fmt.Errorf("library: empty title id")
	}
	if p.Time < 0 {
		p.Time = 0
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = l.now().UTC()
	}
	return update(ctx, l, KeyProgress, func(all *map[string]Progress) {
		if *all == nil {
			*all = map[string]Progress{}
		}
		(*all)[titleID] = p
	})
}

// LoadProgress returns the record for titleID, or nil.
func (l *Library) LoadProgress(ctx context.Context, titleID string) (*Progress, error) {
	all, err := l.AllProgress(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := all[titleID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// AllProgress returns every stored progress record.
func (l *Library) AllProgress(ctx context.Context) (map[string]Progress, error) {
	var all map[string]Progress
	if _, err := kv.GetJSON(ctx, l.store, KeyProgress, &all); err != nil {
		return nil, err
	}
	if all == nil {
		all = map[string]Progress{}
	}
	return all, nil
}

// ClearProgress forgets titleID.
func (l *Library) ClearProgress(ctx context.Context, titleID string) error {
	return update(ctx, l, KeyProgress, func(all *map[string]Progress) {
		delete(*all, titleID)
	})
}

// AddToHistory moves titleID to the front of the watch history.
func (l *Library) AddToHistory(ctx context.Context, titleID string) error {
	return l.updateList(ctx, KeyHistory, func(list []string) []string {
		return pushFront(list, titleID)
	})
}

// History returns titles most recent first.
func (l *Library) History(ctx context.Context) ([]string, error) {
	return l.list(ctx, KeyHistory)
}

// AddFavourite moves titleID to the front of the favourites.
func (l *Library) AddFavourite(ctx context.Context, titleID string) error {
	return l.updateList(ctx, KeyFavourites, func(list []string) []string {
		return pushFront(list, titleID)
	})
}

// RemoveFavourite drops titleID from the favourites.
func (l *Library) RemoveFavourite(ctx context.Context, titleID string) error {
	return l.updateList(ctx, KeyFavourites, func(list []string) []string {
		return slices.DeleteFunc(list, func(s string) bool { return s == titleID })
	})
}

// Favourites returns favourite titles, most recently added first.
func (l *Library) Favourites(ctx context.Context) ([]string, error) {
	return l.list(ctx, KeyFavourites)
}

// IsFavourite reports whether titleID is a favourite.
func (l *Library) IsFavourite(ctx context.Context, titleID string) (bool, error) {
	list, err := l.Favourites(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(list, titleID), nil
}

// SetStatus records a watch status for titleID; status 0 removes it.
func (l *Library) SetStatus(ctx context.Context, titleID string, status int) error {
	return update(ctx, l, KeyStatus, func(all *map[string]int) {
		if status == 0 {
			delete(*all, titleID)
			return
		}
		if *all == nil {
			*all = map[string]int{}
		}
		(*all)[titleID] = status
	})
}

// Status returns the watch status of titleID, 0 when unset.
func (l *Library) Status(ctx context.Context, titleID string) (int, error) {
	var all map[string]int
	if _, err := kv.GetJSON(ctx, l.store, KeyStatus, &all); err != nil {
		return 0, err
	}
	return all[titleID], nil
}

func pushFront(list []string, item string) []string {
	out := make([]string, 0, len(list)+1)
	out = append(out, item)
	for _, s := range list {
		if s != item {
			out = append(out, s)
		}
	}
	return out
}

func (l *Library) list(ctx context.Context, key string) ([]string, error) {
	var out []string
	if _, err := kv.GetJSON(ctx, l.store, key, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func (l *Library) updateList(ctx context.Context, key string, fn func([]string) []string) error {
	return update(ctx, l, key, func(list *[]string) {
		*list = fn(*list)
	})
}

// update reads key into a T, applies fn and writes it back under l.mu.
func update[T any](ctx context.Context, l *Library, key string, fn func(*T)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var v T
	if _, err := kv.GetJSON(ctx, l.store, key, &v); err != nil {
		return err
	}
	fn(&v)
	if err := kv.SetJSON(ctx, l.store, key, v); err != nil {
		return fmt.Errorf("library: save %s: %w", key, err)
	}
	return nil
}
