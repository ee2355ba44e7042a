// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"strings"
	"sync"

	"github.com/ManuGH/kodikplay/internal/extract"
	"github.com/ManuGH/kodikplay/internal/kv"
	"github.com/ManuGH/kodikplay/internal/library"
)

func ptr(i int) *int { return &i }

func pageURL(provider, dubber, episode string) string {
	return "https://kodik.info/seria/" + provider + "-" + dubber + "-" + episode
}

// testCatalog has two providers; the second one's dubber differs only in case.
func testCatalog() *Catalog {
	ep := func(p, d, n string) Episode { return Episode{Number: n, PageURL: pageURL(p, d, n)} }
	return &Catalog{Providers: []Provider{
		{Name: "Kodik", Dubbers: []Dubber{
			{Name: "AniDub", Episodes: []Episode{ep("k", "ad", "1"), ep("k", "ad", "2"), ep("k", "ad", "3")}},
			{Name: "Studio Band", Episodes: []Episode{ep("k", "sb", "1"), ep("k", "sb", "2")}},
		}},
		{Name: "Alloha", Dubbers: []Dubber{
			{Name: "ANILIBRIA", Episodes: []Episode{ep("a", "al", "1")}},
		}},
	}}
}

// echoResolver returns one 720p source whose URL is the page URL.
func echoResolver() extract.Resolver {
	return extract.ResolverFunc(func(_ context.Context, pageURL string) ([]extract.MediaSource, error) {
		return []extract.MediaSource{{Quality: extract.Quality720, URL: pageURL}}, nil
	})
}

func newProgressStore() *ProgressStore {
	return NewProgressStore(library.New(kv.NewMemoryStore()), 0)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recorder) of(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func firstURLs(evs []Event) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		if len(ev.Sources) == 0 {
			out = append(out, "")
			continue
		}
		out = append(out, strings.TrimPrefix(ev.Sources[0].URL, "https://kodik.info/seria/"))
	}
	return out
}
