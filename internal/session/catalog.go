// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"slices"
	"strconv"
	"strings"
)

// SkipSegment is a named interval of an episode, e.g. the opening.
type SkipSegment struct {
	Kind   string  `json:"kind"`
	Start  float64 `json:"start"`
	Length float64 `json:"length"`
}

// End is the first instant after the segment.
func (s SkipSegment) End() float64 { return s.Start + s.Length }

// Contains reports whether t falls in [Start, Start+Length).
func (s SkipSegment) Contains(t float64) bool { return t >= s.Start && t < s.End() }

// Episode is one playable page.
type Episode struct {
	Number  string        `json:"number"`
	PageURL string        `json:"pageUrl"`
	Skips   []SkipSegment `json:"skips,omitempty"`
}

// Dubber is one dubbing track of a provider.
type Dubber struct {
	Name     string    `json:"name"`
	Episodes []Episode `json:"episodes"`
}

// Provider is one embedded player host.
type Provider struct {
	Name    string   `json:"name"`
	Dubbers []Dubber `json:"dubbers"`
}

// Catalog is the provider → dubber → episode tree of one title. It is not
// modified after BuildCatalog returns.
type Catalog struct {
	Providers []Provider `json:"providers"`
}

// Episode returns the episode addressed by sel, if it exists.
func (c *Catalog) Episode(sel Selection) (Episode, bool) {
	if c == nil || sel.Provider < 0 || sel.Provider >= len(c.Providers) {
		return Episode{}, false
	}
	p := c.Providers[sel.Provider]
	if sel.Dubber < 0 || sel.Dubber >= len(p.Dubbers) {
		return Episode{}, false
	}
	d := p.Dubbers[sel.Dubber]
	if sel.Episode < 0 || sel.Episode >= len(d.Episodes) {
		return Episode{}, false
	}
	return d.Episodes[sel.Episode], true
}

// Empty reports whether the catalog has no playable episode.
func (c *Catalog) Empty() bool {
	if c == nil {
		return true
	}
	for _, p := range c.Providers {
		for _, d := range p.Dubbers {
			if len(d.Episodes) > 0 {
				return false
			}
		}
	}
	return true
}

// VideoRecord is one upstream video entry of a title.
type VideoRecord struct {
	IframeURL string                `json:"iframe_url"`
	Number    string                `json:"number"`
	Data      VideoData             `json:"data"`
	Skips     map[string]SkipRecord `json:"skips,omitempty"`
}

// VideoData names the player and dubbing of a VideoRecord.
type VideoData struct {
	Player  string `json:"player"`
	Dubbing string `json:"dubbing"`
}

// SkipRecord is the upstream form of a skip segment; both values are seconds as strings.
type SkipRecord struct {
	Time   string `json:"time"`
	Length string `json:"length"`
}

// BuildCatalog groups records by player then dubbing in first-seen order and sorts
// each dubber's episodes by number. Records whose page URL is not accepted are dropped,
// as are skip records with a non-positive or unparsable length.
func BuildCatalog(records []VideoRecord, accepts func(pageURL string) bool) *Catalog {
	c := &Catalog{}
	providerIdx := map[string]int{}
	dubberIdx := map[string]map[string]int{}

	for _, rec := range records {
		pageURL := rec.IframeURL
		if strings.HasPrefix(pageURL, "//") {
			pageURL = "https:" + pageURL
		}
		if accepts != nil && !accepts(pageURL) {
			continue
		}

		pi, ok := providerIdx[rec.Data.Player]
		if !ok {
			pi = len(c.Providers)
			providerIdx[rec.Data.Player] = pi
			dubberIdx[rec.Data.Player] = map[string]int{}
			c.Providers = append(c.Providers, Provider{Name: rec.Data.Player})
		}
		p := &c.Providers[pi]
		di, ok := dubberIdx[rec.Data.Player][rec.Data.Dubbing]
		if !ok {
			di = len(p.Dubbers)
			dubberIdx[rec.Data.Player][rec.Data.Dubbing] = di
			p.Dubbers = append(p.Dubbers, Dubber{Name: rec.Data.Dubbing})
		}
		d := &p.Dubbers[di]
		d.Episodes = append(d.Episodes, Episode{
			Number:  rec.Number,
			PageURL: pageURL,
			Skips:   skipSegments(rec.Skips),
		})
	}

	for pi := range c.Providers {
		for di := range c.Providers[pi].Dubbers {
			slices.SortStableFunc(c.Providers[pi].Dubbers[di].Episodes, func(a, b Episode) int {
				na, nb := episodeNumber(a.Number), episodeNumber(b.Number)
				switch {
				case na < nb:
					return -1
				case na > nb:
					return 1
				}
				return 0
			})
		}
	}
	return c
}

func skipSegments(records map[string]SkipRecord) []SkipSegment {
	if len(records) == 0 {
		return nil
	}
	out := make([]SkipSegment, 0, len(records))
	for kind, rec := range records {
		start, err := strconv.ParseFloat(strings.TrimSpace(rec.Time), 64)
		if err != nil {
			continue
		}
		length, err := strconv.ParseFloat(strings.TrimSpace(rec.Length), 64)
		if err != nil || length <= 0 {
			continue
		}
		out = append(out, SkipSegment{Kind: kind, Start: start, Length: length})
	}
	slices.SortFunc(out, func(a, b SkipSegment) int {
		if a.Start != b.Start {
			if a.Start < b.Start {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Kind, b.Kind)
	})
	return out
}

// episodeNumber sorts unparsable numbers first.
func episodeNumber(s string) float64 {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return -1
	}
	return n
}
