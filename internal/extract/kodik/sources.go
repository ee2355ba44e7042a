// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package kodik

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/ManuGH/kodikplay/internal/extract"
)

// Link is one entry of a quality tier list in the API response.
type Link struct {
	Src  string `json:"src"`
	Type string `json:"type,omitempty"`
}

// Links maps quality keys ("360", "480", "720") to their entries.
type Links map[string][]Link

var (
	errNotObject = errors.New("response is not a JSON object")
	errNoLinks   = errors.New("links object missing")
	errNoTiers   = errors.New("links carry no 360, 480 or 720 entry")
	errNo360     = errors.New("links lack the 360 tier")
	errTierGap   = errors.New("links carry 720 without 480")
)

// ParseResponse decodes the API body and validates its links object. The tiers
// must form the ladder 360, 360+480 or 360+480+720.
// Errors are *StageError at StageJSON or StageShape.
func ParseResponse(body []byte) (Links, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, validationErr(StageJSON, "malformed api response", err)
	}
	if top == nil {
		return nil, validationErr(StageShape, "invalid api response", errNotObject)
	}
	raw, ok := top["links"]
	if !ok {
		return nil, validationErr(StageShape, "invalid api response", errNoLinks)
	}
	var tiers map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tiers); err != nil || tiers == nil {
		return nil, validationErr(StageShape, "invalid api response", errNoLinks)
	}

	links := make(Links, len(extract.Qualities))
	for _, q := range extract.Qualities {
		key := strconv.Itoa(int(q))
		rawTier, ok := tiers[key]
		if !ok {
			continue
		}
		var entries []Link
		if err := json.Unmarshal(rawTier, &entries); err != nil || len(entries) == 0 {
			continue
		}
		links[key] = entries
	}
	if len(links) == 0 {
		return nil, validationErr(StageShape, "invalid api response", errNoTiers)
	}
	if _, ok := links["360"]; !ok {
		return nil, validationErr(StageShape, "invalid api response", errNo360)
	}
	_, has480 := links["480"]
	if _, has720 := links["720"]; has720 && !has480 {
		return nil, validationErr(StageShape, "invalid api response", errTierGap)
	}
	return links, nil
}

// MapSources walks the tier ladder in ascending quality order, decoding the first src
// of each tier. It stops at the first missing tier and returns nil when any src on the
// ladder fails to decode, so a result is always {360}, {360,480} or {360,480,720}.
func MapSources(links Links) []extract.MediaSource {
	out := make([]extract.MediaSource, 0, len(extract.Qualities))
	for _, q := range extract.Qualities {
		entries := links[strconv.Itoa(int(q))]
		if len(entries) == 0 {
			break
		}
		u := Decode(entries[0].Src)
		if u == "" {
			return nil
		}
		out = append(out, extract.MediaSource{Quality: q, URL: u})
	}
	return out
}
