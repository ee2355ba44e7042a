// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package kodik

import (
	"errors"
	"testing"

	"github.com/ManuGH/kodikplay/internal/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	src360 = "Tg9rjO91HK5zj2Zxig1hlO9gGEltTuVdjA91k2DglFJaj2Nskg8hVrIcjFI0"
	src480 = "Tg9rjO91HK5zj2Zxig1hlO9gGEltTuVdjA91k2DglFJaj2Nskg80WLIcjFI0"
	src720 = "Tg9rjO91HK5zj2Zxig1hlO9gGEltTuVdjA91k2DglFJaj2Nskg83UrIcjFI0"
)

func TestMapSourcesTierCounts(t *testing.T) {
	all := Links{
		"720": {{Src: src720}},
		"360": {{Src: src360}},
		"480": {{Src: src480}},
	}
	got := MapSources(all)
	require.Len(t, got, 3)
	assert.Equal(t, []extract.Quality{360, 480, 720}, qualities(got))
	assert.Equal(t, "https://cloud.kodik-storage.com/useruploads/720.mp4", got[2].URL)

	assert.Len(t, MapSources(Links{"360": {{Src: src360}}, "480": {{Src: src480}}}), 2)
	assert.Len(t, MapSources(Links{"360": {{Src: src360}}}), 1)
}

func TestMapSourcesUsesFirstEntry(t *testing.T) {
	got := MapSources(Links{"360": {{Src: src360}, {Src: src480}}})
	require.Len(t, got, 1)
	assert.Equal(t, "https://cloud.kodik-storage.com/useruploads/360.mp4", got[0].URL)
}

func TestMapSourcesFollowsTierLadder(t *testing.T) {
	tests := []struct {
		name  string
		links Links
		want  []extract.Quality
	}{
		{"no 360", Links{"480": {{Src: src480}}, "720": {{Src: src720}}}, nil},
		{"720 without 480", Links{"360": {{Src: src360}}, "720": {{Src: src720}}}, []extract.Quality{360}},
		{"undecodable 360", Links{"360": {{Src: "%%%"}}, "480": {{Src: src480}}}, nil},
		{"undecodable 720", Links{"360": {{Src: src360}}, "480": {{Src: src480}}, "720": {{Src: "%%%"}}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapSources(tt.links)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, qualities(got))
		})
	}
}

func qualities(ss []extract.MediaSource) []extract.Quality {
	out := make([]extract.Quality, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.Quality)
	}
	return out
}

func TestParseResponse(t *testing.T) {
	links, err := ParseResponse([]byte(`{"advert_script":"","links":{"360":[{"src":"a","type":"application/x-mpegURL"}],"480":[{"src":"b"}]}}`))
	require.NoError(t, err)
	assert.Len(t, links, 2)
	assert.Equal(t, "application/x-mpegURL", links["360"][0].Type)
}

func TestParseResponseErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		stage Stage
	}{
		{"not json", `<html>`, StageJSON},
		{"null", `null`, StageShape},
		{"no links", `{"ok":true}`, StageShape},
		{"links not object", `{"links":[1,2]}`, StageShape},
		{"no known tiers", `{"links":{"1080":[{"src":"x"}]}}`, StageShape},
		{"empty tier", `{"links":{"360":[]}}`, StageShape},
		{"no 360", `{"links":{"480":[{"src":"b"}],"720":[{"src":"c"}]}}`, StageShape},
		{"720 without 480", `{"links":{"360":[{"src":"a"}],"720":[{"src":"c"}]}}`, StageShape},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse([]byte(tt.body))
			require.Error(t, err)
			var serr *StageError
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, tt.stage, serr.Stage)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}
