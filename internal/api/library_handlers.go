// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"slices"

	"github.com/ManuGH/kodikplay/internal/library"
	"github.com/go-chi/chi/v5"
)

type settingsPatch struct {
	PlaybackSpeed     *float64 `json:"playbackSpeed"`
	Volume            *float64 `json:"volume"`
	IsMuted           *bool    `json:"isMuted"`
	ShowRemainingTime *bool    `json:"showRemainingTime"`
}

type statusBody struct {
	Status int `json:"status"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Library.Settings(r.Context())
	if err != nil {
		s.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	var patch settingsPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	if patch.PlaybackSpeed != nil && !slices.Contains(library.Speeds, *patch.PlaybackSpeed) {
		writeError(w, http.StatusBadRequest, "unsupported playback speed")
		return
	}
	st, err := s.deps.Library.UpdateSettings(r.Context(), func(st *library.Settings) {
		if patch.PlaybackSpeed != nil {
			st.PlaybackSpeed = *patch.PlaybackSpeed
		}
		if patch.Volume != nil {
			st.Volume = *patch.Volume
		}
		if patch.IsMuted != nil {
			st.IsMuted = *patch.IsMuted
		}
		if patch.ShowRemainingTime != nil {
			st.ShowRemainingTime = *patch.ShowRemainingTime
		}
	})
	if err != nil {
		s.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Library.History(r.Context())
	if err != nil {
		s.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAddHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Library.AddToHistory(r.Context(), chi.URLParam(r, "title")); err != nil {
		s.internal(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFavourites(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Library.Favourites(r.Context())
	if err != nil {
		s.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAddFavourite(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Library.AddFavourite(r.Context(), chi.URLParam(r, "title")); err != nil {
		s.internal(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveFavourite(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Library.RemoveFavourite(r.Context(), chi.URLParam(r, "title")); err != nil {
		s.internal(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Library.Status(r.Context(), chi.URLParam(r, "title"))
	if err != nil {
		s.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusBody{Status: st})
}

func (s *Server) handlePutStatus(w http.ResponseWriter, r *http.Request) {
	var body statusBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := s.deps.Library.SetStatus(r.Context(), chi.URLParam(r, "title"), body.Status); err != nil {
		s.internal(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
