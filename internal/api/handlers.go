// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"

	"github.com/ManuGH/kodikplay/internal/extract"
	xglog "github.com/ManuGH/kodikplay/internal/log"
	"github.com/ManuGH/kodikplay/internal/session"
	"github.com/go-chi/chi/v5"
)

type resolveRequest struct {
	URL string `json:"url"`
}

type resolveResponse struct {
	Sources []extract.MediaSource `json:"sources"`
}

type progressBody struct {
	Provider int     `json:"player"`
	Dubber   int     `json:"dubber"`
	Episode  int     `json:"episode"`
	Time     float64 `json:"time"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	sources, err := s.deps.Resolver.Resolve(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, extract.ErrRouting) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(xglog.FieldPageURL, req.URL).Msg("resolve failed")
		writeError(w, http.StatusBadGateway, "resolve failed")
		return
	}
	if sources == nil {
		sources = []extract.MediaSource{}
	}
	writeJSON(w, http.StatusOK, resolveResponse{Sources: sources})
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Progress.Load(r.Context(), chi.URLParam(r, "title"))
	if err != nil {
		s.internal(w, r, err)
		return
	}
	if p == nil {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutProgress(w http.ResponseWriter, r *http.Request) {
	var body progressBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Provider < 0 || body.Dubber < 0 || body.Episode < 0 {
		writeError(w, http.StatusBadRequest, "indices must not be negative")
		return
	}
	if body.Time < 0 {
		writeError(w, http.StatusBadRequest, "time must not be negative")
		return
	}
	sel := session.Selection{Provider: body.Provider, Dubber: body.Dubber, Episode: body.Episode}
	if err := s.deps.Progress.Checkpoint(r.Context(), chi.URLParam(r, "title"), sel, body.Time); err != nil {
		s.internal(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteProgress(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Progress.Clear(r.Context(), chi.URLParam(r, "title")); err != nil {
		s.internal(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) internal(w http.ResponseWriter, r *http.Request, err error) {
	logger := xglog.WithComponentFromContext(r.Context(), "api")
	logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeInternal(w)
}
