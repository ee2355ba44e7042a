// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves source resolution and library records over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ManuGH/kodikplay/internal/api/middleware"
	"github.com/ManuGH/kodikplay/internal/extract"
	"github.com/ManuGH/kodikplay/internal/health"
	"github.com/ManuGH/kodikplay/internal/library"
	xglog "github.com/ManuGH/kodikplay/internal/log"
	"github.com/ManuGH/kodikplay/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps are the collaborators of the API server.
type Deps struct {
	Resolver extract.Resolver
	Library  *library.Library
	Progress *session.ProgressStore

	// Health serves /healthz and /readyz; nil serves a manager without checkers.
	Health *health.Manager

	TracingService string
	RateLimit      int
}

// Server is the HTTP API.
type Server struct {
	deps    Deps
	logger  zerolog.Logger
	handler http.Handler
}

// New builds the router.
func New(deps Deps) *Server {
	if deps.Health == nil {
		deps.Health = health.NewManager("")
	}
	s := &Server{deps: deps, logger: xglog.WithComponent("api")}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		EnableLogging:  true,
		TracingService: s.deps.TracingService,
		RateLimit:      s.deps.RateLimit,
	})

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/resolve", s.handleResolve)

		r.Get("/progress/{title}", s.handleGetProgress)
		r.Put("/progress/{title}", s.handlePutProgress)
		r.Delete("/progress/{title}", s.handleDeleteProgress)

		r.Get("/settings", s.handleGetSettings)
		r.Patch("/settings", s.handlePatchSettings)

		r.Get("/history", s.handleHistory)
		r.Post("/history/{title}", s.handleAddHistory)

		r.Get("/favourites", s.handleFavourites)
		r.Put("/favourites/{title}", s.handleAddFavourite)
		r.Delete("/favourites/{title}", s.handleRemoveFavourite)

		r.Get("/status/{title}", s.handleGetStatus)
		r.Put("/status/{title}", s.handlePutStatus)
	})
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Str(xglog.FieldEvent, "api.listen").Msg("api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	<-errCh
	s.logger.Info().Str(xglog.FieldEvent, "api.stopped").Msg("api stopped")
	return nil
}
