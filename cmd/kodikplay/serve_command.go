// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/kodikplay/internal/api"
	"github.com/ManuGH/kodikplay/internal/config"
	"github.com/ManuGH/kodikplay/internal/fetch"
	"github.com/ManuGH/kodikplay/internal/health"
	"github.com/ManuGH/kodikplay/internal/library"
	xglog "github.com/ManuGH/kodikplay/internal/log"
	"github.com/ManuGH/kodikplay/internal/session"
	"github.com/ManuGH/kodikplay/internal/telemetry"
	"github.com/ManuGH/kodikplay/internal/version"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var listenFlag string
	var watchFlag bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if listenFlag != "" {
				cfg.API.ListenAddr = listenFlag
			}
			logger := xglog.WithComponent("serve")

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tp, err := telemetry.NewProvider(runCtx, cfg.TracingConfig())
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(runCtx), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Warn().Err(err).Msg("telemetry shutdown failed")
				}
			}()

			store, err := ctx.openStore(runCtx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			lib := library.New(store)
			if watchFlag && ctx.loader.Path() != "" {
				holder := config.NewHolder(cfg, ctx.loader)
				holder.OnReload(func(old, next config.AppConfig) {
					if old.Log.Level != next.Log.Level {
						xglog.Configure(xglog.Config{
							Level:   next.Log.Level,
							Service: next.Log.Service,
							Version: version.Version,
						})
					}
				})
				if err := holder.StartWatcher(runCtx); err != nil {
					logger.Warn().Err(err).Msg("config watcher disabled")
				} else {
					defer holder.Stop()
				}
			}

			fetcher := fetch.New(cfg.FetchOptions())
			checks := health.NewManager(version.Version)
			checks.RegisterChecker(health.NewStoreChecker(store))
			checks.RegisterChecker(health.NewUpstreamChecker(fetcher.OpenHosts))

			registry := newRegistry(cfg, fetcher)
			srv := api.New(api.Deps{
				Resolver:       registry,
				Library:        lib,
				Progress:       session.NewProgressStore(lib, cfg.Session.RewindOnSave),
				Health:         checks,
				TracingService: tracingService(cfg),
				RateLimit:      cfg.API.RateLimit,
			})

			logger.Info().
				Str("version", version.Version).
				Str("backend", cfg.Store.Backend).
				Strs("extractors", registry.Names()).
				Str(xglog.FieldEvent, "serve.start").
				Msg("starting kodikplay")
			return srv.ListenAndServe(runCtx, cfg.API.ListenAddr)
		},
	}

	cmd.Flags().StringVar(&listenFlag, "listen", "", "Override the configured listen address")
	cmd.Flags().BoolVar(&watchFlag, "watch-config", true, "Reload the log level when the config file changes")
	return cmd
}

func tracingService(cfg config.AppConfig) string {
	if !cfg.Telemetry.Enabled {
		return ""
	}
	return cfg.Log.Service
}
